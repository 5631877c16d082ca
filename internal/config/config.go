package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	defaultConfigPath = "config.json"
	apiKeyEnv         = "NOTESAI_API_KEY"
)

// providerKeyEnv lists the conventional credential variable of each provider.
var providerKeyEnv = map[string]string{
	"openai": "OPENAI_API_KEY",
	"claude": "ANTHROPIC_API_KEY",
	"gemini": "GEMINI_API_KEY",
}

// Config represents runtime configuration for the service.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Provider    ProviderConfig            `json:"provider"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
}

type ProviderConfig struct {
	Name    string `json:"name"`
	BaseURL string `json:"base_url"`
	Model   string `json:"model"`
	APIKey  string `json:"api_key"`
}

type BasicConfig struct {
	ServerAddress     string `json:"server_address"`
	Database          string `json:"database"`
	SessionStore      string `json:"session_store"`
	SessionTTL        int    `json:"session_ttl"`         // minutes
	SessionCleanEvery int    `json:"session_clean_every"` // minutes
	MaxUploadMB       int    `json:"max_upload_mb"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// Default returns a configuration that runs entirely in-process: sqlite in memory,
// memory session store and the openai provider.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the provided path (defaults to config.json).
// A missing default file is not an error; built-in defaults are used instead.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = defaultConfigPath
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			cfg := Default()
			cfg.resolveAPIKey()
			return cfg, nil
		}
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()

	// relative sqlite files live next to the config file
	if db, ok := cfg.Databases["sqlite3"]; ok && db.DSN != "" && !strings.HasPrefix(db.DSN, ":memory:") &&
		!strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
		db.DSN = filepath.Join(filepath.Dir(absPath), db.DSN)
		cfg.Databases["sqlite3"] = db
	}
	cfg.resolveAPIKey()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BasicConfig.ServerAddress == "" {
		c.BasicConfig.ServerAddress = ":8090"
	}
	if c.BasicConfig.Database == "" {
		c.BasicConfig.Database = "sqlite3"
	}
	if c.BasicConfig.SessionStore == "" {
		c.BasicConfig.SessionStore = "memory"
	}
	if c.BasicConfig.SessionTTL <= 0 {
		c.BasicConfig.SessionTTL = 120
	}
	if c.BasicConfig.SessionCleanEvery <= 0 {
		c.BasicConfig.SessionCleanEvery = 10
	}
	if c.BasicConfig.MaxUploadMB <= 0 {
		c.BasicConfig.MaxUploadMB = 10
	}
	if c.Provider.Name == "" {
		c.Provider.Name = "openai"
	}
	if c.Provider.Model == "" {
		c.Provider.Model = defaultModel(c.Provider.Name)
	}
	if c.Databases == nil {
		c.Databases = make(map[string]DatabaseConfig)
	}
	if _, ok := c.Databases["sqlite3"]; !ok {
		c.Databases["sqlite3"] = DatabaseConfig{DSN: ":memory:"}
	}
}

// resolveAPIKey applies the env override chain: NOTESAI_API_KEY, then the provider's
// conventional variable, then whatever the file carried.
func (c *Config) resolveAPIKey() {
	if key := strings.TrimSpace(os.Getenv(apiKeyEnv)); key != "" {
		c.Provider.APIKey = key
		return
	}
	if env, ok := providerKeyEnv[c.Provider.Name]; ok {
		if key := strings.TrimSpace(os.Getenv(env)); key != "" {
			c.Provider.APIKey = key
		}
	}
}

// Validate reports configuration that cannot start a server.
func (c *Config) Validate() error {
	if _, ok := providerKeyEnv[c.Provider.Name]; !ok {
		return fmt.Errorf("unsupported provider: %s", c.Provider.Name)
	}
	if c.Provider.APIKey == "" {
		return fmt.Errorf("api key not configured: set %s", apiKeyEnv)
	}
	switch c.BasicConfig.SessionStore {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported session_store: %s", c.BasicConfig.SessionStore)
	}
	return nil
}

func defaultModel(provider string) string {
	switch provider {
	case "claude":
		return "claude-3-5-sonnet-latest"
	case "gemini":
		return "gemini-2.0-flash"
	default:
		return "gpt-4"
	}
}
