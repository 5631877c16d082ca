package main

import (
	"context"
	"log"
	"os"
	"time"

	"notesai/internal/api"
	"notesai/internal/auth"
	"notesai/internal/config"
	"notesai/internal/redis"
	"notesai/internal/service/ai"
	"notesai/internal/service/notes"
	"notesai/internal/session"
	"notesai/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("NOTESAI_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	dbType := cfg.BasicConfig.Database
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: sessions, operations
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	sessionTTL := time.Duration(cfg.BasicConfig.SessionTTL) * time.Minute
	var (
		store session.Store
		rdb   *redis.Client
	)
	switch cfg.BasicConfig.SessionStore {
	case "redis":
		rdb, err = redis.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		sealer, err := session.NewSealerFromEnv()
		if err != nil {
			log.Fatalf("init workspace sealing: %v", err)
		}
		if sealer == nil {
			log.Printf("%s not set, workspaces are stored unencrypted", session.SessionKeyEnv)
		}
		store = session.NewRedisStore(rdb, sessionTTL, sealer)
	default:
		store = session.NewMemoryStore(sessionTTL)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	completer, err := ai.NewClient(ctx, cfg.Provider)
	if err != nil {
		log.Fatalf("init completion client: %v", err)
	}
	log.Printf("provider: %s model: %s", cfg.Provider.Name, cfg.Provider.Model)

	authService := auth.NewService(db, rdb, sessionTTL)

	notesService := notes.NewService(db, store, completer)
	notesService.OnSessionExpired(authService.ForgetToken)
	notesService.StartSessionCleaner(ctx, time.Duration(cfg.BasicConfig.SessionCleanEvery)*time.Minute)
	if mem, ok := store.(*session.MemoryStore); ok {
		go sweepLoop(ctx, mem, time.Duration(cfg.BasicConfig.SessionCleanEvery)*time.Minute)
	}

	maxUpload := int64(cfg.BasicConfig.MaxUploadMB) << 20
	handlers := api.NewHandler(notesService, authService, maxUpload)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	if err := router.Run(cfg.BasicConfig.ServerAddress); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

// sweepLoop frees in-memory workspaces left idle past their TTL.
func sweepLoop(ctx context.Context, store *session.MemoryStore, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := store.Sweep(); n > 0 {
				log.Printf("swept %d idle workspaces", n)
			}
		}
	}
}
