package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"notesai/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"
)

// ErrCompletion matches every error returned by Client.Complete.
var ErrCompletion = errors.New("completion failed")

// claudeMaxTokens is the per-model ceiling claude requires at construction; each
// request lowers it with model.WithMaxTokens.
const claudeMaxTokens = 3000

// Request is a single completion call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Completer sends one prompt and returns the generated text.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompletionError carries the provider failure verbatim.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("%s completion failed: %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

func (e *CompletionError) Is(target error) bool { return target == ErrCompletion }

// Client is a Completer backed by an eino chat model.
type Client struct {
	provider  string
	chatModel model.BaseChatModel
}

// NewClient builds the chat model configured in cfg.Provider.
func NewClient(ctx context.Context, cfg config.ProviderConfig) (*Client, error) {
	var (
		chatModel model.BaseChatModel
		err       error
	)
	switch cfg.Name {
	case "openai":
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			APIKey:  cfg.APIKey,
		})
	case "gemini":
		client, cerr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey: cfg.APIKey,
		})
		if cerr != nil {
			return nil, fmt.Errorf("init gemini client: %w", cerr)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  cfg.Model,
		})
	case "claude":
		var baseURLPtr *string
		if cfg.BaseURL != "" {
			baseURLPtr = &cfg.BaseURL
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			BaseURL:   baseURLPtr,
			MaxTokens: claudeMaxTokens,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Name)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s chat model: %w", cfg.Name, err)
	}
	return NewClientWithModel(cfg.Name, chatModel), nil
}

// NewClientWithModel wraps an already constructed chat model.
func NewClientWithModel(provider string, chatModel model.BaseChatModel) *Client {
	return &Client{provider: provider, chatModel: chatModel}
}

// Complete sends the prompt as a single system message and returns the trimmed reply.
func (c *Client) Complete(ctx context.Context, req Request) (string, error) {
	messages := []*schema.Message{schema.SystemMessage(req.Prompt)}
	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if req.MaxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(req.MaxTokens))
	}

	reply, err := c.chatModel.Generate(ctx, messages, opts...)
	if err != nil {
		return "", &CompletionError{Provider: c.provider, Err: err}
	}
	if reply == nil {
		return "", &CompletionError{Provider: c.provider, Err: errors.New("no reply message")}
	}
	// a blank reply is a valid answer and comes back as ""
	return strings.TrimSpace(reply.Content), nil
}
