// Package textgen abstracts the single request/response text-generation
// capability consumed by the memory compressor and the conversation tagger.
package textgen

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Client produces a completion for a prompt. Implementations must honor
// context cancellation; callers bound every call with a timeout.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Config controls client construction.
type Config struct {
	Mode    string // auto | http | mock
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New selects a client implementation based on the configured mode.
func New(cfg Config) (Client, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.APIKey) != "" {
			return NewHTTPClient(cfg), nil
		}
		return NewMockClient(), nil
	case "http":
		if strings.TrimSpace(cfg.APIKey) == "" {
			return nil, errors.New("textgen API key is required for http mode")
		}
		return NewHTTPClient(cfg), nil
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, errors.New("unsupported textgen mode " + mode)
	}
}
