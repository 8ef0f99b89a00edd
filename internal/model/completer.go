// Package model adapts the language-model collaborator. The agent only
// needs one operation: send a prompt, get raw text back. Anything else
// (streaming, tool calls, provider credentials) stays behind the adapter.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Completer sends one prompt to a model and returns its raw text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	Name() string
}

// Config controls completer construction.
type Config struct {
	Mode          string
	HTTPURL       string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
}

// NewCompleter builds a completer for the configured mode. Auto prefers
// OpenAI when a key is present, then a raw HTTP endpoint, then the mock.
func NewCompleter(cfg Config) (Completer, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
			return NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
		}
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPCompleter(cfg.HTTPURL), nil
		}
		return NewMockCompleter(), nil
	case "openai":
		return NewOpenAICompleter(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel)
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("model HTTP url is required for http mode")
		}
		return NewHTTPCompleter(cfg.HTTPURL), nil
	case "mock":
		return NewMockCompleter(), nil
	default:
		return nil, fmt.Errorf("unsupported model mode %q", cfg.Mode)
	}
}
