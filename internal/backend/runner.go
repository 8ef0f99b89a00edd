// Package backend adapts the query-execution collaborator: the component
// that turns a natural-language question about the loaded tables into an
// answer string. This service never generates or executes analysis code
// itself; it only forwards the question plus conversation context.
package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is the normalized request sent to the backend.
type Request struct {
	ConversationID      string `json:"conversation_id"`
	Query               string `json:"query"`
	ConversationContext string `json:"conversation_context,omitempty"`
}

// Runner executes one query against the data and returns the answer.
type Runner interface {
	Execute(ctx context.Context, req Request) (string, error)
}

// Config controls runner construction.
type Config struct {
	Mode    string
	HTTPURL string
}

// NewRunner builds a runner for the configured mode.
func NewRunner(cfg Config) (Runner, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPRunner(cfg.HTTPURL), nil
		}
		return NewMockRunner(), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("backend HTTP url is required for http mode")
		}
		return NewHTTPRunner(cfg.HTTPURL), nil
	case "mock":
		return NewMockRunner(), nil
	default:
		return nil, fmt.Errorf("unsupported backend mode %q", cfg.Mode)
	}
}
