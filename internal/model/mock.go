package model

import (
	"context"
	"strings"
)

// MockCompleter provides deterministic local replies when no model is
// configured. Clarification prompts get a well-formed JSON array so the
// downstream parser exercises its success path.
type MockCompleter struct{}

func NewMockCompleter() *MockCompleter { return &MockCompleter{} }

func (c *MockCompleter) Name() string { return "mock" }

func (c *MockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	if strings.Contains(prompt, "JSON array") {
		return `["Which time range should be considered?", "Should the result be aggregated?"]`, nil
	}
	return "I looked at the conversation and summarized the most recent answer in plain terms.", nil
}
