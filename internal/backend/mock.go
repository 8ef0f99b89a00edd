package backend

import (
	"context"
	"fmt"
	"strings"
)

// MockRunner provides deterministic local answers when no backend is
// configured.
type MockRunner struct{}

func NewMockRunner() *MockRunner { return &MockRunner{} }

func (r *MockRunner) Execute(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	query := strings.TrimSpace(req.Query)
	if query == "" {
		return "Ask me something about your data.", nil
	}
	if strings.TrimSpace(req.ConversationContext) == "" {
		return fmt.Sprintf("Mock answer for: %s", query), nil
	}
	return fmt.Sprintf("Mock answer for: %s (with conversation context)", query), nil
}
