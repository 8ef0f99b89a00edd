// Package archive is a durable audit trail of chat turns. The in-process
// conversation memory stays the source of truth for prompting; the
// archive only records what was said, per conversation, for later review.
package archive

import (
	"context"
	"time"
)

// TurnRecord stores a single archived user or assistant message.
type TurnRecord struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Redacted       bool      `json:"redacted"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists and retrieves archived turns.
type Store interface {
	SaveTurn(ctx context.Context, record TurnRecord) error
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]TurnRecord, error)
	Close() error
}
