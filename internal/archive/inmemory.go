package archive

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// defaultTurnCap bounds how many turns one conversation can hold so a
// long-lived dev process does not grow without limit.
const defaultTurnCap = 512

// InMemoryStore is the archive used when no DATABASE_URL is configured.
// Each conversation keeps at most turnCap turns; older ones are pruned.
type InMemoryStore struct {
	mu      sync.RWMutex
	turnCap int
	turns   map[string][]TurnRecord
}

func NewInMemoryStore() *InMemoryStore {
	return NewInMemoryStoreWithCap(defaultTurnCap)
}

func NewInMemoryStoreWithCap(turnCap int) *InMemoryStore {
	if turnCap <= 0 {
		turnCap = defaultTurnCap
	}
	return &InMemoryStore{
		turnCap: turnCap,
		turns:   make(map[string][]TurnRecord),
	}
}

func (s *InMemoryStore) SaveTurn(_ context.Context, record TurnRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	arr := append(s.turns[record.ConversationID], record)
	if overflow := len(arr) - s.turnCap; overflow > 0 {
		// Copy instead of re-slicing so pruned turns can be collected.
		kept := make([]TurnRecord, s.turnCap)
		copy(kept, arr[overflow:])
		arr = kept
	}
	s.turns[record.ConversationID] = arr
	return nil
}

func (s *InMemoryStore) RecentTurns(_ context.Context, conversationID string, limit int) ([]TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	arr := s.turns[conversationID]
	if len(arr) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	out := make([]TurnRecord, limit)
	copy(out, arr[len(arr)-limit:])
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
