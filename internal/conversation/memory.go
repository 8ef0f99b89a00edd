package conversation

import "time"

// Role identifies the author of a conversational entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Entry is a single immutable message in a conversation.
type Entry struct {
	Role      Role      `json:"role"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// turn groups a user question with its assistant answer. The turn is the
// atomic unit of eviction: a partially answered question never outlives
// the rest of its turn.
type turn struct {
	entries []Entry
}

// Memory is a rolling log of conversation entries bounded by turns.
// A Memory of size n holds at most n complete turns (2n entries).
// It is owned by a single agent; callers that share an agent across
// goroutines must serialize access at the agent level.
type Memory struct {
	size  int
	turns []turn
}

// NewMemory creates a Memory holding at most size turns.
func NewMemory(size int) *Memory {
	if size <= 0 {
		size = 1
	}
	return &Memory{size: size}
}

// Size returns the configured capacity in turns.
func (m *Memory) Size() int { return m.size }

// Append records one entry. A user entry opens a new turn; an assistant
// entry completes the open turn. When the total entry count would exceed
// 2*size, the oldest whole turn is evicted before Append returns.
func (m *Memory) Append(role Role, message string) {
	entry := Entry{Role: role, Message: message, CreatedAt: time.Now().UTC()}

	n := len(m.turns)
	if role == RoleAssistant && n > 0 && len(m.turns[n-1].entries) == 1 {
		m.turns[n-1].entries = append(m.turns[n-1].entries, entry)
	} else {
		m.turns = append(m.turns, turn{entries: []Entry{entry}})
	}

	for m.entryCount() > 2*m.size && len(m.turns) > 1 {
		m.turns = m.turns[1:]
	}
}

// All returns a point-in-time copy of every entry in insertion order.
func (m *Memory) All() []Entry {
	out := make([]Entry, 0, m.entryCount())
	for _, t := range m.turns {
		out = append(out, t.entries...)
	}
	return out
}

// Len reports the current number of entries.
func (m *Memory) Len() int { return m.entryCount() }

// Clear empties the memory. Safe to call repeatedly.
func (m *Memory) Clear() {
	m.turns = nil
}

func (m *Memory) entryCount() int {
	count := 0
	for _, t := range m.turns {
		count += len(t.entries)
	}
	return count
}
