// Package session tracks live conversations. Each conversation owns its
// own agent, so no conversation state is shared across callers; the
// manager only guards its own registry.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/antoniostano/tabula/internal/agent"
)

type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

var ErrNotFound = errors.New("conversation not found")

// Conversation is the metadata view of one live conversation.
type Conversation struct {
	ID             string    `json:"conversation_id"`
	UserID         string    `json:"user_id"`
	Status         Status    `json:"status"`
	Turns          int       `json:"turns"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// AgentFactory builds the agent owned by a new conversation.
type AgentFactory func(conversationID string) *agent.Agent

type entry struct {
	conv  *Conversation
	agent *agent.Agent
}

type Manager struct {
	mu                sync.RWMutex
	entries           map[string]*entry
	newAgent          AgentFactory
	inactivityTimeout time.Duration
	onExpire          func(*Conversation)
}

func NewManager(inactivityTimeout time.Duration, newAgent AgentFactory) *Manager {
	if inactivityTimeout <= 0 {
		inactivityTimeout = 10 * time.Minute
	}
	return &Manager{
		entries:           make(map[string]*entry),
		newAgent:          newAgent,
		inactivityTimeout: inactivityTimeout,
	}
}

func (m *Manager) SetExpireHook(hook func(*Conversation)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = hook
}

func (m *Manager) Create(userID string) *Conversation {
	now := time.Now().UTC()
	c := &Conversation{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         StatusActive,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[c.ID] = &entry{conv: c, agent: m.newAgent(c.ID)}
	return clone(c)
}

func (m *Manager) Get(conversationID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(e.conv), nil
}

// Agent returns the live agent for an active conversation.
func (m *Manager) Agent(conversationID string) (*agent.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[conversationID]
	if !ok || e.conv.Status != StatusActive {
		return nil, ErrNotFound
	}
	return e.agent, nil
}

// Touch refreshes activity and optionally bumps the turn counter.
func (m *Manager) Touch(conversationID string, turnCompleted bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[conversationID]
	if !ok {
		return ErrNotFound
	}
	if turnCompleted {
		e.conv.Turns++
	}
	e.conv.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) End(conversationID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[conversationID]
	if !ok {
		return nil, ErrNotFound
	}
	e.conv.Status = StatusEnded
	e.conv.LastActivityAt = time.Now().UTC()
	return clone(e.conv), nil
}

func (m *Manager) StartJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.expireInactive()
			}
		}
	}()
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, e := range m.entries {
		if e.conv.Status == StatusActive {
			count++
		}
	}
	return count
}

func (m *Manager) expireInactive() {
	now := time.Now().UTC()
	var expired []*Conversation

	m.mu.Lock()
	for _, e := range m.entries {
		if e.conv.Status != StatusActive {
			continue
		}
		if now.Sub(e.conv.LastActivityAt) < m.inactivityTimeout {
			continue
		}
		e.conv.Status = StatusEnded
		e.conv.LastActivityAt = now
		expired = append(expired, clone(e.conv))
	}
	hook := m.onExpire
	m.mu.Unlock()

	if hook != nil {
		for _, c := range expired {
			hook(c)
		}
	}
}

func clone(c *Conversation) *Conversation {
	out := *c
	return &out
}
