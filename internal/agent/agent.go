// Package agent orchestrates one conversation: it owns the bounded
// conversation memory, forwards queries to the backend collaborator, and
// exposes clarification/explanation operations against the model
// collaborator through the response parser.
package agent

import (
	"context"
	"sync"
	"time"

	"github.com/antoniostano/tabula/internal/archive"
	"github.com/antoniostano/tabula/internal/backend"
	"github.com/antoniostano/tabula/internal/conversation"
	"github.com/antoniostano/tabula/internal/model"
	"github.com/antoniostano/tabula/internal/observability"
	"github.com/antoniostano/tabula/internal/policy"
	"github.com/antoniostano/tabula/internal/prompt"
	"github.com/antoniostano/tabula/internal/response"
)

const archiveSaveTimeout = 5 * time.Second

// Agent serves a single logical conversation. The memory it owns is not
// shared; one mutex serializes a whole turn so concurrent HTTP handlers
// never observe a torn transcript.
type Agent struct {
	mu      sync.Mutex
	id      string
	memory  *conversation.Memory
	backend backend.Runner
	model   model.Completer

	archive        archive.Store
	metrics        *observability.Metrics
	latency        *observability.LatencyWindow
	enforcePrivacy bool
}

// Options configures a new Agent. Backend and Model are required;
// Archive, Metrics and Latency are optional.
type Options struct {
	ID             string
	MemorySize     int
	Backend        backend.Runner
	Model          model.Completer
	Archive        archive.Store
	Metrics        *observability.Metrics
	Latency        *observability.LatencyWindow
	EnforcePrivacy bool
}

func New(opts Options) *Agent {
	return &Agent{
		id:             opts.ID,
		memory:         conversation.NewMemory(opts.MemorySize),
		backend:        opts.Backend,
		model:          opts.Model,
		archive:        opts.Archive,
		metrics:        opts.Metrics,
		latency:        opts.Latency,
		enforcePrivacy: opts.EnforcePrivacy,
	}
}

// ID returns the conversation identifier this agent serves.
func (a *Agent) ID() string { return a.id }

// Chat executes one turn: the backend answers the query with the current
// transcript as context, and only on success is the (question, answer)
// pair appended to memory. A backend failure propagates unchanged and
// leaves memory untouched.
func (a *Agent) Chat(ctx context.Context, query string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	started := time.Now()
	answer, err := a.backend.Execute(ctx, backend.Request{
		ConversationID:      a.id,
		Query:               query,
		ConversationContext: a.contextLocked(),
	})
	elapsed := time.Since(started)
	a.latency.Observe(observability.StageBackendExecute, float64(elapsed.Milliseconds()))
	if a.metrics != nil {
		a.metrics.ObserveBackendLatency(elapsed)
	}
	if err != nil {
		a.countTurn("error")
		return "", err
	}

	a.memory.Append(conversation.RoleUser, query)
	a.memory.Append(conversation.RoleAssistant, answer)
	a.countTurn("ok")
	a.latency.Observe(observability.StageTurnTotal, float64(time.Since(started).Milliseconds()))

	a.archiveEntry(conversation.RoleUser, query)
	a.archiveEntry(conversation.RoleAssistant, answer)

	return answer, nil
}

// StartNewConversation drops all remembered turns.
func (a *Agent) StartNewConversation() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.memory.Clear()
	if a.metrics != nil {
		a.metrics.ConversationEvents.WithLabelValues("reset").Inc()
	}
}

// Conversation returns the rendered question/answer transcript.
func (a *Agent) Conversation() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return conversation.Transcript(a.memory.All())
}

// ClarificationQuestions asks the model for follow-up questions about the
// conversation so far. Malformed model output never fails the call; it
// comes back as a Success=false result.
func (a *Agent) ClarificationQuestions(ctx context.Context) response.Clarification {
	started := time.Now()
	raw, err := a.model.Complete(ctx, prompt.Clarification(a.contextSnapshot()))
	a.latency.Observe(observability.StageModelClarify, float64(time.Since(started).Milliseconds()))
	if err != nil && a.metrics != nil {
		a.metrics.ProviderErrors.WithLabelValues(a.model.Name(), "clarify").Inc()
	}

	parsed := response.ParseClarification(raw, err)
	if a.metrics != nil {
		result := "ok"
		if !parsed.Success {
			result = "failed"
		}
		a.metrics.ClarificationParses.WithLabelValues(result).Inc()
	}
	if !parsed.Success {
		a.latency.ObserveIndicator("clarification_parse_failed")
	}
	return parsed
}

// Explain asks the model for a plain-language account of the last answer.
// The model's text is passed through unmodified; a call failure
// propagates unchanged.
func (a *Agent) Explain(ctx context.Context) (string, error) {
	started := time.Now()
	raw, err := a.model.Complete(ctx, prompt.Explanation(a.contextSnapshot()))
	a.latency.Observe(observability.StageModelExplain, float64(time.Since(started).Milliseconds()))
	if err != nil && a.metrics != nil {
		a.metrics.ProviderErrors.WithLabelValues(a.model.Name(), "explain").Inc()
	}
	return response.ParseExplanation(raw, err)
}

func (a *Agent) contextSnapshot() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.contextLocked()
}

// contextLocked renders the transcript sent to collaborators, with PII
// masked when the privacy option is on. Callers must hold a.mu.
func (a *Agent) contextLocked() string {
	transcript := conversation.Transcript(a.memory.All())
	if a.enforcePrivacy {
		transcript, _ = policy.RedactPII(transcript)
	}
	return transcript
}

func (a *Agent) countTurn(outcome string) {
	if a.metrics != nil {
		a.metrics.Turns.WithLabelValues(outcome).Inc()
	}
}

func (a *Agent) archiveEntry(role conversation.Role, content string) {
	if a.archive == nil {
		return
	}

	record := archive.TurnRecord{
		ConversationID: a.id,
		Role:           string(role),
		Content:        content,
	}
	if a.enforcePrivacy {
		if redacted, changed := policy.RedactPII(content); changed {
			record.Content = redacted
			record.Redacted = true
		}
	}

	go func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), archiveSaveTimeout)
		defer cancel()
		if err := a.archive.SaveTurn(saveCtx, record); err != nil && a.metrics != nil {
			a.metrics.ConversationEvents.WithLabelValues("archive_save_failed").Inc()
		}
	}()
}
