package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/antoniostano/tabula/internal/archive"
	"github.com/antoniostano/tabula/internal/backend"
	"github.com/antoniostano/tabula/internal/conversation"
)

type stubRunner struct {
	mu      sync.Mutex
	answer  string
	err     error
	lastReq backend.Request
	calls   int
}

func (r *stubRunner) Execute(_ context.Context, req backend.Request) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.lastReq = req
	if r.err != nil {
		return "", r.err
	}
	return r.answer, nil
}

type stubCompleter struct {
	output     string
	err        error
	lastPrompt string
}

func (c *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	c.lastPrompt = prompt
	if c.err != nil {
		return "", c.err
	}
	return c.output, nil
}

func (c *stubCompleter) Name() string { return "stub" }

type recordingStore struct {
	saved chan archive.TurnRecord
}

func newRecordingStore() *recordingStore {
	return &recordingStore{saved: make(chan archive.TurnRecord, 16)}
}

func (s *recordingStore) SaveTurn(_ context.Context, record archive.TurnRecord) error {
	s.saved <- record
	return nil
}

func (s *recordingStore) RecentTurns(_ context.Context, _ string, _ int) ([]archive.TurnRecord, error) {
	return nil, nil
}

func (s *recordingStore) Close() error { return nil }

func newTestAgent(runner *stubRunner, completer *stubCompleter, memorySize int) *Agent {
	return New(Options{
		ID:         "conv-1",
		MemorySize: memorySize,
		Backend:    runner,
		Model:      completer,
	})
}

func TestChatReturnsAnswerAndAppendsMemory(t *testing.T) {
	runner := &stubRunner{answer: "United States has the highest gdp"}
	a := newTestAgent(runner, &stubCompleter{}, 10)

	answer, err := a.Chat(context.Background(), "Which country has the highest gdp?")
	if err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if answer != "United States has the highest gdp" {
		t.Fatalf("answer = %q", answer)
	}
	if runner.calls != 1 {
		t.Fatalf("backend calls = %d, want 1", runner.calls)
	}

	want := "Question: Which country has the highest gdp?\nAnswer: United States has the highest gdp"
	if got := a.Conversation(); got != want {
		t.Fatalf("Conversation() = %q, want %q", got, want)
	}
}

func TestChatForwardsTranscriptAsContext(t *testing.T) {
	runner := &stubRunner{answer: "A1"}
	a := newTestAgent(runner, &stubCompleter{}, 10)

	if _, err := a.Chat(context.Background(), "Q1"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if runner.lastReq.ConversationContext != "" {
		t.Fatalf("first turn context = %q, want empty", runner.lastReq.ConversationContext)
	}

	runner.answer = "A2"
	if _, err := a.Chat(context.Background(), "Q2"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if runner.lastReq.ConversationContext != "Question: Q1\nAnswer: A1" {
		t.Fatalf("second turn context = %q", runner.lastReq.ConversationContext)
	}
	if runner.lastReq.ConversationID != "conv-1" {
		t.Fatalf("conversation id = %q", runner.lastReq.ConversationID)
	}
}

func TestChatMemoryRollup(t *testing.T) {
	runner := &stubRunner{answer: "United States has the highest gdp"}
	a := newTestAgent(runner, &stubCompleter{}, 1)

	if _, err := a.Chat(context.Background(), "Which country has the highest gdp?"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	runner.answer = "United Kingdom has the second highest gdp"
	if _, err := a.Chat(context.Background(), "Which country has the second highest gdp?"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	want := "Question: Which country has the second highest gdp?\nAnswer: United Kingdom has the second highest gdp"
	if got := a.Conversation(); got != want {
		t.Fatalf("Conversation() after rollup = %q, want only the second turn", got)
	}
}

func TestChatBackendFailureLeavesMemoryUntouched(t *testing.T) {
	runner := &stubRunner{err: errors.New("no such column")}
	a := newTestAgent(runner, &stubCompleter{}, 10)

	_, err := a.Chat(context.Background(), "Q1")
	if err == nil || !strings.Contains(err.Error(), "no such column") {
		t.Fatalf("Chat() error = %v, want backend failure surfaced unchanged", err)
	}
	if got := a.Conversation(); got != "" {
		t.Fatalf("Conversation() after failed turn = %q, want empty", got)
	}
}

func TestStartNewConversation(t *testing.T) {
	runner := &stubRunner{answer: "A1"}
	a := newTestAgent(runner, &stubCompleter{}, 10)

	if _, err := a.Chat(context.Background(), "Q1"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	a.StartNewConversation()

	if got := a.Conversation(); got != "" {
		t.Fatalf("Conversation() after reset = %q, want empty", got)
	}
	// Reset is idempotent.
	a.StartNewConversation()
	if got := a.Conversation(); got != "" {
		t.Fatalf("Conversation() after second reset = %q, want empty", got)
	}
}

func TestClarificationQuestionsSuccess(t *testing.T) {
	completer := &stubCompleter{output: `["What is happiest index for you?", "What is unit of measure for gdp?"]`}
	a := newTestAgent(&stubRunner{answer: "A1"}, completer, 10)

	if _, err := a.Chat(context.Background(), "Q1"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	got := a.ClarificationQuestions(context.Background())
	if !got.Success {
		t.Fatalf("Success = false, want true (message: %q)", got.Message)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("len(Questions) = %d, want 2", len(got.Questions))
	}
	if !strings.Contains(completer.lastPrompt, "Question: Q1") {
		t.Fatalf("clarification prompt missing transcript: %q", completer.lastPrompt)
	}
}

func TestClarificationQuestionsMaxThree(t *testing.T) {
	raw := `["a","b","c","d"]`
	a := newTestAgent(&stubRunner{}, &stubCompleter{output: raw}, 10)

	got := a.ClarificationQuestions(context.Background())
	if !got.Success {
		t.Fatalf("Success = false, want true")
	}
	if len(got.Questions) != 3 {
		t.Fatalf("len(Questions) = %d, want 3", len(got.Questions))
	}
	if got.Message != raw {
		t.Fatalf("Message = %q, want untruncated raw text", got.Message)
	}
}

func TestClarificationQuestionsNonJSON(t *testing.T) {
	a := newTestAgent(&stubRunner{}, &stubCompleter{output: "This is not json response"}, 10)

	got := a.ClarificationQuestions(context.Background())
	if got.Success {
		t.Fatalf("Success = true, want false")
	}
	if len(got.Questions) != 0 {
		t.Fatalf("len(Questions) = %d, want 0", len(got.Questions))
	}
}

func TestClarificationQuestionsModelFailure(t *testing.T) {
	a := newTestAgent(&stubRunner{}, &stubCompleter{err: errors.New("this is a mock exception")}, 10)

	got := a.ClarificationQuestions(context.Background())
	if got.Success {
		t.Fatalf("Success = true, want false")
	}
	if got.Message != "this is a mock exception" {
		t.Fatalf("Message = %q, want stringified error", got.Message)
	}
}

func TestExplainPassesModelTextThrough(t *testing.T) {
	text := "I matched names to amounts, like connecting pieces of a puzzle."
	a := newTestAgent(&stubRunner{}, &stubCompleter{output: text}, 10)

	got, err := a.Explain(context.Background())
	if err != nil {
		t.Fatalf("Explain() error = %v", err)
	}
	if got != text {
		t.Fatalf("Explain() = %q, want unmodified model text", got)
	}
}

func TestExplainPropagatesModelError(t *testing.T) {
	callErr := errors.New("model unavailable")
	a := newTestAgent(&stubRunner{}, &stubCompleter{err: callErr}, 10)

	_, err := a.Explain(context.Background())
	if !errors.Is(err, callErr) {
		t.Fatalf("Explain() error = %v, want propagated model error", err)
	}
}

func TestChatArchivesBothEntries(t *testing.T) {
	store := newRecordingStore()
	a := New(Options{
		ID:         "conv-9",
		MemorySize: 10,
		Backend:    &stubRunner{answer: "A1"},
		Model:      &stubCompleter{},
		Archive:    store,
	})

	if _, err := a.Chat(context.Background(), "Q1"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	var got []archive.TurnRecord
	for len(got) < 2 {
		select {
		case r := <-store.saved:
			got = append(got, r)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for archived turns, have %d", len(got))
		}
	}

	roles := map[string]string{}
	for _, r := range got {
		if r.ConversationID != "conv-9" {
			t.Fatalf("ConversationID = %q, want conv-9", r.ConversationID)
		}
		roles[r.Role] = r.Content
	}
	if roles[string(conversation.RoleUser)] != "Q1" || roles[string(conversation.RoleAssistant)] != "A1" {
		t.Fatalf("archived roles = %+v", roles)
	}
}

func TestChatRedactsArchivedContentWhenPrivacyEnforced(t *testing.T) {
	store := newRecordingStore()
	a := New(Options{
		ID:             "conv-9",
		MemorySize:     10,
		Backend:        &stubRunner{answer: "sent to sam@example.com"},
		Model:          &stubCompleter{},
		Archive:        store,
		EnforcePrivacy: true,
	})

	if _, err := a.Chat(context.Background(), "Where did the report go?"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	deadline := time.After(2 * time.Second)
	for i := 0; i < 2; i++ {
		select {
		case r := <-store.saved:
			if r.Role == string(conversation.RoleAssistant) {
				if !r.Redacted {
					t.Fatalf("assistant record not marked redacted: %+v", r)
				}
				if strings.Contains(r.Content, "sam@example.com") {
					t.Fatalf("archived content leaked PII: %q", r.Content)
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for archived turns")
		}
	}
}

func TestPrivacyRedactsCollaboratorContext(t *testing.T) {
	runner := &stubRunner{answer: "ok"}
	a := New(Options{
		ID:             "conv-9",
		MemorySize:     10,
		Backend:        runner,
		Model:          &stubCompleter{},
		EnforcePrivacy: true,
	})

	runner.answer = "reach me at sam@example.com"
	if _, err := a.Chat(context.Background(), "Q1"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}
	if _, err := a.Chat(context.Background(), "Q2"); err != nil {
		t.Fatalf("Chat() error = %v", err)
	}

	if strings.Contains(runner.lastReq.ConversationContext, "sam@example.com") {
		t.Fatalf("backend context leaked PII: %q", runner.lastReq.ConversationContext)
	}
	if !strings.Contains(runner.lastReq.ConversationContext, "[REDACTED_EMAIL]") {
		t.Fatalf("backend context missing redaction marker: %q", runner.lastReq.ConversationContext)
	}
}
