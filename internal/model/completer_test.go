package model

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

func TestNewCompleterModes(t *testing.T) {
	if _, err := NewCompleter(Config{Mode: "openai"}); err == nil {
		t.Fatalf("openai mode without key should fail")
	}
	if _, err := NewCompleter(Config{Mode: "http"}); err == nil {
		t.Fatalf("http mode without url should fail")
	}
	if _, err := NewCompleter(Config{Mode: "wat"}); err == nil {
		t.Fatalf("unknown mode should fail")
	}

	c, err := NewCompleter(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("NewCompleter(auto) error = %v", err)
	}
	if c.Name() != "mock" {
		t.Fatalf("auto without key or url = %q, want mock", c.Name())
	}

	c, err = NewCompleter(Config{Mode: "auto", OpenAIAPIKey: "sk-test"})
	if err != nil {
		t.Fatalf("NewCompleter(auto, key) error = %v", err)
	}
	if c.Name() != "openai" {
		t.Fatalf("auto with key = %q, want openai", c.Name())
	}

	c, err = NewCompleter(Config{Mode: "auto", HTTPURL: "http://localhost:9/complete"})
	if err != nil {
		t.Fatalf("NewCompleter(auto, url) error = %v", err)
	}
	if c.Name() != "http" {
		t.Fatalf("auto with url = %q, want http", c.Name())
	}
}

func TestHTTPCompleterJSONBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req["prompt"] == "" {
			t.Errorf("missing prompt in request")
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": `["a","b"]`})
	}))
	defer ts.Close()

	c := NewHTTPCompleter(ts.URL)
	got, err := c.Complete(context.Background(), "clarify please")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != `["a","b"]` {
		t.Fatalf("Complete() = %q", got)
	}
}

func TestHTTPCompleterPlainTextBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain completion"))
	}))
	defer ts.Close()

	c := NewHTTPCompleter(ts.URL)
	got, err := c.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "plain completion" {
		t.Fatalf("Complete() = %q", got)
	}
}

func TestHTTPCompleterRetriesRetryableStatus(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"text": "ok"})
	}))
	defer ts.Close()

	c := NewHTTPCompleter(ts.URL)
	got, err := c.Complete(context.Background(), "p")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got != "ok" {
		t.Fatalf("Complete() = %q, want %q", got, "ok")
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestHTTPCompleterSurfacesClientError(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("prompt too long"))
	}))
	defer ts.Close()

	c := NewHTTPCompleter(ts.URL)
	_, err := c.Complete(context.Background(), "p")
	if err == nil || !strings.Contains(err.Error(), "prompt too long") {
		t.Fatalf("error = %v, want detail preserved", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1 (400 is not retryable)", calls.Load())
	}
}

func TestMockCompleterClarificationShape(t *testing.T) {
	c := NewMockCompleter()
	got, err := c.Complete(context.Background(), "Reply with a JSON array of strings and nothing else.")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	var questions []string
	if err := json.Unmarshal([]byte(got), &questions); err != nil {
		t.Fatalf("mock clarification output is not a JSON array of strings: %q", got)
	}
	if len(questions) == 0 {
		t.Fatalf("mock clarification output empty")
	}
}
