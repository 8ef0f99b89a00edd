package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/antoniostano/tabula/internal/session"
)

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	ConversationID string `json:"conversation_id"`
	Query          string `json:"query"`
	Answer         string `json:"answer"`
}

type explainResponse struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type transcriptResponse struct {
	ConversationID string `json:"conversation_id"`
	Transcript     string `json:"transcript"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ag, err := s.conversations.Agent(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	var req chatRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "query is required")
		return
	}

	answer, err := ag.Chat(r.Context(), req.Query)
	if err != nil {
		_ = s.conversations.Touch(id, false)
		respondError(w, http.StatusBadGateway, "backend_error", err.Error())
		return
	}
	_ = s.conversations.Touch(id, true)

	respondJSON(w, http.StatusOK, chatResponse{
		ConversationID: id,
		Query:          req.Query,
		Answer:         answer,
	})
}

func (s *Server) handleClarify(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ag, err := s.conversations.Agent(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	// Parse failures are part of the payload, never an HTTP error.
	parsed := ag.ClarificationQuestions(r.Context())
	_ = s.conversations.Touch(id, false)
	respondJSON(w, http.StatusOK, parsed)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ag, err := s.conversations.Agent(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	text, err := ag.Explain(r.Context())
	if err != nil {
		_ = s.conversations.Touch(id, false)
		respondError(w, http.StatusBadGateway, "model_error", err.Error())
		return
	}
	_ = s.conversations.Touch(id, false)

	respondJSON(w, http.StatusOK, explainResponse{ConversationID: id, Text: text})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ag, err := s.conversations.Agent(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	ag.StartNewConversation()
	_ = s.conversations.Touch(id, false)
	respondJSON(w, http.StatusOK, map[string]string{
		"conversation_id": id,
		"status":          "reset",
	})
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ag, err := s.conversations.Agent(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	respondJSON(w, http.StatusOK, transcriptResponse{
		ConversationID: id,
		Transcript:     ag.Conversation(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.conversations.Get(id); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			respondError(w, http.StatusNotFound, "not_found", "conversation not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if s.store == nil {
		respondError(w, http.StatusNotImplemented, "archive_disabled", "turn archive is not configured")
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	records, err := s.store.RecentTurns(r.Context(), id, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "archive_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id,
		"turns":           records,
	})
}

func (s *Server) handlePerfLatency(w http.ResponseWriter, r *http.Request) {
	if s.latency == nil {
		respondError(w, http.StatusNotImplemented, "perf_disabled", "latency window is not configured")
		return
	}
	if strings.EqualFold(r.URL.Query().Get("reset"), "true") {
		s.latency.Reset()
	}
	respondJSON(w, http.StatusOK, s.latency.Snapshot())
}
