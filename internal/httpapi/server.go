package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/antoniostano/tabula/internal/archive"
	"github.com/antoniostano/tabula/internal/config"
	"github.com/antoniostano/tabula/internal/observability"
	"github.com/antoniostano/tabula/internal/session"
)

type Server struct {
	cfg           config.Config
	conversations *session.Manager
	store         archive.Store
	metrics       *observability.Metrics
	latency       *observability.LatencyWindow
	upgrader      websocket.Upgrader
}

func New(cfg config.Config, conversations *session.Manager, store archive.Store, metrics *observability.Metrics, latency *observability.LatencyWindow) *Server {
	return &Server{
		cfg:           cfg,
		conversations: conversations,
		store:         store,
		metrics:       metrics,
		latency:       latency,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Default: only allow browser websocket connections from the
				// same origin, so other sites cannot drive a user's
				// conversation if the service is exposed beyond localhost.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.Post("/v1/conversations", s.handleCreateConversation)
	r.Get("/v1/conversations/ws", s.handleConversationWS)
	r.Get("/v1/conversations/{id}", s.handleGetConversation)
	r.Post("/v1/conversations/{id}/end", s.handleEndConversation)
	r.Post("/v1/conversations/{id}/chat", s.handleChat)
	r.Post("/v1/conversations/{id}/clarify", s.handleClarify)
	r.Post("/v1/conversations/{id}/explain", s.handleExplain)
	r.Post("/v1/conversations/{id}/reset", s.handleReset)
	r.Get("/v1/conversations/{id}/transcript", s.handleTranscript)
	r.Get("/v1/conversations/{id}/history", s.handleHistory)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCreateConversation(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		req.UserID = "anonymous"
	}

	conv := s.conversations.Create(req.UserID)
	s.metrics.ActiveConversations.Set(float64(s.conversations.ActiveCount()))
	s.metrics.ConversationEvents.WithLabelValues("created").Inc()

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		ConversationID:  conv.ID,
		UserID:          conv.UserID,
		Status:          conv.Status,
		StartedAt:       conv.StartedAt,
		LastActivityAt:  conv.LastActivityAt,
		InactivityTTLMS: s.cfg.ConversationInactivityTimeout.Milliseconds(),
	})
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversations.Get(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

func (s *Server) handleEndConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversations.End(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}
	s.metrics.ActiveConversations.Set(float64(s.conversations.ActiveCount()))
	s.metrics.ConversationEvents.WithLabelValues("ended").Inc()
	respondJSON(w, http.StatusOK, conv)
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}
