package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/tabula/internal/protocol"
	"github.com/antoniostano/tabula/internal/session"
)

const (
	wsReadLimit     = 2 << 20
	wsReadDeadline  = 120 * time.Second
	wsWriteDeadline = 10 * time.Second
)

// handleConversationWS serves the streaming chat surface. One goroutine
// owns all writes; the dispatcher only queues onto outbound.
func (s *Server) handleConversationWS(w http.ResponseWriter, r *http.Request) {
	conversationID := strings.TrimSpace(r.URL.Query().Get("conversation_id"))
	if conversationID == "" {
		respondError(w, http.StatusBadRequest, "missing_conversation_id", "query parameter conversation_id is required")
		return
	}
	if _, err := s.conversations.Get(conversationID); err != nil {
		respondError(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ConversationEvents.WithLabelValues("ws_connected").Inc()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				_ = conn.SetWriteDeadline(time.Now().Add(wsWriteDeadline))
				if err := conn.WriteJSON(msg); err != nil {
					cancel()
					return
				}
				if t, ok := messageTypeOf(msg); ok {
					s.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
				}
			}
		}
	}()

	// One dispatcher consumes inbound in arrival order, so a fast second
	// query never runs its turn before the first.
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		for msg := range inbound {
			s.dispatchWS(ctx, conversationID, msg, outbound)
		}
	}()

	conn.SetReadLimit(wsReadLimit)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			s.queueWS(outbound, protocol.ErrorEvent{
				Type:           protocol.TypeErrorEvent,
				ConversationID: conversationID,
				Code:           "invalid_client_message",
				Source:         "gateway",
				Retryable:      false,
				Detail:         err.Error(),
			})
			continue
		}
		if t, ok := messageTypeOf(parsed); ok {
			s.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}

		select {
		case <-ctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	<-dispatchDone
	<-writerDone
	s.metrics.ConversationEvents.WithLabelValues("ws_disconnected").Inc()
}

func (s *Server) dispatchWS(ctx context.Context, conversationID string, msg any, outbound chan<- any) {
	ag, err := s.conversations.Agent(conversationID)
	if err != nil {
		s.queueWS(outbound, protocol.ErrorEvent{
			Type:           protocol.TypeErrorEvent,
			ConversationID: conversationID,
			Code:           "conversation_inactive",
			Source:         "gateway",
			Retryable:      false,
			Detail:         session.ErrNotFound.Error(),
		})
		return
	}

	switch m := msg.(type) {
	case protocol.ClientQuery:
		answer, err := ag.Chat(ctx, m.Query)
		if err != nil {
			_ = s.conversations.Touch(conversationID, false)
			s.queueWS(outbound, protocol.ErrorEvent{
				Type:           protocol.TypeErrorEvent,
				ConversationID: conversationID,
				Code:           "backend_error",
				Source:         "backend",
				Retryable:      true,
				Detail:         err.Error(),
			})
			return
		}
		_ = s.conversations.Touch(conversationID, true)
		s.queueWS(outbound, protocol.Answer{
			Type:           protocol.TypeAnswer,
			ConversationID: conversationID,
			Query:          m.Query,
			Answer:         answer,
		})

	case protocol.ClientControl:
		switch m.Action {
		case protocol.ActionNewConversation:
			ag.StartNewConversation()
			_ = s.conversations.Touch(conversationID, false)
			s.queueWS(outbound, protocol.SystemEvent{
				Type:           protocol.TypeSystemEvent,
				ConversationID: conversationID,
				Code:           "conversation_reset",
			})
		case protocol.ActionClarify:
			parsed := ag.ClarificationQuestions(ctx)
			_ = s.conversations.Touch(conversationID, false)
			s.queueWS(outbound, protocol.Clarification{
				Type:           protocol.TypeClarification,
				ConversationID: conversationID,
				Success:        parsed.Success,
				Questions:      parsed.Questions,
				Message:        parsed.Message,
			})
		case protocol.ActionExplain:
			text, err := ag.Explain(ctx)
			if err != nil {
				_ = s.conversations.Touch(conversationID, false)
				s.queueWS(outbound, protocol.ErrorEvent{
					Type:           protocol.TypeErrorEvent,
					ConversationID: conversationID,
					Code:           "model_error",
					Source:         "model",
					Retryable:      true,
					Detail:         err.Error(),
				})
				return
			}
			_ = s.conversations.Touch(conversationID, false)
			s.queueWS(outbound, protocol.Explanation{
				Type:           protocol.TypeExplanation,
				ConversationID: conversationID,
				Text:           text,
			})
		}
	}
}

// queueWS never blocks the caller; a saturated outbound queue drops the
// message so websocket writes stay single-threaded.
func (s *Server) queueWS(outbound chan<- any, msg any) {
	select {
	case outbound <- msg:
	default:
		if t, ok := messageTypeOf(msg); ok {
			s.metrics.WSMessages.WithLabelValues("dropped", string(t)).Inc()
		}
	}
}

func messageTypeOf(msg any) (protocol.MessageType, bool) {
	switch m := msg.(type) {
	case protocol.ClientQuery:
		return m.Type, true
	case protocol.ClientControl:
		return m.Type, true
	case protocol.Answer:
		return m.Type, true
	case protocol.Clarification:
		return m.Type, true
	case protocol.Explanation:
		return m.Type, true
	case protocol.SystemEvent:
		return m.Type, true
	case protocol.ErrorEvent:
		return m.Type, true
	default:
		return "", false
	}
}
