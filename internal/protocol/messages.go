package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	TypeClientQuery   MessageType = "client_query"
	TypeClientControl MessageType = "client_control"
	TypeAnswer        MessageType = "answer"
	TypeClarification MessageType = "clarification"
	TypeExplanation   MessageType = "explanation"
	TypeSystemEvent   MessageType = "system_event"
	TypeErrorEvent    MessageType = "error_event"
)

// Client control actions.
const (
	ActionNewConversation = "new_conversation"
	ActionClarify         = "clarify"
	ActionExplain         = "explain"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type ClientQuery struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Query          string      `json:"query"`
	TSMs           int64       `json:"ts_ms,omitempty"`
}

type ClientControl struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Action         string      `json:"action"`
	TSMs           int64       `json:"ts_ms,omitempty"`
}

type Answer struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Query          string      `json:"query"`
	Answer         string      `json:"answer"`
}

type Clarification struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Success        bool        `json:"success"`
	Questions      []string    `json:"questions"`
	Message        string      `json:"message"`
}

type Explanation struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Text           string      `json:"text"`
}

type SystemEvent struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Code           string      `json:"code"`
	Detail         string      `json:"detail,omitempty"`
}

type ErrorEvent struct {
	Type           MessageType `json:"type"`
	ConversationID string      `json:"conversation_id"`
	Code           string      `json:"code"`
	Source         string      `json:"source"`
	Retryable      bool        `json:"retryable"`
	Detail         string      `json:"detail"`
}

// ParseClientMessage decodes and validates an inbound websocket payload.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeClientQuery:
		var msg ClientQuery
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.ConversationID == "" || msg.Query == "" {
			return nil, errors.New("invalid client_query")
		}
		return msg, nil
	case TypeClientControl:
		var msg ClientControl
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.ConversationID == "" {
			return nil, errors.New("invalid client_control")
		}
		switch msg.Action {
		case ActionNewConversation, ActionClarify, ActionExplain:
		default:
			return nil, fmt.Errorf("unknown control action %q", msg.Action)
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}
