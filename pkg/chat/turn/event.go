package turn

import "github.com/google/uuid"

const (
	EventToken   = "token"
	EventMessage = "message"
	EventError   = "error"
)

// Event is pushed to the conversation's subscribers.
type Event struct {
	Type           string    `json:"type"`
	ConversationID uuid.UUID `json:"conversation_id"`
	Token          string    `json:"token,omitempty"`
	Content        string    `json:"content,omitempty"`
	Final          bool      `json:"final,omitempty"`
	Error          string    `json:"error,omitempty"`
}

func TokenEvent(conversationID uuid.UUID, token string) Event {
	return Event{Type: EventToken, ConversationID: conversationID, Token: token}
}

func MessageEvent(conversationID uuid.UUID, content string) Event {
	return Event{Type: EventMessage, ConversationID: conversationID, Content: content, Final: true}
}

func ErrorEvent(conversationID uuid.UUID, msg string) Event {
	return Event{Type: EventError, ConversationID: conversationID, Error: msg}
}

// Sink delivers events to subscribers. Publish must not block.
type Sink interface {
	Publish(conversationID uuid.UUID, ev Event)
}

type NopSink struct{}

func (NopSink) Publish(uuid.UUID, Event) {}
