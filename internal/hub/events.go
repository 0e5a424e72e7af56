// ABOUTME: Wire event types pushed to websocket clients
// ABOUTME: Defines the presence and message JSON envelopes

package hub

import (
	"time"

	"github.com/taskhaven/chat-gateway/internal/store"
)

// Event type identifiers on the wire.
const (
	EventPresence = "presence"
	EventMessage  = "message"
)

// Event is the envelope for everything pushed to a client. Exactly one
// of Online or Message is populated, keyed by Type.
type Event struct {
	Type    string          `json:"type"`
	Online  []string        `json:"online,omitempty"`
	Message *MessagePayload `json:"message,omitempty"`
}

// MessagePayload is the wire form of a persisted message.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	RecipientID    string    `json:"recipient_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

func messageEvent(msg *store.Message) Event {
	return Event{
		Type: EventMessage,
		Message: &MessagePayload{
			ID:             msg.ID,
			ConversationID: msg.ConversationID,
			SenderID:       msg.SenderID,
			RecipientID:    msg.RecipientID,
			Body:           msg.Body,
			CreatedAt:      msg.CreatedAt,
		},
	}
}

func presenceEvent(online []string) Event {
	if online == nil {
		online = []string{}
	}
	return Event{Type: EventPresence, Online: online}
}
