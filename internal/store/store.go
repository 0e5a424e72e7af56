// ABOUTME: Store interface and data types for chat-gateway persistence
// ABOUTME: Defines Conversation, Message, User structs and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateConversation is returned when trying to create a conversation
// for a participant pair that already has one
var ErrDuplicateConversation = errors.New("conversation already exists")

// Conversation is the single thread of messages between exactly two users.
// Participants are stored in canonical (lexicographic) order so that the pairs
// {A,B} and {B,A} map to the same row; a UNIQUE index on the pair enforces
// at most one conversation per pair.
type Conversation struct {
	ID             string
	ParticipantLo  string // lexicographically smaller participant ID
	ParticipantHi  string // lexicographically larger participant ID
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// HasParticipant reports whether userID is one of the two participants.
func (c *Conversation) HasParticipant(userID string) bool {
	return c.ParticipantLo == userID || c.ParticipantHi == userID
}

// Other returns the participant that is not userID, or an empty string if
// userID is not a participant.
func (c *Conversation) Other(userID string) string {
	switch userID {
	case c.ParticipantLo:
		return c.ParticipantHi
	case c.ParticipantHi:
		return c.ParticipantLo
	}
	return ""
}

// CanonicalPair orders two user IDs lexicographically so unordered pairs
// index identically.
func CanonicalPair(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

// Message is a single immutable message within a conversation.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	RecipientID    string
	Body           string
	CreatedAt      time.Time
}

// User is a registered marketplace user. The users table is owned by the
// marketplace CRUD layer; the chat core only reads it to validate
// participants.
type User struct {
	ID          string
	DisplayName string
	CreatedAt   time.Time
}

// InboxEntry is one conversation in a user's inbox, annotated with the other
// participant and the most recent message.
type InboxEntry struct {
	Conversation *Conversation
	OtherUserID  string
	LastMessage  *Message // nil if the conversation has no messages yet
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations
	CreateConversation(ctx context.Context, conv *Conversation) error
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	GetConversationByParticipants(ctx context.Context, lo, hi string) (*Conversation, error)

	// Messages. AppendMessage assigns the creation timestamp (monotonic
	// within the conversation) and atomically bumps the conversation's
	// last-activity timestamp.
	AppendMessage(ctx context.Context, msg *Message) error
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]*Message, error)
	GetLastMessage(ctx context.Context, conversationID string) (*Message, error)

	// Inbox
	ListUserConversations(ctx context.Context, userID string, limit int) ([]*InboxEntry, error)

	// User directory
	CreateUser(ctx context.Context, user *User) error
	GetUser(ctx context.Context, id string) (*User, error)
	UserExists(ctx context.Context, id string) (bool, error)

	// Close releases any resources held by the store
	Close() error
}
