// ABOUTME: Service is the externally callable messaging surface (send, history, inbox)
// ABOUTME: Sequences resolve -> durable append -> fire-and-forget dispatch

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/taskhaven/chat-gateway/internal/store"
)

// MessageStore defines what the service needs from storage beyond the
// resolver's view.
type MessageStore interface {
	AppendMessage(ctx context.Context, msg *store.Message) error
	GetConversationMessages(ctx context.Context, conversationID string, limit int) ([]*store.Message, error)
	ListUserConversations(ctx context.Context, userID string, limit int) ([]*store.InboxEntry, error)
}

// MessageDispatcher is the live-delivery sink. Dispatch must not block.
type MessageDispatcher interface {
	Dispatch(msg *store.Message)
}

// Service composes the resolver, message store and dispatcher into the
// messaging facade the HTTP layer calls.
type Service struct {
	store      MessageStore
	resolver   *Resolver
	dispatcher MessageDispatcher
	logger     *slog.Logger
}

// NewService creates the messaging facade. Pass nil logger for default.
func NewService(msgStore MessageStore, resolver *Resolver, dispatcher MessageDispatcher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:      msgStore,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger.With("component", "chat"),
	}
}

// Send records a message from sender to recipient and returns it once it is
// durable. Live delivery is attempted afterwards but never awaited: a message
// is "sent" once persisted, independent of whether anyone received it live.
// A failure at any step means no message is visible to either party.
func (s *Service) Send(ctx context.Context, senderID, recipientID, body string) (*store.Message, error) {
	if strings.TrimSpace(body) == "" {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidMessage)
	}

	conv, err := s.resolver.Resolve(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}

	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipientID,
		Body:           body,
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	s.logger.Debug("message recorded",
		"message_id", msg.ID,
		"conversation_id", conv.ID,
		"sender_id", senderID,
		"recipient_id", recipientID)

	// Dispatch strictly after the append has committed, so a live-pushed
	// message is always also visible to a subsequent history call.
	s.dispatcher.Dispatch(msg)

	return msg, nil
}

// History returns the ordered messages between userID and otherUserID. If the
// pair has never exchanged a message, an empty slice is returned; viewing a
// history never creates a conversation.
func (s *Service) History(ctx context.Context, userID, otherUserID string) ([]*store.Message, error) {
	conv, err := s.resolver.Peek(ctx, userID, otherUserID)
	if errors.Is(err, store.ErrNotFound) {
		return []*store.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	messages, err := s.store.GetConversationMessages(ctx, conv.ID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	if messages == nil {
		messages = []*store.Message{}
	}
	return messages, nil
}

// Inbox lists every conversation containing userID, most recent activity
// first, each annotated with the other participant and last message preview.
func (s *Service) Inbox(ctx context.Context, userID string) ([]*store.InboxEntry, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty identifier", ErrInvalidParticipants)
	}

	entries, err := s.store.ListUserConversations(ctx, userID, 0)
	if err != nil {
		return nil, fmt.Errorf("loading inbox: %w", err)
	}
	if entries == nil {
		entries = []*store.InboxEntry{}
	}
	return entries, nil
}
