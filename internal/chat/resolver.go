// ABOUTME: Resolver maps an unordered participant pair to exactly one conversation
// ABOUTME: Creation is optimistic - a uniqueness violation means another resolver won the race

package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/taskhaven/chat-gateway/internal/store"
)

// ConversationStore defines what the resolver needs from storage.
type ConversationStore interface {
	CreateConversation(ctx context.Context, conv *store.Conversation) error
	GetConversationByParticipants(ctx context.Context, lo, hi string) (*store.Conversation, error)
}

// UserDirectory is the boundary to the marketplace user registry. The chat
// core only checks that participant identifiers resolve to known users.
type UserDirectory interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// Resolver returns the single conversation for a participant pair, creating
// it on first contact.
type Resolver struct {
	store     ConversationStore
	directory UserDirectory
	logger    *slog.Logger
}

// NewResolver creates a resolver. Pass nil logger for default.
func NewResolver(convStore ConversationStore, directory UserDirectory, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:     convStore,
		directory: directory,
		logger:    logger.With("component", "resolver"),
	}
}

// Resolve returns the conversation for the unordered pair {userA, userB},
// creating it if none exists. Creation races with concurrent resolvers for
// the same pair are settled by the store's uniqueness constraint: a duplicate
// error means the other resolver won, so the now-existing conversation is
// fetched and returned.
func (r *Resolver) Resolve(ctx context.Context, userA, userB string) (*store.Conversation, error) {
	if err := r.validatePair(ctx, userA, userB); err != nil {
		return nil, err
	}

	lo, hi := store.CanonicalPair(userA, userB)

	conv, err := r.store.GetConversationByParticipants(ctx, lo, hi)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("looking up conversation: %w", err)
	}

	now := time.Now()
	conv = &store.Conversation{
		ID:             uuid.New().String(),
		ParticipantLo:  lo,
		ParticipantHi:  hi,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := r.store.CreateConversation(ctx, conv); err != nil {
		if errors.Is(err, store.ErrDuplicateConversation) {
			r.logger.Debug("conversation creation hit duplicate, retrying lookup",
				"participant_lo", lo,
				"participant_hi", hi)
			existing, lookupErr := r.store.GetConversationByParticipants(ctx, lo, hi)
			if lookupErr != nil {
				return nil, fmt.Errorf("lookup after duplicate conversation: %w", lookupErr)
			}
			return existing, nil
		}
		return nil, fmt.Errorf("creating conversation: %w", err)
	}

	r.logger.Debug("conversation created", "id", conv.ID, "participant_lo", lo, "participant_hi", hi)
	return conv, nil
}

// Peek returns the conversation for the pair without creating one. Returns
// store.ErrNotFound when the pair has never exchanged a message; viewing a
// history must not create a conversation.
func (r *Resolver) Peek(ctx context.Context, userA, userB string) (*store.Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, fmt.Errorf("%w: %q and %q", ErrInvalidParticipants, userA, userB)
	}

	lo, hi := store.CanonicalPair(userA, userB)
	return r.store.GetConversationByParticipants(ctx, lo, hi)
}

// validatePair rejects self-conversations and identifiers unknown to the
// user directory.
func (r *Resolver) validatePair(ctx context.Context, userA, userB string) error {
	if userA == "" || userB == "" {
		return fmt.Errorf("%w: empty identifier", ErrInvalidParticipants)
	}
	if userA == userB {
		return fmt.Errorf("%w: cannot message yourself", ErrInvalidParticipants)
	}

	for _, id := range []string{userA, userB} {
		exists, err := r.directory.UserExists(ctx, id)
		if err != nil {
			return fmt.Errorf("checking user %q: %w", id, err)
		}
		if !exists {
			return fmt.Errorf("%w: unknown user %q", ErrInvalidParticipants, id)
		}
	}
	return nil
}
