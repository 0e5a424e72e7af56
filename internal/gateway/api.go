// ABOUTME: HTTP API handlers for sending messages and reading conversations
// ABOUTME: Provides /api/chats/send, /api/chats, and /api/chats/{user} endpoints

package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/taskhaven/chat-gateway/internal/auth"
	"github.com/taskhaven/chat-gateway/internal/chat"
	"github.com/taskhaven/chat-gateway/internal/store"
)

// SendMessageRequest is the JSON request body for POST /api/chats/send.
type SendMessageRequest struct {
	RecipientID string `json:"recipient_id"`
	Body        string `json:"body"`
}

// MessageResponse is the JSON form of a persisted message.
type MessageResponse struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	SenderID       string `json:"sender_id"`
	RecipientID    string `json:"recipient_id"`
	Body           string `json:"body"`
	CreatedAt      string `json:"created_at"`
}

// HistoryResponse is the JSON response for GET /api/chats/{user}.
type HistoryResponse struct {
	OtherUserID string            `json:"other_user_id"`
	Messages    []MessageResponse `json:"messages"`
}

// InboxEntryResponse is one conversation in GET /api/chats.
type InboxEntryResponse struct {
	ConversationID string           `json:"conversation_id"`
	OtherUserID    string           `json:"other_user_id"`
	LastActivityAt string           `json:"last_activity_at"`
	LastMessage    *MessageResponse `json:"last_message"`
}

// InboxResponse is the JSON response for GET /api/chats.
type InboxResponse struct {
	Conversations []InboxEntryResponse `json:"conversations"`
}

func toMessageResponse(msg *store.Message) MessageResponse {
	return MessageResponse{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		RecipientID:    msg.RecipientID,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// parseSendRequest parses and validates a SendMessageRequest from the given
// reader. Returns an error if the JSON is invalid or required fields are
// missing.
func parseSendRequest(r io.Reader) (*SendMessageRequest, error) {
	var req SendMessageRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if req.RecipientID == "" {
		return nil, errors.New("recipient_id is required")
	}
	if strings.TrimSpace(req.Body) == "" {
		return nil, errors.New("body is required")
	}
	return &req, nil
}

// handleSend handles POST /api/chats/send requests. The authenticated
// caller is the sender; the conversation is created on first contact.
func (g *Gateway) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		g.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	req, err := parseSendRequest(r.Body)
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := g.chatSvc.Send(r.Context(), authCtx.UserID, req.RecipientID, req.Body)
	if errors.Is(err, chat.ErrInvalidParticipants) || errors.Is(err, chat.ErrInvalidMessage) {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("failed to send message", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	g.writeJSON(w, http.StatusCreated, toMessageResponse(msg))
}

// handleHistory handles GET /api/chats/{user} requests. It returns the
// full ordered history between the caller and the named user, empty if
// the two have never talked. Viewing a history never creates a
// conversation.
func (g *Gateway) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		g.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	otherUserID := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	if otherUserID == "" || strings.Contains(otherUserID, "/") {
		g.sendJSONError(w, http.StatusBadRequest, "invalid path")
		return
	}

	messages, err := g.chatSvc.History(r.Context(), authCtx.UserID, otherUserID)
	if errors.Is(err, chat.ErrInvalidParticipants) {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("failed to load history", "error", err, "other_user", otherUserID)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := HistoryResponse{
		OtherUserID: otherUserID,
		Messages:    make([]MessageResponse, len(messages)),
	}
	for i, msg := range messages {
		resp.Messages[i] = toMessageResponse(msg)
	}

	g.writeJSON(w, http.StatusOK, resp)
}

// handleInbox handles GET /api/chats requests. It lists the caller's
// conversations ordered by most recent activity.
func (g *Gateway) handleInbox(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	authCtx := auth.FromContext(r.Context())
	if authCtx == nil {
		g.sendJSONError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	entries, err := g.chatSvc.Inbox(r.Context(), authCtx.UserID)
	if err != nil {
		g.logger.Error("failed to load inbox", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := InboxResponse{Conversations: make([]InboxEntryResponse, len(entries))}
	for i, entry := range entries {
		item := InboxEntryResponse{
			ConversationID: entry.Conversation.ID,
			OtherUserID:    entry.OtherUserID,
			LastActivityAt: entry.Conversation.LastActivityAt.Format(time.RFC3339Nano),
		}
		if entry.LastMessage != nil {
			msg := toMessageResponse(entry.LastMessage)
			item.LastMessage = &msg
		}
		resp.Conversations[i] = item
	}

	g.writeJSON(w, http.StatusOK, resp)
}
