// ABOUTME: Tests for the HTTP chat API
// ABOUTME: Covers send, history, inbox, validation, and auth modes

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhaven/chat-gateway/internal/auth"
	"github.com/taskhaven/chat-gateway/internal/config"
	"github.com/taskhaven/chat-gateway/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			HTTPAddr:        "127.0.0.1:0",
			ShutdownTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "test.db")},
		Logging:  config.LoggingConfig{Level: "error"},
	}
}

func setupTestGateway(t *testing.T, cfg *config.Config) *Gateway {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelError}))
	gw, err := New(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() {
		gw.dispatcher.Close()
		gw.store.Close()
	})

	for _, id := range []string{"alice", "bob", "carol"} {
		require.NoError(t, gw.store.CreateUser(context.Background(), &store.User{ID: id, DisplayName: id}))
	}

	return gw
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

// doRequest runs a request through the gateway's full handler chain,
// identifying the caller with the development header.
func doRequest(gw *Gateway, method, path, userID string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, path, &buf)
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	gw.httpServer.Handler.ServeHTTP(rec, req)
	return rec
}

func TestAPI_SendAndHistory(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	rec := doRequest(gw, http.MethodPost, "/api/chats/send", "alice",
		SendMessageRequest{RecipientID: "bob", Body: "hey bob"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var sent MessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sent))
	assert.NotEmpty(t, sent.ID)
	assert.Equal(t, "alice", sent.SenderID)
	assert.Equal(t, "bob", sent.RecipientID)
	assert.Equal(t, "hey bob", sent.Body)
	assert.NotEmpty(t, sent.CreatedAt)

	// Both participants see the same history.
	for caller, other := range map[string]string{"alice": "bob", "bob": "alice"} {
		rec = doRequest(gw, http.MethodGet, "/api/chats/"+other, caller, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var hist HistoryResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
		require.Len(t, hist.Messages, 1)
		assert.Equal(t, sent.ID, hist.Messages[0].ID)
	}
}

func TestAPI_SendValidation(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	tests := []struct {
		name string
		req  SendMessageRequest
	}{
		{"missing recipient", SendMessageRequest{Body: "hi"}},
		{"blank body", SendMessageRequest{RecipientID: "bob", Body: "   "}},
		{"self send", SendMessageRequest{RecipientID: "alice", Body: "hi me"}},
		{"unknown recipient", SendMessageRequest{RecipientID: "ghost", Body: "hi"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(gw, http.MethodPost, "/api/chats/send", "alice", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestAPI_SendRejectsInvalidJSON(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	req := httptest.NewRequest(http.MethodPost, "/api/chats/send", bytes.NewBufferString("{not json"))
	req.Header.Set("X-User-ID", "alice")
	rec := httptest.NewRecorder()
	gw.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_MethodNotAllowed(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	rec := doRequest(gw, http.MethodGet, "/api/chats/send", "alice", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(gw, http.MethodPost, "/api/chats", "alice", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestAPI_RequiresIdentity(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	rec := doRequest(gw, http.MethodGet, "/api/chats", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_UnknownCallerRejected(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	rec := doRequest(gw, http.MethodGet, "/api/chats", "stranger", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_HistoryEmptyWithoutConversation(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	rec := doRequest(gw, http.MethodGet, "/api/chats/bob", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var hist HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hist))
	assert.Equal(t, "bob", hist.OtherUserID)
	assert.Empty(t, hist.Messages)
	assert.NotNil(t, hist.Messages)

	// Viewing did not create a conversation.
	rec = doRequest(gw, http.MethodGet, "/api/chats", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var inbox InboxResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inbox))
	assert.Empty(t, inbox.Conversations)
}

func TestAPI_HistoryInvalidPath(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	rec := doRequest(gw, http.MethodGet, "/api/chats/bob/extra", "alice", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_InboxOrderedByRecency(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	rec := doRequest(gw, http.MethodPost, "/api/chats/send", "alice",
		SendMessageRequest{RecipientID: "bob", Body: "first"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(gw, http.MethodPost, "/api/chats/send", "carol",
		SendMessageRequest{RecipientID: "alice", Body: "second"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(gw, http.MethodGet, "/api/chats", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var inbox InboxResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inbox))
	require.Len(t, inbox.Conversations, 2)
	assert.Equal(t, "carol", inbox.Conversations[0].OtherUserID)
	assert.Equal(t, "bob", inbox.Conversations[1].OtherUserID)
	require.NotNil(t, inbox.Conversations[0].LastMessage)
	assert.Equal(t, "second", inbox.Conversations[0].LastMessage.Body)
}

func TestAPI_JWTMode(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.JWTSecret = "test-secret"
	gw := setupTestGateway(t, cfg)

	verifier := auth.NewJWTVerifier([]byte("test-secret"))
	token, err := verifier.Generate("alice", time.Hour)
	require.NoError(t, err)

	body, _ := json.Marshal(SendMessageRequest{RecipientID: "bob", Body: "signed hello"})
	req := httptest.NewRequest(http.MethodPost, "/api/chats/send", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	gw.httpServer.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The development header is not honored in JWT mode.
	req = httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("X-User-ID", "alice")
	rec = httptest.NewRecorder()
	gw.httpServer.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAPI_HealthEndpoints(t *testing.T) {
	gw := setupTestGateway(t, testConfig(t))

	rec := doRequest(gw, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(gw, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ready")
}
