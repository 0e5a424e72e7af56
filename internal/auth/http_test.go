// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers JWT mode, header fallback mode, and unknown users

package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	users map[string]bool
	err   error
}

func (d *fakeDirectory) UserExists(_ context.Context, id string) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	return d.users[id], nil
}

// echoHandler writes the authenticated user ID back for assertions.
func echoHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx := FromContext(r.Context())
		require.NotNil(t, authCtx)
		w.Write([]byte(authCtx.UserID))
	})
}

func TestHTTPAuthMiddleware_ValidJWT(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret"))
	directory := &fakeDirectory{users: map[string]bool{"user-1": true}}

	handler := HTTPAuthMiddleware(directory, verifier)(echoHandler(t))

	token, err := verifier.Generate("user-1", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())
}

func TestHTTPAuthMiddleware_MissingHeader(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret"))
	directory := &fakeDirectory{users: map[string]bool{"user-1": true}}

	handler := HTTPAuthMiddleware(directory, verifier)(echoHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestHTTPAuthMiddleware_BadToken(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret"))
	directory := &fakeDirectory{users: map[string]bool{"user-1": true}}

	handler := HTTPAuthMiddleware(directory, verifier)(echoHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestHTTPAuthMiddleware_UnknownUser(t *testing.T) {
	verifier := NewJWTVerifier([]byte("test-secret"))
	directory := &fakeDirectory{users: map[string]bool{}}

	handler := HTTPAuthMiddleware(directory, verifier)(echoHandler(t))

	token, err := verifier.Generate("ghost", time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown user")
}

func TestHTTPAuthMiddleware_HeaderFallback(t *testing.T) {
	directory := &fakeDirectory{users: map[string]bool{"dev-user": true}}

	// nil verifier puts the middleware in development mode
	handler := HTTPAuthMiddleware(directory, nil)(echoHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	req.Header.Set("X-User-ID", "dev-user")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "dev-user", rec.Body.String())
}

func TestHTTPAuthMiddleware_HeaderFallbackMissingHeader(t *testing.T) {
	directory := &fakeDirectory{users: map[string]bool{"dev-user": true}}

	handler := HTTPAuthMiddleware(directory, nil)(echoHandler(t))

	req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing X-User-ID header")
}

func TestExtractBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr string
	}{
		{"valid", "Bearer abc123", "abc123", ""},
		{"empty header", "", "", "missing authorization header"},
		{"wrong scheme", "Basic abc123", "", "invalid authorization header format"},
		{"empty token", "Bearer ", "", "empty token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, errMsg := extractBearerToken(tt.header)
			assert.Equal(t, tt.want, token)
			assert.Equal(t, tt.wantErr, errMsg)
		})
	}
}
