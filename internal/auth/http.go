// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts JWT from Authorization header and adds the user to context

package auth

import (
	"context"
	"net/http"
	"strings"
)

// UserDirectory answers whether an identifier names a known user.
type UserDirectory interface {
	UserExists(ctx context.Context, id string) (bool, error)
}

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// HTTPAuthMiddleware creates an HTTP middleware that resolves the
// calling user and attaches an AuthContext to the request context.
//
// With a verifier, the bearer JWT's "sub" claim identifies the user.
// With a nil verifier (no secret configured), the X-User-ID header is
// trusted instead.
func HTTPAuthMiddleware(directory UserDirectory, verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string

			if verifier != nil {
				token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
				if errMsg != "" {
					http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
					return
				}

				id, err := verifier.Verify(token)
				if err != nil {
					http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
					return
				}
				userID = id
			} else {
				userID = strings.TrimSpace(r.Header.Get("X-User-ID"))
				if userID == "" {
					http.Error(w, `{"error":"missing X-User-ID header"}`, http.StatusUnauthorized)
					return
				}
			}

			exists, err := directory.UserExists(r.Context(), userID)
			if err != nil {
				http.Error(w, `{"error":"resolving user"}`, http.StatusInternalServerError)
				return
			}
			if !exists {
				http.Error(w, `{"error":"unknown user"}`, http.StatusUnauthorized)
				return
			}

			authCtx := &AuthContext{UserID: userID}
			next.ServeHTTP(w, r.WithContext(WithAuth(r.Context(), authCtx)))
		})
	}
}
