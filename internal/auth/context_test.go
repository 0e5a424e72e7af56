// ABOUTME: Tests for authentication context propagation
// ABOUTME: Covers WithAuth/FromContext round trips and missing-auth behavior

package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithAuthAndFromContext(t *testing.T) {
	authCtx := &AuthContext{UserID: "user-1"}

	ctx := WithAuth(context.Background(), authCtx)

	got := FromContext(ctx)
	require.NotNil(t, got)
	assert.Equal(t, "user-1", got.UserID)
}

func TestFromContext_Missing(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
}

func TestFromContext_WrongValueType(t *testing.T) {
	ctx := context.WithValue(context.Background(), authContextKey{}, "not-an-auth-context")
	assert.Nil(t, FromContext(ctx))
}
