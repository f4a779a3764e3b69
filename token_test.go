package reqkit

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore("initial")

	token, err := store.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "initial", token)

	require.NoError(t, store.SetToken(ctx, "next"))
	token, _ = store.Token(ctx)
	assert.Equal(t, "next", token)

	require.NoError(t, store.ClearToken(ctx))
	token, _ = store.Token(ctx)
	assert.Empty(t, token)
}

func TestTokenExpired(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	expired := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Minute).Unix()})
	valid := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	noExp := signedToken(t, jwt.MapClaims{"sub": "42"})

	assert.True(t, tokenExpired(expired, now))
	assert.False(t, tokenExpired(valid, now))
	assert.False(t, tokenExpired(noExp, now))
	assert.False(t, tokenExpired("opaque-token", now), "opaque tokens are never expired")
}
