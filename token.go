package reqkit

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// DefaultTokenKey is the well-known key the auth token is persisted under.
const DefaultTokenKey = "token"

// TokenStore persists the auth token. Token returns "" with a nil error when
// no token is stored.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// MemoryTokenStore keeps the token in process memory.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryTokenStore returns a store holding token.
func NewMemoryTokenStore(token string) *MemoryTokenStore {
	return &MemoryTokenStore{token: token}
}

func (m *MemoryTokenStore) Token(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, nil
}

func (m *MemoryTokenStore) SetToken(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryTokenStore) ClearToken(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// tokenExpired reports whether token is a JWT whose exp claim lies before now.
// Opaque tokens and JWTs without exp never count as expired; the signature is
// not verified, the server remains the authority.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, ok := claims["exp"].(float64)
	if !ok {
		return false
	}
	return now.After(time.Unix(int64(exp), 0))
}
