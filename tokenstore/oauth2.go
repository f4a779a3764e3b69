package tokenstore

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/oauth2"
)

// ErrReadOnly is returned by SetToken on stores whose token is minted elsewhere.
var ErrReadOnly = errors.New("tokenstore: token source is read-only")

// OAuth2Store serves access tokens from an oauth2.TokenSource, which handles
// refreshing. ClearToken drops the cached token so the next call fetches a
// fresh one, which is what a 401 calls for.
type OAuth2Store struct {
	mu     sync.Mutex
	newSrc func() oauth2.TokenSource
	src    oauth2.TokenSource
}

// NewOAuth2Store wraps a token source factory, e.g. a clientcredentials
// Config's TokenSource method bound to a context.
func NewOAuth2Store(newSource func() oauth2.TokenSource) *OAuth2Store {
	return &OAuth2Store{newSrc: newSource}
}

func (s *OAuth2Store) Token(context.Context) (string, error) {
	s.mu.Lock()
	if s.src == nil {
		s.src = oauth2.ReuseTokenSource(nil, s.newSrc())
	}
	src := s.src
	s.mu.Unlock()

	tok, err := src.Token()
	if err != nil {
		return "", err
	}
	return tok.AccessToken, nil
}

// SetToken always fails; tokens come from the source.
func (s *OAuth2Store) SetToken(context.Context, string) error {
	return ErrReadOnly
}

func (s *OAuth2Store) ClearToken(context.Context) error {
	s.mu.Lock()
	s.src = nil
	s.mu.Unlock()
	return nil
}
