package tokenstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/google/renameio/v2"

	"github.com/ambiyansyah-risyal/reqkit"
)

// FileStore persists tokens in a small JSON object on disk, the way a browser
// keeps them in local storage. Writes replace the file atomically.
type FileStore struct {
	mu   sync.Mutex
	path string
	key  string
}

// NewFileStore returns a store backed by path. The file is created on the
// first SetToken.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, key: reqkit.DefaultTokenKey}
}

func (s *FileStore) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readLocked()
	if err != nil {
		return "", err
	}
	return values[s.key], nil
}

func (s *FileStore) SetToken(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readLocked()
	if err != nil {
		return err
	}
	values[s.key] = token
	return s.writeLocked(values)
}

func (s *FileStore) ClearToken(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	values, err := s.readLocked()
	if err != nil {
		return err
	}
	if _, ok := values[s.key]; !ok {
		return nil
	}
	delete(values, s.key)
	return s.writeLocked(values)
}

func (s *FileStore) readLocked() (map[string]string, error) {
	// #nosec G304 -- path is chosen by the application
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read token file: %w", err)
	}
	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("decode token file: %w", err)
	}
	return values, nil
}

func (s *FileStore) writeLocked(values map[string]string) error {
	data, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode token file: %w", err)
	}
	if err := renameio.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	return nil
}
