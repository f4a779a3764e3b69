package tokenstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/ambiyansyah-risyal/reqkit"
)

// BadgerStore keeps the token in an embedded Badger database.
type BadgerStore struct {
	db  *badger.DB
	key []byte
}

// OpenBadgerStore opens (or creates) the database at dir. An empty dir opens
// an in-memory database.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db, key: []byte(reqkit.DefaultTokenKey)}, nil
}

func (s *BadgerStore) Close() error { return s.db.Close() }

func (s *BadgerStore) Token(context.Context) (string, error) {
	var token string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			token = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("badger get token: %w", err)
	}
	return token, nil
}

func (s *BadgerStore) SetToken(_ context.Context, token string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key, []byte(token))
	})
}

func (s *BadgerStore) ClearToken(context.Context) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key)
	})
}
