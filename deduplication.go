package reqkit

import (
	"context"
	"crypto/sha256"
	"fmt"
	"hash/fnv"
	"sync"
)

// ComputeKey returns the fingerprint of a logical request. It hashes method,
// path, the encoded query of the non-nil params (keys sorted, as sent on the
// wire) and a SHA-256 of the body, so identical inputs always yield the same
// key and requests with different URLs never share one.
func ComputeKey(path, method string, params Params, body []byte) string {
	h := fnv.New64a()
	h.Write([]byte(method))
	h.Write([]byte{0})
	h.Write([]byte(path))
	h.Write([]byte{0})

	h.Write([]byte(encodeParams(params)))
	h.Write([]byte{0})

	bodyHash := sha256.Sum256(body)
	h.Write(bodyHash[:])

	return fmt.Sprintf("%x", h.Sum64())
}

type pendingEntry struct {
	cancel context.CancelCauseFunc
}

// PendingRegistry tracks in-flight requests by fingerprint. A newer request
// with the same fingerprint supersedes the older one. It is safe for
// concurrent use.
type PendingRegistry struct {
	mu      sync.Mutex
	entries map[string]*pendingEntry
}

// NewPendingRegistry returns an empty registry.
func NewPendingRegistry() *PendingRegistry {
	return &PendingRegistry{
		entries: make(map[string]*pendingEntry),
	}
}

// Register installs cancel as the live handle for key. If another handle was
// registered under key, it is replaced first and then cancelled with
// ErrSuperseded. The returned release removes this registration only; it is a
// no-op once the entry has been superseded or released.
func (r *PendingRegistry) Register(key string, cancel context.CancelCauseFunc) (release func()) {
	entry := &pendingEntry{cancel: cancel}

	r.mu.Lock()
	previous := r.entries[key]
	r.entries[key] = entry
	r.mu.Unlock()

	if previous != nil {
		previous.cancel(ErrSuperseded)
	}

	var once sync.Once
	return func() {
		once.Do(func() { r.release(key, entry) })
	}
}

// Release removes whatever is registered under key without cancelling it.
func (r *PendingRegistry) Release(key string) {
	r.mu.Lock()
	delete(r.entries, key)
	r.mu.Unlock()
}

// Has reports whether key has a live registration.
func (r *PendingRegistry) Has(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[key]
	return ok
}

// Len returns the number of live registrations.
func (r *PendingRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

func (r *PendingRegistry) release(key string, entry *pendingEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.entries[key] == entry {
		delete(r.entries, key)
	}
}
