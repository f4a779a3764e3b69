// Package eventbus is a small in-process publish/subscribe hub. reqkit uses it
// as the target of the event loading strategy ("loading:show" / "loading:hide").
package eventbus

import (
	"sort"
	"sync"
)

// Listener receives the payload passed to Emit.
type Listener func(data any)

type subscription struct {
	id       uint64
	listener Listener
}

// Bus maps event names to ordered listener lists. It is safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	events map[string][]subscription
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{events: make(map[string][]subscription)}
}

// On subscribes listener to event and returns a function that removes exactly
// that subscription.
func (b *Bus) On(event string, listener Listener) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.events[event] = append(b.events[event], subscription{id: id, listener: listener})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(event, id) })
	}
}

// Once subscribes listener for a single delivery.
func (b *Bus) Once(event string, listener Listener) (unsubscribe func()) {
	var unsub func()
	var fired sync.Once
	unsub = b.On(event, func(data any) {
		fired.Do(func() {
			unsub()
			listener(data)
		})
	})
	return unsub
}

// Emit delivers data to a snapshot of the listeners registered for event.
// Listeners added or removed during delivery do not affect the current round.
func (b *Bus) Emit(event string, data any) {
	b.mu.Lock()
	subs := append([]subscription(nil), b.events[event]...)
	b.mu.Unlock()

	for _, s := range subs {
		s.listener(data)
	}
}

// Off removes every listener for event.
func (b *Bus) Off(event string) {
	b.mu.Lock()
	delete(b.events, event)
	b.mu.Unlock()
}

// Clear removes all listeners for all events.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.events = make(map[string][]subscription)
	b.mu.Unlock()
}

// ListenerCount reports how many listeners are registered for event.
func (b *Bus) ListenerCount(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events[event])
}

// EventNames lists events with at least one listener, sorted.
func (b *Bus) EventNames() []string {
	b.mu.Lock()
	names := make([]string, 0, len(b.events))
	for name := range b.events {
		names = append(names, name)
	}
	b.mu.Unlock()
	sort.Strings(names)
	return names
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.events[event]
	for i, s := range subs {
		if s.id == id {
			subs = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(subs) == 0 {
		delete(b.events, event)
		return
	}
	b.events[event] = subs
}
