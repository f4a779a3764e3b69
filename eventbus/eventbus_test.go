package eventbus

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestOnEmitUnsubscribe(t *testing.T) {
	bus := New()

	var got []any
	unsub := bus.On("loading:show", func(data any) { got = append(got, data) })

	bus.Emit("loading:show", "first")
	unsub()
	bus.Emit("loading:show", "second")
	unsub() // idempotent

	if diff := cmp.Diff([]any{"first"}, got); diff != "" {
		t.Errorf("delivered payloads mismatch (-want +got):\n%s", diff)
	}
	if n := bus.ListenerCount("loading:show"); n != 0 {
		t.Errorf("Expected 0 listeners, got %d", n)
	}
}

func TestOnceFiresOnce(t *testing.T) {
	bus := New()
	calls := 0
	bus.Once("ping", func(any) { calls++ })

	bus.Emit("ping", nil)
	bus.Emit("ping", nil)

	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if n := bus.ListenerCount("ping"); n != 0 {
		t.Errorf("Expected listener removed, got %d", n)
	}
}

func TestEmitUsesSnapshot(t *testing.T) {
	bus := New()
	order := []string{}

	bus.On("e", func(any) {
		order = append(order, "a")
		bus.On("e", func(any) { order = append(order, "late") })
	})
	bus.On("e", func(any) { order = append(order, "b") })

	bus.Emit("e", nil)

	if diff := cmp.Diff([]string{"a", "b"}, order); diff != "" {
		t.Errorf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestUnsubscribeKeepsOthers(t *testing.T) {
	bus := New()
	var got []string
	unsubA := bus.On("e", func(any) { got = append(got, "a") })
	bus.On("e", func(any) { got = append(got, "b") })

	unsubA()
	bus.Emit("e", nil)

	if diff := cmp.Diff([]string{"b"}, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestOffClearAndNames(t *testing.T) {
	bus := New()
	bus.On("b", func(any) {})
	bus.On("a", func(any) {})
	bus.On("a", func(any) {})

	if diff := cmp.Diff([]string{"a", "b"}, bus.EventNames()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	bus.Off("a")
	if n := bus.ListenerCount("a"); n != 0 {
		t.Errorf("Expected Off to drop listeners, got %d", n)
	}

	bus.Clear()
	if names := bus.EventNames(); len(names) != 0 {
		t.Errorf("Expected no events after Clear, got %v", names)
	}
}
