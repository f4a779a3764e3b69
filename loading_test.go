package reqkit

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ambiyansyah-risyal/reqkit/eventbus"
	"github.com/ambiyansyah-risyal/reqkit/i18n"
)

func TestLoadingSignalShowsOnceForConcurrentCalls(t *testing.T) {
	notifier := &RecordingNotifier{}
	signal := NewLoadingSignal(DefaultLoadingConfig(), LoadingSinks{Toast: notifier})

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			signal.Acquire()
		}()
	}
	wg.Wait()

	assert.Equal(t, n, signal.Count())
	assert.True(t, signal.Visible())
	assert.Len(t, notifier.ByLevel("loading"), 1, "shown exactly once")

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			signal.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 0, signal.Count())
	assert.False(t, signal.Visible())
	assert.Equal(t, 1, notifier.Dismissals(), "hidden exactly once")
}

func TestLoadingSignalOverReleaseIsNoop(t *testing.T) {
	notifier := &RecordingNotifier{}
	signal := NewLoadingSignal(DefaultLoadingConfig(), LoadingSinks{Toast: notifier})

	signal.Release()
	assert.Equal(t, 0, signal.Count())

	signal.Acquire()
	signal.Release()
	signal.Release()
	signal.Release()

	assert.Equal(t, 0, signal.Count())
	assert.Equal(t, 1, notifier.Dismissals(), "no ghost hides")

	signal.Acquire()
	assert.Len(t, notifier.ByLevel("loading"), 2, "a fresh cycle shows again")
	signal.Release()
}

func TestLoadingSignalDefaultTextIsTranslated(t *testing.T) {
	catalog, err := i18n.NewDefault()
	require.NoError(t, err)
	require.NoError(t, catalog.SetLanguage("en"))

	notifier := &RecordingNotifier{}
	signal := NewLoadingSignal(DefaultLoadingConfig(), LoadingSinks{Toast: notifier, Translator: catalog})

	signal.Acquire()
	signal.Release()

	want := []Notification{{Level: "loading", Text: catalog.T("network.loadingText")}}
	if diff := cmp.Diff(want, notifier.Notifications()); diff != "" {
		t.Errorf("notifications mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadingSignalStoreStrategy(t *testing.T) {
	store := &MemoryLoadingStore{}
	signal := NewLoadingSignal(LoadingConfig{Strategy: LoadingStoreStrategy, Text: "Saving"}, LoadingSinks{Store: store})

	signal.Acquire()
	signal.Acquire()
	assert.True(t, store.IsLoading())
	assert.Equal(t, "Saving", store.Text())
	assert.Equal(t, 1, store.Count(), "store sees one show for nested acquisitions")

	signal.Release()
	assert.True(t, store.IsLoading())

	signal.Release()
	assert.False(t, store.IsLoading())
	assert.Empty(t, store.Text())
}

func TestLoadingSignalEventStrategy(t *testing.T) {
	bus := eventbus.New()
	var events []string
	var payloads []any
	bus.On(EventLoadingShow, func(data any) {
		events = append(events, EventLoadingShow)
		payloads = append(payloads, data)
	})
	bus.On(EventLoadingHide, func(any) { events = append(events, EventLoadingHide) })

	signal := NewLoadingSignal(LoadingConfig{Strategy: LoadingEvent, Text: "Busy"}, LoadingSinks{Bus: bus})
	signal.Acquire()
	signal.Acquire()
	signal.Release()
	signal.Release()

	assert.Equal(t, []string{EventLoadingShow, EventLoadingHide}, events)
	assert.Equal(t, []any{LoadingEventPayload{Text: "Busy"}}, payloads)
}

func TestLoadingSignalListenersMayReenter(t *testing.T) {
	bus := eventbus.New()
	signal := NewLoadingSignal(LoadingConfig{Strategy: LoadingEvent}, LoadingSinks{Bus: bus})

	var events []string
	var visible bool
	var nestedCount int
	bus.On(EventLoadingShow, func(any) {
		events = append(events, EventLoadingShow)
		visible = signal.Visible()
		signal.Acquire()
		nestedCount = signal.Count()
		signal.Release()
	})
	bus.On(EventLoadingHide, func(any) {
		events = append(events, EventLoadingHide)
		visible = signal.Visible()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		signal.Acquire()
		signal.Release()
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loading listener calling back into the signal blocked")
	}

	assert.Equal(t, []string{EventLoadingShow, EventLoadingHide}, events)
	assert.Equal(t, 2, nestedCount)
	assert.False(t, visible)
	assert.Equal(t, 0, signal.Count())
}

func TestLoadingSignalNoneStrategy(t *testing.T) {
	notifier := &RecordingNotifier{}
	signal := NewLoadingSignal(LoadingConfig{Strategy: LoadingNone}, LoadingSinks{Toast: notifier})

	signal.Acquire()
	assert.True(t, signal.Visible(), "counter still tracks calls")
	signal.Release()

	assert.Empty(t, notifier.Notifications())
}

func TestLoadingSignalHidesWithStrategyActiveAtShow(t *testing.T) {
	notifier := &RecordingNotifier{}
	store := &MemoryLoadingStore{}
	signal := NewLoadingSignal(DefaultLoadingConfig(), LoadingSinks{Toast: notifier, Store: store})

	signal.Acquire()
	signal.SetConfig(LoadingConfig{Strategy: LoadingStoreStrategy, Duration: time.Second})
	signal.Release()

	assert.Equal(t, 1, notifier.Dismissals(), "toast shown before the switch is dismissed")
	assert.Equal(t, 0, store.Count(), "store never saw a show")
	assert.Equal(t, LoadingStoreStrategy, signal.Config().Strategy)

	signal.Acquire()
	assert.True(t, store.IsLoading())
	signal.Release()
	assert.False(t, store.IsLoading())
}

func TestLoadingSignalObserver(t *testing.T) {
	signal := NewLoadingSignal(LoadingConfig{Strategy: LoadingNone}, LoadingSinks{})

	type state struct {
		count   int
		visible bool
	}
	var seen []state
	signal.setObserver(func(count int, visible bool) {
		seen = append(seen, state{count, visible})
	})

	signal.Acquire()
	signal.Acquire()
	signal.Release()
	signal.Release()
	signal.Release()

	want := []state{{1, true}, {2, true}, {1, true}, {0, false}}
	if diff := cmp.Diff(want, seen, cmp.AllowUnexported(state{})); diff != "" {
		t.Errorf("observer states mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryLoadingStore(t *testing.T) {
	store := &MemoryLoadingStore{}

	store.SetLoading(true, "one")
	store.SetLoading(true, "two")
	assert.Equal(t, 2, store.Count())
	assert.Equal(t, "one", store.Text(), "text comes from the first show")

	store.SetLoading(false, "")
	assert.True(t, store.IsLoading())

	store.ForceHide()
	assert.False(t, store.IsLoading())
	assert.Equal(t, 0, store.Count())

	store.SetLoading(false, "")
	assert.Equal(t, 0, store.Count(), "hide on an idle store stays at zero")
}
