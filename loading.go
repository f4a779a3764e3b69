package reqkit

import (
	"sync"
	"time"

	"github.com/ambiyansyah-risyal/reqkit/eventbus"
	"github.com/ambiyansyah-risyal/reqkit/i18n"
)

// LoadingStrategy selects how the busy indicator is surfaced.
type LoadingStrategy string

const (
	LoadingToast         LoadingStrategy = "toast"
	LoadingStoreStrategy LoadingStrategy = "store"
	LoadingEvent         LoadingStrategy = "event"
	LoadingNone          LoadingStrategy = "none"
)

// Event names published on the bus by the event strategy.
const (
	EventLoadingShow = "loading:show"
	EventLoadingHide = "loading:hide"
)

// LoadingEventPayload is the payload of EventLoadingShow.
type LoadingEventPayload struct {
	Text string
}

// LoadingConfig configures the indicator. An empty Text uses the translated
// "network.loadingText"; a zero Duration keeps a toast open until hidden.
type LoadingConfig struct {
	Strategy LoadingStrategy
	Text     string
	Duration time.Duration
}

// DefaultLoadingConfig returns the toast strategy with translated text.
func DefaultLoadingConfig() LoadingConfig {
	return LoadingConfig{Strategy: LoadingToast}
}

// LoadingStore is an external state container for the store strategy.
type LoadingStore interface {
	SetLoading(loading bool, text string)
}

// LoadingSinks are the surfaces a LoadingSignal can drive. Each strategy
// uses one sink; a strategy whose sink is nil shows nothing.
type LoadingSinks struct {
	Toast      Notifier
	Store      LoadingStore
	Bus        *eventbus.Bus
	Translator i18n.Translator
}

// LoadingSignal is a reference-counted busy indicator. The configured strategy
// is shown on the 0→1 transition and hidden on the 1→0 transition; every
// other Acquire/Release only moves the counter.
//
// Edge actions are queued under the lock and run after it is released, in
// the order the transitions happened. Sinks may call back into the signal:
// a nested Acquire or Release only queues its edge, which the caller already
// draining the queue runs next.
type LoadingSignal struct {
	mu       sync.Mutex
	count    int
	config   LoadingConfig
	sinks    LoadingSinks
	shown    *shownIndicator
	observe  func(count int, visible bool)
	edges    []func()
	draining bool
}

// shownIndicator links a show edge to the hide edge that undoes it.
type shownIndicator struct {
	hide func()
}

// NewLoadingSignal returns an idle signal.
func NewLoadingSignal(cfg LoadingConfig, sinks LoadingSinks) *LoadingSignal {
	return &LoadingSignal{config: cfg, sinks: sinks}
}

// Acquire increments the counter, showing the indicator on 0→1.
func (s *LoadingSignal) Acquire() {
	s.mu.Lock()
	s.count++
	if s.count == 1 {
		shown := &shownIndicator{}
		s.shown = shown
		cfg := s.config
		s.edges = append(s.edges, func() { shown.hide = s.show(cfg) })
	}
	s.queueObserveLocked()
	s.mu.Unlock()

	s.drain()
}

// Release decrements the counter, hiding the indicator on 1→0. Releasing an
// idle signal is a no-op.
func (s *LoadingSignal) Release() {
	s.mu.Lock()
	if s.count == 0 {
		s.mu.Unlock()
		return
	}
	s.count--
	if s.count == 0 && s.shown != nil {
		shown := s.shown
		s.shown = nil
		s.edges = append(s.edges, func() {
			if shown.hide != nil {
				shown.hide()
			}
		})
	}
	s.queueObserveLocked()
	s.mu.Unlock()

	s.drain()
}

// Count returns the number of outstanding acquisitions.
func (s *LoadingSignal) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Visible reports whether the indicator is currently shown.
func (s *LoadingSignal) Visible() bool {
	return s.Count() > 0
}

// SetConfig replaces the strategy configuration. It applies from the next
// show; an indicator already visible is hidden the way it was shown.
func (s *LoadingSignal) SetConfig(cfg LoadingConfig) {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
}

// Config returns the current strategy configuration.
func (s *LoadingSignal) Config() LoadingConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

func (s *LoadingSignal) setObserver(fn func(count int, visible bool)) {
	s.mu.Lock()
	s.observe = fn
	s.mu.Unlock()
}

func (s *LoadingSignal) queueObserveLocked() {
	if s.observe == nil {
		return
	}
	observe, count := s.observe, s.count
	s.edges = append(s.edges, func() { observe(count, count > 0) })
}

// drain runs queued edges until the queue is empty. Only one caller drains
// at a time; the others return and leave their edges to it.
func (s *LoadingSignal) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	defer func() {
		s.draining = false
		s.mu.Unlock()
	}()

	for len(s.edges) > 0 {
		edge := s.edges[0]
		s.edges[0] = nil
		s.edges = s.edges[1:]

		s.mu.Unlock()
		edge()
		s.mu.Lock()
	}
	s.edges = nil
}

func (s *LoadingSignal) text(cfg LoadingConfig) string {
	if cfg.Text != "" {
		return cfg.Text
	}
	if s.sinks.Translator != nil {
		return s.sinks.Translator.T("network.loadingText")
	}
	return "network.loadingText"
}

// show surfaces the indicator with cfg and returns the matching hide action.
func (s *LoadingSignal) show(cfg LoadingConfig) func() {
	text := s.text(cfg)

	switch cfg.Strategy {
	case LoadingToast:
		if s.sinks.Toast == nil {
			return nil
		}
		dismiss := s.sinks.Toast.Loading(text, cfg.Duration)
		return func() {
			if dismiss != nil {
				dismiss()
			}
		}
	case LoadingStoreStrategy:
		store := s.sinks.Store
		if store == nil {
			return nil
		}
		store.SetLoading(true, text)
		return func() { store.SetLoading(false, "") }
	case LoadingEvent:
		bus := s.sinks.Bus
		if bus == nil {
			return nil
		}
		bus.Emit(EventLoadingShow, LoadingEventPayload{Text: text})
		return func() { bus.Emit(EventLoadingHide, nil) }
	default:
		return nil
	}
}

// MemoryLoadingStore is an in-memory LoadingStore that keeps its own nested
// count, the way a UI state container would.
type MemoryLoadingStore struct {
	mu        sync.Mutex
	count     int
	isLoading bool
	text      string
}

// SetLoading implements LoadingStore.
func (m *MemoryLoadingStore) SetLoading(loading bool, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if loading {
		m.count++
		if m.count == 1 {
			m.text = text
		}
		m.isLoading = true
		return
	}
	if m.count > 0 {
		m.count--
	}
	m.isLoading = m.count > 0
	if m.count == 0 {
		m.text = ""
	}
}

// ForceHide resets the store regardless of outstanding calls.
func (m *MemoryLoadingStore) ForceHide() {
	m.mu.Lock()
	m.count = 0
	m.isLoading = false
	m.text = ""
	m.mu.Unlock()
}

// IsLoading reports whether the store shows the indicator.
func (m *MemoryLoadingStore) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isLoading
}

// Text returns the indicator text.
func (m *MemoryLoadingStore) Text() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// Count returns the store's own nesting count.
func (m *MemoryLoadingStore) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}
