package reqkit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// DismissFunc closes a notification opened by a Notifier.
type DismissFunc func()

// Notifier is the user-facing notification surface (a toast system in a UI).
// A zero duration means the notification stays until dismissed.
type Notifier interface {
	Info(text string, duration time.Duration) DismissFunc
	Success(text string, duration time.Duration) DismissFunc
	Error(text string, duration time.Duration) DismissFunc
	Loading(text string, duration time.Duration) DismissFunc
}

// Navigator moves the user to another location, e.g. the login page after a 401.
type Navigator interface {
	Redirect(location string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(location string)

// Redirect implements Navigator.
func (f NavigatorFunc) Redirect(location string) { f(location) }

// LogNotifier renders notifications as structured log lines. It is the
// default Notifier for headless use.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier returns a Notifier writing to logger.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Info(text string, _ time.Duration) DismissFunc {
	n.logger.Info().Str("notification", "info").Msg(text)
	return func() {}
}

func (n *LogNotifier) Success(text string, _ time.Duration) DismissFunc {
	n.logger.Info().Str("notification", "success").Msg(text)
	return func() {}
}

func (n *LogNotifier) Error(text string, _ time.Duration) DismissFunc {
	n.logger.Info().Str("notification", "error").Msg(text)
	return func() {}
}

func (n *LogNotifier) Loading(text string, _ time.Duration) DismissFunc {
	n.logger.Debug().Str("notification", "loading").Msg(text)
	return func() {
		n.logger.Debug().Str("notification", "loading").Msg("dismissed")
	}
}

// Notification is one call recorded by a RecordingNotifier.
type Notification struct {
	Level    string
	Text     string
	Duration time.Duration
}

// RecordingNotifier keeps every notification in memory. Handy in tests and
// for UIs that poll.
type RecordingNotifier struct {
	mu         sync.Mutex
	items      []Notification
	dismissals int
}

func (r *RecordingNotifier) Info(text string, d time.Duration) DismissFunc {
	return r.record("info", text, d)
}

func (r *RecordingNotifier) Success(text string, d time.Duration) DismissFunc {
	return r.record("success", text, d)
}

func (r *RecordingNotifier) Error(text string, d time.Duration) DismissFunc {
	return r.record("error", text, d)
}

func (r *RecordingNotifier) Loading(text string, d time.Duration) DismissFunc {
	return r.record("loading", text, d)
}

// Notifications returns a copy of the recorded notifications.
func (r *RecordingNotifier) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.items...)
}

// ByLevel returns the recorded texts of one level.
func (r *RecordingNotifier) ByLevel(level string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.items {
		if n.Level == level {
			out = append(out, n.Text)
		}
	}
	return out
}

// Dismissals counts DismissFunc invocations.
func (r *RecordingNotifier) Dismissals() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dismissals
}

func (r *RecordingNotifier) record(level, text string, d time.Duration) DismissFunc {
	r.mu.Lock()
	r.items = append(r.items, Notification{Level: level, Text: text, Duration: d})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.dismissals++
			r.mu.Unlock()
		})
	}
}
