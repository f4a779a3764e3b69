package reqkit

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ambiyansyah-risyal/reqkit/eventbus"
	"github.com/ambiyansyah-risyal/reqkit/i18n"
)

func TestNewDefaults(t *testing.T) {
	client := New()

	if client == nil {
		t.Fatal("New() returned nil")
	}
	if client.timeout != 15*time.Second {
		t.Errorf("Expected timeout=15s, got %v", client.timeout)
	}
	if got := client.backoff.Next(0); got != time.Second {
		t.Errorf("Expected backoff=1s, got %v", got)
	}
	if client.httpClient.Timeout != 0 {
		t.Errorf("Expected transport without its own timeout, got %v", client.httpClient.Timeout)
	}
	if client.loginPath != "/login" {
		t.Errorf("Expected loginPath=/login, got %q", client.loginPath)
	}
	if client.Loading().Config().Strategy != LoadingToast {
		t.Errorf("Expected toast strategy, got %q", client.Loading().Config().Strategy)
	}
	if !client.IsValid() {
		t.Errorf("default client should be valid: %v", client.ValidationError())
	}
}

func TestWithTimeout(t *testing.T) {
	client := New(WithTimeout(2 * time.Second))

	if client.timeout != 2*time.Second {
		t.Errorf("Expected timeout=2s, got %v", client.timeout)
	}
}

func TestWithRetryBackoff(t *testing.T) {
	client := New(WithRetryBackoff(250 * time.Millisecond))

	for attempt := 0; attempt < 3; attempt++ {
		if got := client.backoff.Next(attempt); got != 250*time.Millisecond {
			t.Errorf("attempt %d: expected 250ms, got %v", attempt, got)
		}
	}
}

func TestWithExponentialBackoff(t *testing.T) {
	client := New(WithExponentialBackoff(100*time.Millisecond, time.Second, 0))

	if got := client.backoff.Next(0); got != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", got)
	}
	if got := client.backoff.Next(1); got != 200*time.Millisecond {
		t.Errorf("expected 200ms, got %v", got)
	}
	if got := client.backoff.Next(10); got != time.Second {
		t.Errorf("expected cap 1s, got %v", got)
	}
}

func TestWithMiddleware(t *testing.T) {
	mw := func(req *http.Request, next RoundTripper) (*http.Response, error) {
		return next.RoundTrip(req)
	}
	client := New(WithMiddleware(mw, mw))

	if len(client.middleware) != 2 {
		t.Errorf("Expected 2 middleware, got %d", len(client.middleware))
	}
}

func TestWithHTTPClient(t *testing.T) {
	custom := &http.Client{}
	client := New(WithHTTPClient(custom))

	if client.httpClient != custom {
		t.Error("Expected custom HTTP client to be used")
	}
}

func TestWithTracingWrapsTransport(t *testing.T) {
	custom := &http.Client{}
	client := New(WithHTTPClient(custom), WithTracing())

	if client.httpClient == custom {
		t.Error("tracing should not mutate the caller's client")
	}
	if client.httpClient.Transport == nil {
		t.Error("expected an instrumented transport")
	}
	if custom.Transport != nil {
		t.Error("caller's transport was modified")
	}
}

func TestWithRateLimit(t *testing.T) {
	client := New(WithRateLimit(rate.Limit(5), 2))

	if client.limiter == nil {
		t.Fatal("Expected limiter to be set")
	}
	if client.limiter.Burst() != 2 {
		t.Errorf("Expected burst=2, got %d", client.limiter.Burst())
	}
}

func TestWithMetricsCollector(t *testing.T) {
	collector := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client := New(WithMetricsCollector(collector))

	if client.metrics != collector {
		t.Error("Expected custom metrics collector")
	}
}

func TestCollaboratorOptions(t *testing.T) {
	notifier := &RecordingNotifier{}
	tokens := NewMemoryTokenStore("t")
	bus := eventbus.New()
	store := &MemoryLoadingStore{}
	registry := NewPendingRegistry()
	translator := i18n.TranslatorFunc(func(key string) string { return "x:" + key })
	nav := NavigatorFunc(func(string) {})
	sleeper := func(context.Context, time.Duration) error { return nil }

	client := New(
		WithNotifier(notifier),
		WithTokenStore(tokens),
		WithEventBus(bus),
		WithLoadingStore(store),
		WithLoadingConfig(LoadingConfig{Strategy: LoadingStoreStrategy}),
		WithPendingRegistry(registry),
		WithTranslator(translator),
		WithNavigator(nav),
		WithLoginPath("/signin"),
		WithSleeper(sleeper),
		WithTokenExpiryCheck(),
		WithDownloadDir("/tmp/dl"),
		WithRequestIDGenerator(func() string { return "fixed" }),
		WithLogger(zerolog.Nop()),
		WithDebug(),
	)

	if client.notifier != notifier || client.Tokens() != tokens || client.Events() != bus || client.Pending() != registry {
		t.Error("collaborators not installed")
	}
	if client.loginPath != "/signin" || client.downloadDir != "/tmp/dl" || !client.checkTokenExpiry {
		t.Error("scalar options not applied")
	}
	if client.requestIDGen() != "fixed" {
		t.Error("request ID generator not applied")
	}
	if client.translator.T("k") != "x:k" {
		t.Error("translator not applied")
	}
	if client.logger.GetLevel() != zerolog.DebugLevel {
		t.Errorf("debug should lower the level, got %v", client.logger.GetLevel())
	}

	client.Loading().Acquire()
	if !store.IsLoading() {
		t.Error("store strategy should drive the configured store")
	}
	client.Loading().Release()
}

func TestWithLoadingSignalShared(t *testing.T) {
	shared := NewLoadingSignal(LoadingConfig{Strategy: LoadingNone}, LoadingSinks{})
	a := New(WithLoadingSignal(shared))
	b := New(WithLoadingSignal(shared))

	if a.Loading() != shared || b.Loading() != shared {
		t.Error("clients should share the loading signal")
	}
}

func TestRequestOptions(t *testing.T) {
	d := NewDescriptor(http.MethodGet, "/x")
	for _, opt := range []RequestOption{
		WithoutDedup(),
		WithoutLoading(),
		WithSuccessMessage(),
		WithoutToken(),
		WithRetry(2),
		WithHeader("X-A", "1"),
		WithHeaders(map[string]string{"X-B": "2"}),
	} {
		opt(d)
	}

	if d.PreventDuplicate || d.ShowLoading || d.NeedToken {
		t.Error("flags should be switched off")
	}
	if !d.ShowSuccess || d.Retry != 2 {
		t.Error("success and retry not applied")
	}
	if d.Headers["X-A"] != "1" || d.Headers["X-B"] != "2" {
		t.Errorf("headers not merged: %v", d.Headers)
	}
}

func TestDescribeClampsNegativeRetry(t *testing.T) {
	client := New()
	d := client.describe(http.MethodGet, "/x", nil, nil, []RequestOption{WithRetry(-3)})
	if d.Retry != 0 {
		t.Errorf("expected retry clamped to 0, got %d", d.Retry)
	}
}

func TestValidateConfiguration(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{"defaults", nil, false},
		{"zero timeout", []Option{WithTimeout(0)}, true},
		{"huge timeout", []Option{WithTimeout(time.Hour)}, true},
		{"nil http client", []Option{WithHTTPClient(nil)}, true},
		{"http client with timeout", []Option{WithHTTPClient(&http.Client{Timeout: time.Second})}, true},
		{"nil middleware", []Option{WithMiddleware(nil)}, true},
		{"nil sleeper", []Option{WithSleeper(nil)}, true},
		{"unknown strategy", []Option{WithLoadingConfig(LoadingConfig{Strategy: "banner"})}, true},
		{"zero burst", []Option{WithRateLimit(rate.Limit(1), 0)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := New(tt.opts...)
			err := client.ValidationError()
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidationError() = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && KindOf(err) != ErrorKindValidation {
				t.Errorf("expected ValidationError kind, got %q", KindOf(err))
			}
			if client.IsValid() == tt.wantErr {
				t.Error("IsValid disagrees with ValidationError")
			}
		})
	}
}
