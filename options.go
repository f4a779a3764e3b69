package reqkit

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ambiyansyah-risyal/reqkit/eventbus"
	"github.com/ambiyansyah-risyal/reqkit/i18n"
	"github.com/ambiyansyah-risyal/reqkit/internal/backoff"
)

// WithBaseURL sets the prefix every request path is joined to.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryBackoff sets the fixed delay between attempts
func WithRetryBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.backoff = backoff.Constant(d)
	}
}

// WithExponentialBackoff replaces the fixed delay with capped exponential
// backoff. jitter is clamped to [0,1].
func WithExponentialBackoff(initial, maxBackoff time.Duration, jitter float64) Option {
	return func(c *Client) {
		c.backoff = backoff.Exponential(initial, maxBackoff, jitter)
	}
}

// WithSleeper replaces the function used to wait between attempts
func WithSleeper(sleep Sleeper) Option {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// WithHTTPClient sets a custom HTTP client. Its Timeout should be zero; the
// client enforces its own per-attempt timeout.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithMiddleware adds middleware to the client
func WithMiddleware(middleware ...Middleware) Option {
	return func(c *Client) {
		c.middleware = append(c.middleware, middleware...)
	}
}

// WithRateLimit throttles outgoing attempts to r per second with the given burst.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// WithTracing wraps the transport with OpenTelemetry instrumentation.
func WithTracing() Option {
	return func(c *Client) {
		c.tracing = true
	}
}

// WithNotifier sets the user-facing notification surface
func WithNotifier(n Notifier) Option {
	return func(c *Client) {
		c.notifier = n
	}
}

// WithTranslator sets the message translator
func WithTranslator(t i18n.Translator) Option {
	return func(c *Client) {
		c.translator = t
	}
}

// WithTokenStore sets where the auth token is read from and cleared
func WithTokenStore(store TokenStore) Option {
	return func(c *Client) {
		c.tokens = store
	}
}

// WithNavigator sets the redirect target used after a 401
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// WithLoginPath sets the location a 401 redirects to
func WithLoginPath(path string) Option {
	return func(c *Client) {
		c.loginPath = path
	}
}

// WithTokenExpiryCheck drops JWTs whose exp claim has passed instead of
// sending them.
func WithTokenExpiryCheck() Option {
	return func(c *Client) {
		c.checkTokenExpiry = true
	}
}

// WithLoadingConfig sets the initial loading strategy
func WithLoadingConfig(cfg LoadingConfig) Option {
	return func(c *Client) {
		c.loadingConfig = cfg
	}
}

// WithLoadingStore sets the container driven by the store strategy
func WithLoadingStore(store LoadingStore) Option {
	return func(c *Client) {
		c.loadingStore = store
	}
}

// WithLoadingSignal shares an existing loading signal, e.g. between clients
// for different backends that drive one indicator.
func WithLoadingSignal(signal *LoadingSignal) Option {
	return func(c *Client) {
		c.loading = signal
	}
}

// WithEventBus sets the bus used by the event strategy
func WithEventBus(bus *eventbus.Bus) Option {
	return func(c *Client) {
		c.events = bus
	}
}

// WithPendingRegistry shares an in-flight registry
func WithPendingRegistry(registry *PendingRegistry) Option {
	return func(c *Client) {
		c.pending = registry
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithLogger sets the client logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDebug lowers the client logger to debug level
func WithDebug() Option {
	return func(c *Client) {
		c.debug = true
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

// WithDownloadDir sets the directory Download saves into
func WithDownloadDir(dir string) Option {
	return func(c *Client) {
		c.downloadDir = dir
	}
}

// WithClock sets the time source used for durations and token expiry
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithConfig applies a loaded Config.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		if cfg.BaseAPI != "" {
			c.baseURL = cfg.BaseAPI
		}
		if cfg.LoginPath != "" {
			c.loginPath = cfg.LoginPath
		}
		if cfg.Timeout > 0 {
			c.timeout = cfg.Timeout
		}
		if cfg.RetryBackoff > 0 {
			c.backoff = backoff.Constant(cfg.RetryBackoff)
		}
		if cfg.DownloadDir != "" {
			c.downloadDir = cfg.DownloadDir
		}
		if cfg.RateLimit.PerSecond > 0 {
			burst := cfg.RateLimit.Burst
			if burst <= 0 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.PerSecond), burst)
		}
		if cfg.LogLevel != "" {
			if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
				c.logger = c.logger.Level(level)
			}
		}
		c.locale = cfg.Locale
		c.checkTokenExpiry = c.checkTokenExpiry || cfg.CheckTokenExpiry
		c.tracing = c.tracing || cfg.Tracing
		c.debug = c.debug || cfg.Debug
		c.loadingConfig = cfg.Loading.LoadingConfig()
	}
}

// WithoutDedup lets identical requests run side by side.
func WithoutDedup() RequestOption {
	return func(d *Descriptor) { d.PreventDuplicate = false }
}

// WithoutLoading keeps the loading indicator untouched.
func WithoutLoading() RequestOption {
	return func(d *Descriptor) { d.ShowLoading = false }
}

// WithSuccessMessage surfaces a success notification on code 200.
func WithSuccessMessage() RequestOption {
	return func(d *Descriptor) { d.ShowSuccess = true }
}

// WithoutToken skips the Authorization header.
func WithoutToken() RequestOption {
	return func(d *Descriptor) { d.NeedToken = false }
}

// WithRetry sets the number of additional attempts after a failure.
func WithRetry(n int) RequestOption {
	return func(d *Descriptor) { d.Retry = n }
}

// WithHeader overrides one request header.
func WithHeader(key, value string) RequestOption {
	return func(d *Descriptor) {
		if d.Headers == nil {
			d.Headers = make(map[string]string)
		}
		d.Headers[key] = value
	}
}

// WithHeaders merges header overrides.
func WithHeaders(headers map[string]string) RequestOption {
	return func(d *Descriptor) {
		for k, v := range headers {
			WithHeader(k, v)(d)
		}
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateTransportConfig()...)
	errors = append(errors, c.validateRetryConfig()...)
	errors = append(errors, c.validateCollaborators()...)
	errors = append(errors, c.validateMiddlewareConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &ClientError{
			Kind:    ErrorKindValidation,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (c *Client) validateTransportConfig() []string {
	var errors []string

	if c.httpClient == nil {
		errors = append(errors, "HTTP client cannot be nil")
	} else if c.httpClient.Timeout != 0 {
		errors = append(errors, "HTTP client Timeout must be zero; use WithTimeout")
	}

	if c.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}

	if c.limiter != nil && c.limiter.Burst() <= 0 {
		errors = append(errors, "rate limit burst must be positive")
	}

	return errors
}

func (c *Client) validateRetryConfig() []string {
	var errors []string

	if c.backoff == nil {
		errors = append(errors, "retry backoff cannot be nil")
	} else if c.backoff.Next(0) < 0 {
		errors = append(errors, "retry backoff must be non-negative")
	}

	if c.sleep == nil {
		errors = append(errors, "sleeper cannot be nil")
	}

	return errors
}

func (c *Client) validateCollaborators() []string {
	var errors []string

	if c.pending == nil {
		errors = append(errors, "pending registry cannot be nil")
	}
	if c.tokens == nil {
		errors = append(errors, "token store cannot be nil")
	}
	if c.requestIDGen == nil {
		errors = append(errors, "request ID generator cannot be nil")
	}
	if c.now == nil {
		errors = append(errors, "clock cannot be nil")
	}

	switch c.loading.Config().Strategy {
	case LoadingToast, LoadingStoreStrategy, LoadingEvent, LoadingNone:
	default:
		errors = append(errors, fmt.Sprintf("unknown loading strategy %q", c.loading.Config().Strategy))
	}

	return errors
}

func (c *Client) validateMiddlewareConfig() []string {
	var errors []string

	for i, middleware := range c.middleware {
		if middleware == nil {
			errors = append(errors, fmt.Sprintf("middleware[%d] cannot be nil", i))
		}
	}

	return errors
}

// validateExtremeValues validates that configuration values are within reasonable bounds
func (c *Client) validateExtremeValues() []string {
	var errors []string

	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10 minutes may cause excessive resource usage")
	}

	if c.backoff != nil && c.backoff.Next(0) > 10*time.Minute {
		errors = append(errors, "retry backoff > 10 minutes may cause excessive delays")
	}

	return errors
}

// IsValid reports whether the client passed configuration validation.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration error found by New, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}
