package reqkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/ambiyansyah-risyal/reqkit/eventbus"
	"github.com/ambiyansyah-risyal/reqkit/i18n"
	"github.com/ambiyansyah-risyal/reqkit/internal/backoff"
	"github.com/ambiyansyah-risyal/reqkit/internal/log"
)

const (
	// DefaultTimeout bounds every attempt.
	DefaultTimeout = 15 * time.Second
	// DefaultRetryBackoff is the fixed delay between attempts.
	DefaultRetryBackoff = time.Second
	// DefaultLoginPath is where a 401 redirects.
	DefaultLoginPath = "/login"

	contentTypeJSON = "application/json; charset=utf-8"
	headerRequestID = "X-Request-ID"
	successCode     = 200
	notifyDuration  = 3 * time.Second
)

var statusMessageKeys = map[int]string{
	http.StatusUnauthorized:        "network.unauthorized",
	http.StatusForbidden:           "network.forbidden",
	http.StatusNotFound:            "network.notFound",
	http.StatusInternalServerError: "network.serverError",
}

// Client issues JSON requests against one backend. It owns the pending
// registry and (unless one is shared in) the loading signal, so one Client
// per application instance is the intended shape. It is safe for concurrent
// use.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	timeout          time.Duration
	backoff          *backoff.Calculator
	sleep            Sleeper
	pending          *PendingRegistry
	loading          *LoadingSignal
	loadingConfig    LoadingConfig
	loadingStore     LoadingStore
	events           *eventbus.Bus
	notifier         Notifier
	translator       i18n.Translator
	locale           string
	tokens           TokenStore
	navigator        Navigator
	loginPath        string
	checkTokenExpiry bool
	limiter          *rate.Limiter
	middleware       []Middleware
	metrics          *MetricsCollector
	logger           zerolog.Logger
	debug            bool
	tracing          bool
	requestIDGen     func() string
	downloadDir      string
	now              func() time.Time
	validationError  error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient:    &http.Client{},
		timeout:       DefaultTimeout,
		backoff:       backoff.Constant(DefaultRetryBackoff),
		sleep:         sleepContext,
		pending:       NewPendingRegistry(),
		loadingConfig: DefaultLoadingConfig(),
		events:        eventbus.New(),
		tokens:        NewMemoryTokenStore(""),
		loginPath:     DefaultLoginPath,
		logger:        log.WithComponent("reqkit"),
		requestIDGen:  uuid.NewString,
		downloadDir:   ".",
		now:           time.Now,
	}

	for _, option := range options {
		option(client)
	}

	if client.debug {
		client.logger = client.logger.Level(zerolog.DebugLevel)
	}
	if client.translator == nil {
		client.translator = defaultTranslator(client.logger)
	}
	if client.locale != "" {
		if setter, ok := client.translator.(languageSetter); ok {
			if err := setter.SetLanguage(client.locale); err != nil {
				client.logger.Warn().Err(err).Str("locale", client.locale).Msg("unsupported locale")
			}
		}
	}
	if client.notifier == nil {
		client.notifier = NewLogNotifier(client.logger)
	}
	if client.navigator == nil {
		logger := client.logger
		client.navigator = NavigatorFunc(func(location string) {
			logger.Info().Str("location", location).Msg("redirect requested")
		})
	}
	if client.loading == nil {
		client.loading = NewLoadingSignal(client.loadingConfig, LoadingSinks{
			Toast:      client.notifier,
			Store:      client.loadingStore,
			Bus:        client.events,
			Translator: client.translator,
		})
	}
	if client.metrics != nil {
		client.loading.setObserver(client.metrics.RecordLoading)
	}
	if client.tracing && client.httpClient != nil {
		traced := *client.httpClient
		base := traced.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		traced.Transport = otelhttp.NewTransport(base)
		client.httpClient = &traced
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

func defaultTranslator(logger zerolog.Logger) i18n.Translator {
	catalog, err := i18n.NewDefault()
	if err != nil {
		logger.Error().Err(err).Msg("load bundled messages")
		return i18n.TranslatorFunc(func(key string) string { return key })
	}
	return catalog
}

// Loading returns the client's loading signal.
func (c *Client) Loading() *LoadingSignal { return c.loading }

// Pending returns the client's in-flight registry.
func (c *Client) Pending() *PendingRegistry { return c.pending }

// Events returns the bus used by the event loading strategy.
func (c *Client) Events() *eventbus.Bus { return c.events }

// Tokens returns the token store.
func (c *Client) Tokens() TokenStore { return c.tokens }

// SetLoadingConfig changes the loading strategy for subsequent shows.
func (c *Client) SetLoadingConfig(cfg LoadingConfig) { c.loading.SetConfig(cfg) }

// CloseIdleConnections releases pooled transport connections.
func (c *Client) CloseIdleConnections() { c.httpClient.CloseIdleConnections() }

// Get performs a GET with query params, decoding envelope data into out.
func (c *Client) Get(ctx context.Context, path string, params Params, out any, opts ...RequestOption) (*Envelope, error) {
	return c.Request(ctx, c.describe(http.MethodGet, path, params, nil, opts), out)
}

// Delete performs a DELETE with query params.
func (c *Client) Delete(ctx context.Context, path string, params Params, out any, opts ...RequestOption) (*Envelope, error) {
	return c.Request(ctx, c.describe(http.MethodDelete, path, params, nil, opts), out)
}

// Post performs a POST with body serialized to JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Envelope, error) {
	return c.withBody(ctx, http.MethodPost, path, body, out, opts)
}

// Put performs a PUT with body serialized to JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Envelope, error) {
	return c.withBody(ctx, http.MethodPut, path, body, out, opts)
}

// Patch performs a PATCH with body serialized to JSON.
func (c *Client) Patch(ctx context.Context, path string, body, out any, opts ...RequestOption) (*Envelope, error) {
	return c.withBody(ctx, http.MethodPatch, path, body, out, opts)
}

func (c *Client) withBody(ctx context.Context, method, path string, body, out any, opts []RequestOption) (*Envelope, error) {
	encoded, err := marshalBody(body)
	if err != nil {
		d := c.describe(method, path, nil, nil, opts)
		return nil, c.fail(c.newError(ErrorKindRequestFailed, "network.requestSendFailed", err, attemptInfo{
			method: method, path: path, start: c.now(),
		}), d, c.now())
	}
	return c.Request(ctx, c.describe(method, path, nil, encoded, opts), out)
}

func marshalBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(b)
	}
}

func (c *Client) describe(method, path string, params Params, body []byte, opts []RequestOption) *Descriptor {
	d := NewDescriptor(method, path)
	d.Params = params
	d.Body = body
	for _, opt := range opts {
		opt(d)
	}
	if d.Retry < 0 {
		d.Retry = 0
	}
	return d
}

// Request runs the descriptor through the executor and the retry controller.
// On success the envelope is returned and its data decoded into out (when out
// is non-nil). Every failure is a *ClientError; all kinds except Superseded
// are reported once through the Notifier after retries are exhausted.
func (c *Client) Request(ctx context.Context, d *Descriptor, out any) (*Envelope, error) {
	start := c.now()
	requestID := c.requestIDGen()
	ctx = log.ContextWithRequestID(ctx, requestID)
	logger := log.WithContext(ctx, c.logger)

	remaining := d.Retry
	var env *Envelope
	var err error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.metrics.RecordRetry(d.Method, d.Path, attempt)
			logger.Info().
				Str(log.FieldMethod, d.Method).
				Str(log.FieldPath, d.Path).
				Int(log.FieldAttempt, attempt).
				Msg("retrying request")
		}

		env, err = c.execute(ctx, d, attemptInfo{
			requestID:  requestID,
			method:     d.Method,
			path:       d.Path,
			attempt:    attempt,
			maxRetries: d.Retry,
			start:      start,
		})
		if err == nil || remaining <= 0 || !IsRetryable(err) || ctx.Err() != nil {
			break
		}

		delay := c.backoff.Next(attempt)
		logger.Debug().Dur("backoff", delay).Int(log.FieldAttempt, attempt+1).Msg("scheduling retry")
		if serr := c.sleep(ctx, delay); serr != nil {
			err = c.newError(ErrorKindCancelled, "network.requestCanceled", context.Cause(ctx), attemptInfo{
				requestID: requestID, method: d.Method, path: d.Path,
				attempt: attempt, maxRetries: d.Retry, start: start,
			})
			break
		}
		remaining--
	}

	if err != nil {
		return nil, c.fail(err, d, start)
	}

	if derr := env.Decode(out); derr != nil {
		return env, c.fail(c.newError(ErrorKindRequestFailed, "network.requestSendFailed", derr, attemptInfo{
			requestID: requestID, method: d.Method, path: d.Path, start: start,
		}), d, start)
	}

	if d.ShowSuccess {
		text := env.Message
		if text == "" {
			text = c.translator.T("network.operationSuccess")
		}
		c.notifier.Success(text, notifyDuration)
	}

	c.metrics.RecordRequest(d.Method, d.Path, outcomeSuccess, c.now().Sub(start))
	logger.Debug().
		Str(log.FieldMethod, d.Method).
		Str(log.FieldPath, d.Path).
		Dur(log.FieldDuration, c.now().Sub(start)).
		Msg("request succeeded")
	return env, nil
}

// fail records and surfaces the final error of a logical request.
func (c *Client) fail(err error, d *Descriptor, start time.Time) error {
	kind := KindOf(err)
	c.metrics.RecordRequest(d.Method, d.Path, string(kind), c.now().Sub(start))

	var ce *ClientError
	if !errors.As(err, &ce) || ce.Kind == ErrorKindSuperseded {
		return err
	}
	c.notifier.Error(ce.Message, notifyDuration)
	return err
}

type attemptInfo struct {
	requestID  string
	method     string
	path       string
	url        string
	attempt    int
	maxRetries int
	start      time.Time
}

// execute performs one attempt. The timeout, the registry entry and the
// loading acquisition are released exactly once when it returns.
func (c *Client) execute(ctx context.Context, d *Descriptor, info attemptInfo) (*Envelope, error) {
	info.url = buildURL(c.baseURL, d.Path, d.Params)
	logger := log.WithContext(ctx, c.logger)

	header := make(http.Header)
	contentType := d.ContentType
	if contentType == "" {
		contentType = contentTypeJSON
	}
	header.Set("Content-Type", contentType)
	header.Set("User-Agent", userAgent())
	header.Set(headerRequestID, info.requestID)
	for k, v := range d.Headers {
		header.Set(k, v)
	}
	if d.NeedToken {
		if token := c.authToken(ctx); token != "" {
			header.Set("Authorization", "Bearer "+token)
		}
	}

	reqCtx, cancel := context.WithCancelCause(ctx)

	var releaseKey func()
	if d.PreventDuplicate {
		key := ComputeKey(d.Path, d.Method, d.Params, d.Body)
		releaseKey = c.pending.Register(key, cancel)
		logger.Debug().Str(log.FieldKey, key).Msg("registered pending request")
	}
	if d.ShowLoading {
		c.loading.Acquire()
	}
	attemptCtx, disarm := context.WithTimeoutCause(reqCtx, c.timeout, ErrTimeout)

	defer func() {
		disarm()
		if releaseKey != nil {
			releaseKey()
		}
		if d.ShowLoading {
			c.loading.Release()
		}
		cancel(nil)
	}()

	if c.limiter != nil {
		if err := c.limiter.Wait(attemptCtx); err != nil {
			return nil, c.classifyFault(attemptCtx, err, info)
		}
	}

	var body io.Reader
	if d.Body != nil {
		body = bytes.NewReader(d.Body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, d.Method, info.url, body)
	if err != nil {
		return nil, c.record(c.newError(ErrorKindRequestFailed, "network.requestSendFailed", err, info))
	}
	req.Header = header

	logger.Debug().Str(log.FieldMethod, d.Method).Str(log.FieldURL, info.url).Int(log.FieldAttempt, info.attempt).Msg("sending request")
	c.metrics.RecordAttemptStart(d.Method)
	resp, err := c.executeMiddleware(req)
	c.metrics.RecordAttemptEnd(d.Method)
	if err != nil {
		return nil, c.classifyFault(attemptCtx, err, info)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if attemptCtx.Err() != nil && errors.Is(context.Cause(attemptCtx), ErrSuperseded) {
		// A newer identical request owns the outcome now.
		return nil, c.classifyFault(attemptCtx, context.Cause(attemptCtx), info)
	}
	if err != nil {
		return nil, c.classifyFault(attemptCtx, err, info)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, c.statusError(ctx, resp.StatusCode, info)
	}

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, c.record(c.newError(ErrorKindRequestFailed, "network.requestSendFailed",
			fmt.Errorf("decode envelope: %w", err), info))
	}
	if env.Code != successCode {
		ce := c.newError(ErrorKindBusiness, "network.operationFailed", nil, info)
		ce.StatusCode = resp.StatusCode
		ce.Code = env.Code
		if env.Message != "" {
			ce.Message = env.Message
			ce.MessageKey = ""
		}
		return nil, c.record(ce)
	}
	return &env, nil
}

// classifyFault maps a transport-level failure to an error kind, consulting
// the attempt context's cancel cause first.
func (c *Client) classifyFault(ctx context.Context, err error, info attemptInfo) error {
	if ctx.Err() != nil {
		cause := context.Cause(ctx)
		switch {
		case errors.Is(cause, ErrSuperseded):
			c.metrics.RecordSuperseded(info.method, info.path)
			logger := log.WithContext(ctx, c.logger)
			logger.Debug().
				Str(log.FieldMethod, info.method).
				Str(log.FieldPath, info.path).
				Msg("request superseded by duplicate")
			return c.record(c.newError(ErrorKindSuperseded, "network.duplicateRequest", cause, info))
		case errors.Is(cause, ErrTimeout):
			return c.record(c.newError(ErrorKindCancelled, "network.requestTimeout", cause, info))
		default:
			return c.record(c.newError(ErrorKindCancelled, "network.requestCanceled", cause, info))
		}
	}
	if isConnectivityError(err) {
		return c.record(c.newError(ErrorKindNetworkUnavailable, "network.networkConnectionFailed", err, info))
	}
	return c.record(c.newError(ErrorKindRequestFailed, "network.requestSendFailed", err, info))
}

func isConnectivityError(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ENETUNREACH), errors.Is(err, syscall.EHOSTUNREACH):
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host")
}

func (c *Client) statusError(ctx context.Context, status int, info attemptInfo) error {
	key, ok := statusMessageKeys[status]
	if !ok {
		key = "network.networkError"
	}
	if status == http.StatusUnauthorized {
		c.handleUnauthorized(ctx)
	}
	ce := c.newError(ErrorKindHTTPStatus, key, fmt.Errorf("HTTP error! status: %d", status), info)
	ce.StatusCode = status
	return c.record(ce)
}

func (c *Client) handleUnauthorized(ctx context.Context) {
	if err := c.tokens.ClearToken(ctx); err != nil {
		logger := log.WithContext(ctx, c.logger)
		logger.Warn().Err(err).Msg("clear auth token")
	}
	c.navigator.Redirect(c.loginPath)
}

func (c *Client) authToken(ctx context.Context) string {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		logger := log.WithContext(ctx, c.logger)
		logger.Warn().Err(err).Msg("read auth token")
		return ""
	}
	if token != "" && c.checkTokenExpiry && tokenExpired(token, c.now()) {
		logger := log.WithContext(ctx, c.logger)
		logger.Info().Msg("dropping expired auth token")
		if err := c.tokens.ClearToken(ctx); err != nil {
			logger := log.WithContext(ctx, c.logger)
			logger.Warn().Err(err).Msg("clear auth token")
		}
		return ""
	}
	return token
}

// record logs and counts a per-attempt failure.
func (c *Client) record(ce *ClientError) *ClientError {
	c.metrics.RecordError(ce.Kind, ce.Method, ce.Endpoint)
	if ce.Kind != ErrorKindSuperseded {
		c.logger.Warn().
			Str(log.FieldRequestID, ce.RequestID).
			Str(log.FieldMethod, ce.Method).
			Str(log.FieldPath, ce.Endpoint).
			Str(log.FieldKind, string(ce.Kind)).
			Int(log.FieldStatus, ce.StatusCode).
			Int(log.FieldAttempt, ce.Attempt).
			Err(ce.Cause).
			Msg(ce.Message)
	}
	return ce
}

func (c *Client) newError(kind ErrorKind, key string, cause error, info attemptInfo) *ClientError {
	now := c.now()
	return &ClientError{
		Kind:       kind,
		Message:    c.translator.T(key),
		MessageKey: key,
		Cause:      cause,
		RequestID:  info.requestID,
		Method:     info.method,
		URL:        info.url,
		Endpoint:   info.path,
		Attempt:    info.attempt,
		MaxRetries: info.maxRetries,
		Timestamp:  now,
		Duration:   now.Sub(info.start),
	}
}

func (c *Client) executeMiddleware(req *http.Request) (*http.Response, error) {
	if len(c.middleware) == 0 {
		return c.httpClient.Do(req)
	}

	current := RoundTripperFunc(c.httpClient.Do)

	for i := len(c.middleware) - 1; i >= 0; i-- {
		middleware := c.middleware[i]
		next := current
		current = RoundTripperFunc(func(r *http.Request) (*http.Response, error) {
			return middleware(r, next)
		})
	}

	return current.RoundTrip(req)
}

// buildURL joins base and path and appends the non-nil params, percent-encoded
// and sorted by key.
func buildURL(base, path string, params Params) string {
	full := base + path
	query := encodeParams(params)
	if query == "" {
		return full
	}
	if strings.Contains(full, "?") {
		return full + "&" + query
	}
	return full + "?" + query
}

func encodeParams(params Params) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	for key, value := range params {
		if value == nil {
			continue
		}
		values.Add(key, formatParam(value))
	}
	return values.Encode()
}

func formatParam(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}
