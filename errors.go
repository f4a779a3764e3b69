package reqkit

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Cancel causes attached to a request's context. They let the executor tell a
// timeout from a supersession from a caller's own cancellation.
var (
	// ErrSuperseded cancels an in-flight request replaced by an identical one.
	ErrSuperseded = errors.New("reqkit: superseded by duplicate request")

	// ErrTimeout cancels a request that outlived the client timeout.
	ErrTimeout = errors.New("reqkit: request timeout")
)

// ErrorKind classifies a failed request.
type ErrorKind string

const (
	ErrorKindHTTPStatus         ErrorKind = "HttpStatusError"
	ErrorKindBusiness           ErrorKind = "BusinessError"
	ErrorKindSuperseded         ErrorKind = "Superseded"
	ErrorKindCancelled          ErrorKind = "Cancelled"
	ErrorKindNetworkUnavailable ErrorKind = "NetworkUnavailable"
	ErrorKindRequestFailed      ErrorKind = "RequestFailed"
	ErrorKindValidation         ErrorKind = "ValidationError"
)

// ClientError is the single error type returned by Client request methods.
type ClientError struct {
	Kind ErrorKind
	// Message is the translated, user-facing text; MessageKey the i18n key it
	// came from (empty for business messages supplied by the server).
	Message    string
	MessageKey string
	Cause      error

	StatusCode int // transport status, when a response was received
	Code       int // envelope code, for BusinessError

	RequestID  string
	Method     string
	URL        string
	Endpoint   string
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches another *ClientError by kind, so errors.Is(err,
// &ClientError{Kind: ErrorKindBusiness}) works.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Kind == targetErr.Kind
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Kind: %s\n", e.Kind)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.MessageKey != "" {
		info += fmt.Sprintf("Message Key: %s\n", e.MessageKey)
	}
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Kind == ErrorKindBusiness {
		info += fmt.Sprintf("Envelope Code: %d\n", e.Code)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// KindOf returns the kind of a *ClientError in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var ce *ClientError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsSuperseded reports whether err is the silent result of supersession.
func IsSuperseded(err error) bool {
	return KindOf(err) == ErrorKindSuperseded || errors.Is(err, ErrSuperseded)
}

// IsTimeout reports whether err was caused by the client timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsRetryable reports whether the retry controller may reissue after err.
// Only supersession and the caller's own cancellation stop retries.
func IsRetryable(err error) bool {
	if err == nil || IsSuperseded(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
