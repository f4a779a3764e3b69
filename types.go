package reqkit

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Params holds query parameters. Values may be strings, numbers, booleans or
// nil; nil entries are dropped from both the URL and the fingerprint.
type Params map[string]any

// Descriptor is the normalized description of one logical request.
type Descriptor struct {
	Method  string
	Path    string
	Params  Params
	Body    []byte
	Headers map[string]string

	// ContentType replaces the default JSON content type when set.
	ContentType string

	PreventDuplicate bool
	ShowLoading      bool
	ShowSuccess      bool
	NeedToken        bool
	Retry            int
}

// NewDescriptor returns a descriptor with the default flags: duplicate
// prevention, loading and token on; success notification off; no retries.
func NewDescriptor(method, path string) *Descriptor {
	return &Descriptor{
		Method:           method,
		Path:             path,
		PreventDuplicate: true,
		ShowLoading:      true,
		NeedToken:        true,
	}
}

// Envelope is the business response wrapper returned by the backend.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Decode unmarshals the envelope data into out.
func (e *Envelope) Decode(out any) error {
	if e == nil || len(e.Data) == 0 || out == nil {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}

// Middleware wraps the transport call for a single attempt.
type Middleware func(req *http.Request, next RoundTripper) (*http.Response, error)

// RoundTripper represents the HTTP transport interface
type RoundTripper interface {
	RoundTrip(*http.Request) (*http.Response, error)
}

// RoundTripperFunc is a helper type for middleware
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Option configures a Client.
type Option func(*Client)

// RequestOption adjusts a single request's descriptor.
type RequestOption func(*Descriptor)

// Sleeper blocks for d or until ctx is done. It is the retry controller's only
// time source, so tests can replace it.
type Sleeper func(ctx context.Context, d time.Duration) error
