package reqkit

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestNewDescriptorDefaults(t *testing.T) {
	d := NewDescriptor(http.MethodGet, "/users")

	if !d.PreventDuplicate || !d.ShowLoading || !d.NeedToken {
		t.Error("dedup, loading and token should default on")
	}
	if d.ShowSuccess {
		t.Error("success notification should default off")
	}
	if d.Retry != 0 {
		t.Errorf("Expected retry=0, got %d", d.Retry)
	}
}

type stringerParam struct{}

func (stringerParam) String() string { return "custom" }

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name   string
		base   string
		path   string
		params Params
		want   string
	}{
		{"no params", "https://api.example.com", "/users", nil, "https://api.example.com/users"},
		{"nil dropped", "", "/list", Params{"a": 1, "b": nil, "c": "x"}, "/list?a=1&c=x"},
		{"all nil", "", "/list", Params{"b": nil}, "/list"},
		{"escaping", "", "/search", Params{"q": "a b&c"}, "/search?q=a+b%26c"},
		{"types", "", "/t", Params{"f": 1.5, "ok": true, "n": int64(7), "s": stringerParam{}}, "/t?f=1.5&n=7&ok=true&s=custom"},
		{"existing query", "", "/p?fixed=1", Params{"z": "2"}, "/p?fixed=1&z=2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildURL(tt.base, tt.path, tt.params); got != tt.want {
				t.Errorf("buildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEnvelopeDecode(t *testing.T) {
	env := &Envelope{Code: 200, Data: []byte(`{"id":7,"name":"n"}`)}

	var out struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	if err := env.Decode(&out); err != nil {
		t.Fatalf("Decode() error: %v", err)
	}
	if out.ID != 7 || out.Name != "n" {
		t.Errorf("unexpected decode result %+v", out)
	}

	if err := (&Envelope{}).Decode(&out); err != nil {
		t.Errorf("empty data should be a no-op, got %v", err)
	}
	if err := env.Decode(nil); err != nil {
		t.Errorf("nil out should be a no-op, got %v", err)
	}
	if err := (&Envelope{Data: []byte(`"text"`)}).Decode(&out); err == nil {
		t.Error("mismatched data should fail to decode")
	}
}

func TestRoundTripperFunc(t *testing.T) {
	called := false
	rt := RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
		called = true
		return &http.Response{StatusCode: http.StatusTeapot, Request: req}, nil
	})

	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	resp, err := rt.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error: %v", err)
	}
	if !called || resp.StatusCode != http.StatusTeapot {
		t.Error("RoundTripperFunc did not delegate")
	}
}

func TestMarshalBody(t *testing.T) {
	raw := []byte(`{"x":1}`)

	if got, _ := marshalBody(nil); got != nil {
		t.Error("nil body should stay nil")
	}
	if got, _ := marshalBody(raw); string(got) != string(raw) {
		t.Error("byte bodies pass through")
	}
	got, err := marshalBody(map[string]int{"a": 1})
	if err != nil || string(got) != `{"a":1}` {
		t.Errorf("unexpected JSON body %s (%v)", got, err)
	}
	if _, err := marshalBody(func() {}); err == nil || !strings.Contains(err.Error(), "unsupported type") {
		t.Errorf("expected marshal error, got %v", err)
	}
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := sleepContext(ctx, time.Millisecond); err != nil {
		t.Errorf("sleep should complete, got %v", err)
	}
}
