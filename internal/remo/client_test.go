package remo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nerrad567/remo-relay/internal/signal"
)

func TestNew_Configured(t *testing.T) {
	tests := []struct {
		name    string
		address string
		want    bool
		wantURL string
	}{
		{name: "empty", address: "", want: false, wantURL: ""},
		{name: "whitespace", address: "  ", want: false, wantURL: ""},
		{name: "bare ip", address: "192.168.1.40", want: true, wantURL: "http://192.168.1.40"},
		{name: "host and port", address: "remo.local:8080", want: true, wantURL: "http://remo.local:8080"},
		{name: "explicit scheme", address: "http://10.0.0.2/", want: true, wantURL: "http://10.0.0.2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.address)
			if got := c.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
			if c.baseURL != tt.wantURL {
				t.Errorf("baseURL = %q, want %q", c.baseURL, tt.wantURL)
			}
		})
	}
}

func TestNew_Timeout(t *testing.T) {
	if got := New("x").httpClient.Timeout; got != DefaultTimeout {
		t.Errorf("default timeout = %v, want %v", got, DefaultTimeout)
	}
	if got := New("x", WithTimeout(3*time.Second)).httpClient.Timeout; got != 3*time.Second {
		t.Errorf("timeout = %v, want 3s", got)
	}
}

func TestWithHTTPClient_CopiesCallerClient(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	c := New("x", WithHTTPClient(shared), WithTimeout(2*time.Second))
	if c.httpClient == shared {
		t.Fatal("client kept the caller's *http.Client")
	}
	if got := c.httpClient.Timeout; got != 2*time.Second {
		t.Errorf("timeout = %v, want 2s", got)
	}
	if shared.Timeout != time.Minute {
		t.Errorf("caller's timeout changed to %v", shared.Timeout)
	}
}

func TestWithHTTPClient_Nil(t *testing.T) {
	c := New("x", WithHTTPClient(nil), WithTimeout(time.Second))
	if c.httpClient == nil {
		t.Fatal("httpClient = nil")
	}
	if got := c.httpClient.Timeout; got != time.Second {
		t.Errorf("timeout = %v, want 1s", got)
	}
}

func TestDirectTransport(t *testing.T) {
	tr := DirectTransport()
	if tr.Proxy != nil {
		t.Error("DirectTransport() applies a proxy")
	}
	if tr == http.DefaultTransport {
		t.Error("DirectTransport() returned the shared default transport")
	}
}

func TestClient_Send(t *testing.T) {
	var (
		gotMethod string
		gotPath   string
		gotHeader http.Header
		gotBody   map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotHeader = r.Header.Clone()
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL)
	sig := signal.Signal{Frequency: 38, Pulses: []int{100, 50, 100}, Format: "us"}
	if err := c.Send(context.Background(), sig); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotPath != "/messages" {
		t.Errorf("path = %q, want /messages", gotPath)
	}
	if v := gotHeader.Get("X-Requested-With"); v != "local" {
		t.Errorf("X-Requested-With = %q, want local", v)
	}
	if v := gotHeader.Get("Content-Type"); v != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", v)
	}
	if gotBody["freq"] != float64(38) || gotBody["format"] != "us" {
		t.Errorf("body = %v, want freq 38 and format us", gotBody)
	}
	if data, ok := gotBody["data"].([]any); !ok || len(data) != 3 {
		t.Errorf("body data = %v, want three pulses", gotBody["data"])
	}
}

func TestClient_SendStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := New(srv.URL).Send(context.Background(), signal.DefaultSignal())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("Send() = %v, want ErrTransport", err)
	}

	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("Send() = %v, want *StatusError", err)
	}
	if se.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", se.StatusCode)
	}
	if se.Body != "busy" {
		t.Errorf("Body = %q, want busy", se.Body)
	}
}

func TestClient_SendUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	err := New(addr, WithTimeout(time.Second)).Send(context.Background(), signal.DefaultSignal())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Send() = %v, want ErrTransport", err)
	}
}

func TestClient_Receive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/messages" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("X-Requested-With") != "local" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"freq":40,"data":[500,400],"format":"us"}`)
	}))
	defer srv.Close()

	got, err := New(srv.URL).Receive(context.Background())
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	want := signal.Signal{Frequency: 40, Pulses: []int{500, 400}, Format: "us"}
	if !got.Equal(want) {
		t.Errorf("Receive() = %+v, want %+v", got, want)
	}
}

func TestClient_ReceiveBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	_, err := New(srv.URL).Receive(context.Background())
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Receive() = %v, want ErrTransport", err)
	}
}

func TestClient_NotConfigured(t *testing.T) {
	c := New("")
	ctx := context.Background()

	if err := c.Send(ctx, signal.DefaultSignal()); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Send() = %v, want ErrNotConfigured", err)
	}
	if _, err := c.Receive(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Receive() = %v, want ErrNotConfigured", err)
	}
}

func TestClient_SatisfiesRelay(t *testing.T) {
	var _ signal.Relay = New("")
}
