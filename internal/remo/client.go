package remo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nerrad567/remo-relay/internal/signal"
)

const (
	// DefaultTimeout bounds a single device request when no option overrides it.
	DefaultTimeout = 10 * time.Second

	messagesPath = "/messages"

	// maxErrorBody caps how much of an error response is kept in StatusError.
	maxErrorBody = 512
)

// Client talks to one device. It is stateless beyond its address and safe
// for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient uses a copy of hc for device requests, so options applied
// later never modify the caller's client. A nil hc is ignored.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc == nil {
			return
		}
		cp := *hc
		c.httpClient = &cp
	}
}

// WithTimeout sets the per-request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 {
			return
		}
		cp := *c.httpClient
		cp.Timeout = d
		c.httpClient = &cp
	}
}

// DirectTransport returns a transport for a device on the local network.
// Proxy settings from the environment are not applied.
func DirectTransport() *http.Transport {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.Proxy = nil
	return t
}

// New creates a client for the device at address, a host or host:port.
// An explicit http:// or https:// prefix is kept as given.
func New(address string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL(address),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func baseURL(address string) string {
	address = strings.TrimSpace(address)
	if address == "" {
		return ""
	}
	if !strings.Contains(address, "://") {
		address = "http://" + address
	}
	return strings.TrimRight(address, "/")
}

// Configured reports whether a device address was given.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

// Send transmits s through the device.
func (c *Client) Send(ctx context.Context, s signal.Signal) error {
	if !c.Configured() {
		return ErrNotConfigured
	}

	body, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding signal: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	return nil
}

// Receive returns the last signal the device captured.
func (c *Client) Receive(ctx context.Context) (signal.Signal, error) {
	if !c.Configured() {
		return signal.Signal{}, ErrNotConfigured
	}

	resp, err := c.do(ctx, http.MethodGet, nil)
	if err != nil {
		return signal.Signal{}, err
	}
	defer resp.Body.Close()

	s := signal.DefaultSignal()
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return signal.Signal{}, fmt.Errorf("%w: decoding response: %w", ErrTransport, err)
	}
	return s, nil
}

// do issues a request to the messages endpoint. Any response it returns has
// a 2xx status; the caller closes the body.
func (c *Client) do(ctx context.Context, method string, body io.Reader) (*http.Response, error) {
	url := c.baseURL + messagesPath

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	req.Header.Set("X-Requested-With", "local")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, url, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody)) //nolint:errcheck // best effort detail
		return nil, &StatusError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	return resp, nil
}
