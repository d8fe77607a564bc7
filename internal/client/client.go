// ABOUTME: Typed HTTP client for the lightspace gateway API
// ABOUTME: Wraps JSON endpoints; SSE turn streaming lives in stream.go

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a lightspace gateway over HTTP with bearer-token auth.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New creates a Client for the gateway at baseURL authenticating with the
// given bearer token.
func New(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		token:      token,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Message is one conversation message as returned by the gateway.
type Message struct {
	ID        string `json:"id"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// History is the response of GET /api/history.
type History struct {
	Owner    string    `json:"owner"`
	Mode     string    `json:"mode"`
	Busy     bool      `json:"busy"`
	Messages []Message `json:"messages"`
}

// ModeInfo is one entry of GET /api/modes.
type ModeInfo struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ModeResult is the response of POST /api/mode.
type ModeResult struct {
	Mode   string `json:"mode"`
	Notice string `json:"notice,omitempty"`
}

// APIError is a non-2xx response carrying the gateway's error message.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Message)
}

// IsBusy reports whether the error is the gateway's busy rejection.
func (e *APIError) IsBusy() bool {
	return e.StatusCode == http.StatusConflict
}

// newRequest builds an authenticated request with an optional JSON body.
func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	return req, nil
}

// do executes a request and decodes a JSON response into out (which may be
// nil). Non-2xx responses become *APIError.
func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

// decodeAPIError reads an error response body into an *APIError.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		apiErr.Message = body["error"]
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

// History fetches the owner's full ordered conversation.
func (c *Client) History(ctx context.Context) (*History, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/history", nil)
	if err != nil {
		return nil, err
	}
	var h History
	if err := c.do(req, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ListModes fetches the mode catalog.
func (c *Client) ListModes(ctx context.Context) ([]ModeInfo, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/modes", nil)
	if err != nil {
		return nil, err
	}
	var list []ModeInfo
	if err := c.do(req, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// SetMode switches the conversation mode. The returned notice is empty
// when the mode was already active.
func (c *Client) SetMode(ctx context.Context, mode string) (*ModeResult, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/mode", map[string]string{"mode": mode})
	if err != nil {
		return nil, err
	}
	var result ModeResult
	if err := c.do(req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SignOut drops the server-side session. History stays durable and is
// reloaded on the next request.
func (c *Client) SignOut(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/api/signout", nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Healthy probes the gateway health endpoint.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probing health: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("gateway unhealthy: status %d", resp.StatusCode)
	}
	return nil
}
