// Package httputil holds the JSON envelope helpers shared by the server and
// its client.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-Id"

// Client calls the /method endpoint of a scoring service.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// ClientConfig configures the client.
type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
}

// NewClient creates a new client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// MethodCall is the request envelope sent to /method.
type MethodCall struct {
	Account   string         `json:"account,omitempty"`
	Login     string         `json:"login"`
	Token     string         `json:"token"`
	Method    string         `json:"method"`
	Arguments map[string]any `json:"arguments"`
}

// Result is a decoded /method response.
type Result struct {
	Status    int
	RequestID string
	Envelope  Envelope
	// Raw keeps the undecoded response member.
	Raw json.RawMessage
}

// Call posts call to /method. Non-2xx statuses are not errors; they are
// reported in Result.
func (c *Client) Call(ctx context.Context, call MethodCall) (*Result, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	return c.Post(ctx, "/method", body)
}

// Post sends a raw JSON body to path.
func (c *Client) Post(ctx context.Context, path string, body []byte) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := ReadAllStrict(resp.Body, 8<<20)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	var raw struct {
		Response json.RawMessage `json:"response"`
		Error    string          `json:"error"`
		Code     int             `json:"code"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &Result{
		Status:    resp.StatusCode,
		RequestID: resp.Header.Get(RequestIDHeader),
		Envelope:  Envelope{Error: raw.Error, Code: raw.Code},
		Raw:       raw.Response,
	}, nil
}

// Decode unmarshals the response member into target.
func (r *Result) Decode(target any) error {
	if len(r.Raw) == 0 {
		return fmt.Errorf("response has no result (code %d: %s)", r.Envelope.Code, r.Envelope.Error)
	}
	return json.Unmarshal(r.Raw, target)
}
