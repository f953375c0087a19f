package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/Daniromero1410/Sistema-Positiva/config"
	"github.com/Daniromero1410/Sistema-Positiva/pkg/logger"
)

// IdempotencyHeader carries the client-generated key of a tagged submission.
const IdempotencyHeader = "X-Idempotency-Key"

type idempotencyKeyCtx struct{}

// WithIdempotencyKey makes every request issued with ctx carry key.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyCtx{}, key)
}

// IdempotencyKey returns the key stored by WithIdempotencyKey.
func IdempotencyKey(ctx context.Context) string {
	key, _ := ctx.Value(idempotencyKeyCtx{}).(string)
	return key
}

// Client talks to the Consolidador T25 backend. It keeps no per-run state, so one
// Client can serve any number of concurrent runs.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg *config.APIConfig) *Client {
	timeout := cfg.Timeout()
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL is the backend root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request is one round trip description.
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

func (c *Client) url(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do performs r and returns the body of a 2xx answer. Everything else is a TransportError.
func (c *Client) do(ctx context.Context, r request) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, r.method, c.url(r.path, r.query), r.body)
	if err != nil {
		return nil, &TransportError{Op: r.op, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Accept", "application/json")
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if key := IdempotencyKey(ctx); key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	if requestID, ok := ctx.Value(logger.RequestIDKey).(string); ok && requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: r.op, Err: fmt.Errorf("failed to send request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: r.op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Op: r.op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

// getJSON decodes the answer of a GET into out.
func (c *Client) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	body, err := c.do(ctx, request{op: op, method: http.MethodGet, path: path, query: query})
	if err != nil {
		return err
	}
	return decode(op, body, out)
}

// postJSON sends in as JSON and decodes the answer into out when out is not nil.
func (c *Client) postJSON(ctx context.Context, op, path string, in, out any) error {
	var reqBody io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: failed to marshal request: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}

	body, err := c.do(ctx, request{op: op, method: http.MethodPost, path: path, body: reqBody, contentType: contentType})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return decode(op, body, out)
}

func decode(op string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Op: op, StatusCode: http.StatusOK, Body: string(body), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// GetRaw fetches path and returns the backend's bytes untouched.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) ([]byte, error) {
	return c.do(ctx, request{op: "GET " + path, method: http.MethodGet, path: path, query: query})
}

// PostRaw sends body as JSON to path and returns the backend's bytes untouched.
func (c *Client) PostRaw(ctx context.Context, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	return c.do(ctx, request{op: "POST " + path, method: http.MethodPost, path: path, body: reader, contentType: "application/json"})
}
