package kv

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Put stores value under key. A positive ttl (seconds) is sent as ?ttl=.
// The value travels form-encoded as value=<value>; the service stores the
// body verbatim.
func (c *Client) Put(ctx context.Context, key, value string, ttl int) (*Response, error) {
	req := NewRequest(http.MethodPut, keyPath(key)).
		Named(OpPut).
		WithForm(url.Values{"value": {value}}).
		Expect(http.StatusNoContent)
	if ttl > 0 {
		req.WithQueryParam("ttl", strconv.Itoa(ttl))
	}
	return c.Do(ctx, req)
}

// PutRaw stores body verbatim under key.
func (c *Client) PutRaw(ctx context.Context, key string, body []byte, ttl int) (*Response, error) {
	req := NewRequest(http.MethodPut, keyPath(key)).
		Named(OpPut).
		WithBody(body).
		Expect(http.StatusNoContent)
	if ttl > 0 {
		req.WithQueryParam("ttl", strconv.Itoa(ttl))
	}
	return c.Do(ctx, req)
}

// Get reads key. Both 200 and 404 are expected answers.
func (c *Client) Get(ctx context.Context, key string) (*Response, error) {
	req := NewRequest(http.MethodGet, keyPath(key)).
		Named(OpGet).
		Expect(http.StatusOK, http.StatusNotFound)
	return c.Do(ctx, req)
}

// MGet reads keys in one request. The response lists one record per distinct
// key in request order.
func (c *Client) MGet(ctx context.Context, keys ...string) (*Response, error) {
	req := NewRequest(http.MethodGet, "/kv/mget").
		Named(OpMGet).
		WithRawQuery("keys=" + joinKeys(keys)).
		Expect(http.StatusOK)
	return c.Do(ctx, req)
}

// Delete removes key.
func (c *Client) Delete(ctx context.Context, key string) (*Response, error) {
	req := NewRequest(http.MethodDelete, keyPath(key)).
		Named(OpDelete).
		Expect(http.StatusNoContent)
	return c.Do(ctx, req)
}

// Health checks GET /health and returns a StatusError unless it answers 200.
func (c *Client) Health(ctx context.Context) error {
	req := NewRequest(http.MethodGet, "/health").Expect(http.StatusOK)
	return c.expectOK(ctx, req)
}

// Reset wipes the store with POST /reset.
func (c *Client) Reset(ctx context.Context) error {
	req := NewRequest(http.MethodPost, "/reset").Expect(http.StatusOK, http.StatusNoContent)
	return c.expectOK(ctx, req)
}

// Stats returns the raw JSON document served by GET /stats.
func (c *Client) Stats(ctx context.Context) ([]byte, error) {
	req := NewRequest(http.MethodGet, "/stats").Expect(http.StatusOK)
	resp, err := c.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	if !req.Expects(resp.StatusCode) {
		return nil, &StatusError{Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp.Body, nil
}

func (c *Client) expectOK(ctx context.Context, req *Request) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if !req.Expects(resp.StatusCode) {
		return &StatusError{Method: req.Method, Path: req.Path, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

func keyPath(key string) string {
	return "/kv/" + key
}

func joinKeys(keys []string) string {
	escaped := make([]string, len(keys))
	for i, k := range keys {
		escaped[i] = url.QueryEscape(k)
	}
	return strings.Join(escaped, ",")
}
