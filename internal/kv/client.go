// Package kv is an HTTP client for the /kv surface of a key-value service.
//
// Every request is timed with an httptrace hook and, when a Recorder is
// attached, reported under a per-operation request name so latency can be
// broken down by PUT, GET, MGET and DELETE.
package kv

import (
	"bytes"
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.uber.org/zap"
)

// Request names reported to the Recorder.
const (
	OpPut    = "kv_put"
	OpGet    = "kv_get"
	OpMGet   = "kv_mget"
	OpDelete = "kv_delete"
	OpHealth = "kv_health"
	OpReset  = "kv_reset"
)

// DefaultBaseURL is the address of a locally running service.
const DefaultBaseURL = "http://localhost:8089"

// Recorder receives one sample per completed or failed request.
type Recorder interface {
	RecordLatency(duration time.Duration, requestName string, success bool, bytes int64)
}

// Client talks to a key-value service over HTTP.
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	recorder   Recorder
	logger     *zap.Logger
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new client with the given options
func NewClient(options ...ClientOption) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL: DefaultBaseURL,
		headers: make(map[string]string),
		logger:  zap.NewNop(),
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithBaseURL sets the base URL for the client
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying http.Client, typically one with a
// pooled transport shared by every virtual user.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithHeader adds a header sent on every request
func WithHeader(key, value string) ClientOption {
	return func(c *Client) {
		c.headers[key] = value
	}
}

// WithRecorder attaches a latency recorder
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger.With(zap.String("component", "kv"))
		}
	}
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do executes a request and returns the buffered response with timing
// information.
//
// Transport errors are returned as errors. Any HTTP status is a response;
// whether it counts as a failed request is decided by the request's
// expected status set and reported to the Recorder.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := req.Build(ctx, c.baseURL)
	if err != nil {
		return nil, err
	}

	for key, value := range c.headers {
		if httpReq.Header.Get(key) == "" {
			httpReq.Header.Set(key, value)
		}
	}

	timing := TimingInfo{StartTime: time.Now()}
	httpReq = httpReq.WithContext(httptrace.WithClientTrace(httpReq.Context(), newTrace(&timing)))

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		timing.TotalTime = time.Since(timing.StartTime)
		// requests cut short by the caller are not samples
		if ctx.Err() == nil {
			c.record(req, timing.TotalTime, false, 0)
		}
		c.logger.Debug("request failed",
			zap.String("op", req.Name),
			zap.String("method", req.Method),
			zap.String("path", req.Path),
			zap.Error(err))
		return nil, err
	}

	transferStart := time.Now()
	body, readErr := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	timing.ContentTransferTime = time.Since(transferStart)
	timing.TotalTime = time.Since(timing.StartTime)

	if readErr != nil {
		if ctx.Err() == nil {
			c.record(req, timing.TotalTime, false, int64(len(body)))
		}
		c.logger.Debug("reading response body failed",
			zap.String("op", req.Name),
			zap.String("path", req.Path),
			zap.Error(readErr))
		return nil, readErr
	}

	resp := &Response{
		Method:     req.Method,
		URL:        httpReq.URL.String(),
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    httpResp.Header,
		Body:       body,
		Timing:     timing,
	}

	c.record(req, timing.TotalTime, req.Expects(resp.StatusCode), int64(len(body)))

	return resp, nil
}

func (c *Client) record(req *Request, d time.Duration, success bool, n int64) {
	if c.recorder == nil || req.Name == "" {
		return
	}
	c.recorder.RecordLatency(d, req.Name, success, n)
}

// newTrace fills timing as the connection phases complete. Phases that do
// not happen (reused connection, plain HTTP) stay zero.
func newTrace(timing *TimingInfo) *httptrace.ClientTrace {
	var dnsStart, connectStart, tlsStart time.Time
	lastPhaseEnd := timing.StartTime

	return &httptrace.ClientTrace{
		DNSStart: func(httptrace.DNSStartInfo) {
			dnsStart = time.Now()
		},
		DNSDone: func(httptrace.DNSDoneInfo) {
			now := time.Now()
			timing.DNSLookupTime = now.Sub(dnsStart)
			lastPhaseEnd = now
		},
		ConnectStart: func(string, string) {
			connectStart = time.Now()
		},
		ConnectDone: func(_, _ string, err error) {
			if err != nil {
				return
			}
			now := time.Now()
			timing.TCPConnectTime = now.Sub(connectStart)
			lastPhaseEnd = now
		},
		TLSHandshakeStart: func() {
			tlsStart = time.Now()
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			if err != nil {
				return
			}
			now := time.Now()
			timing.TLSHandshakeTime = now.Sub(tlsStart)
			lastPhaseEnd = now
		},
		GotConn: func(info httptrace.GotConnInfo) {
			timing.ConnReused = info.Reused
		},
		GotFirstResponseByte: func() {
			timing.TimeToFirstByte = time.Since(lastPhaseEnd)
		},
	}
}

// bodyReader wraps b for an outgoing request, nil when empty.
func bodyReader(b []byte) io.Reader {
	if len(b) == 0 {
		return nil
	}
	return bytes.NewReader(b)
}
