package kv

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// Request describes one call against the service.
type Request struct {
	// Name is the request name reported to the Recorder. Empty disables
	// recording.
	Name        string
	Method      string
	Path        string
	QueryParams url.Values
	Headers     map[string]string
	Body        []byte

	// RawQuery, when set, is appended verbatim after QueryParams. The mget
	// endpoint needs literal commas between keys.
	RawQuery string

	expected []int
}

// NewRequest creates a new request
func NewRequest(method, path string) *Request {
	return &Request{
		Method:      method,
		Path:        path,
		QueryParams: make(url.Values),
		Headers:     make(map[string]string),
	}
}

// Named sets the request name
func (r *Request) Named(name string) *Request {
	r.Name = name
	return r
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithQueryParam adds a query parameter to the request
func (r *Request) WithQueryParam(key, value string) *Request {
	r.QueryParams.Add(key, value)
	return r
}

// WithRawQuery sets a pre-encoded query fragment
func (r *Request) WithRawQuery(q string) *Request {
	r.RawQuery = q
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body []byte) *Request {
	r.Body = body
	return r
}

// WithForm sets a form-encoded body
func (r *Request) WithForm(values url.Values) *Request {
	r.Body = []byte(values.Encode())
	r.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	return r
}

// Expect sets the statuses that count as a successful request. With no
// expectation any 2xx or 3xx status succeeds.
func (r *Request) Expect(statuses ...int) *Request {
	r.expected = append(r.expected[:0], statuses...)
	return r
}

// Expects reports whether status counts as a successful request.
func (r *Request) Expects(status int) bool {
	if len(r.expected) == 0 {
		return status >= 200 && status < 400
	}
	for _, s := range r.expected {
		if s == status {
			return true
		}
	}
	return false
}

// Build constructs an http.Request against baseURL.
func (r *Request) Build(ctx context.Context, baseURL string) (*http.Request, error) {
	reqURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}

	reqURL.Path = strings.TrimRight(reqURL.Path, "/") + "/" + strings.TrimLeft(r.Path, "/")

	query := reqURL.Query()
	for key, values := range r.QueryParams {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	raw := query.Encode()
	if r.RawQuery != "" {
		if raw != "" {
			raw += "&"
		}
		raw += r.RawQuery
	}
	reqURL.RawQuery = raw

	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL.String(), bodyReader(r.Body))
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}
