package kv

import (
	"net/http"
	"time"
)

// TimingInfo holds the phases of one request. Phases that did not happen are
// zero.
type TimingInfo struct {
	StartTime           time.Time
	DNSLookupTime       time.Duration
	TCPConnectTime      time.Duration
	TLSHandshakeTime    time.Duration
	TimeToFirstByte     time.Duration
	ContentTransferTime time.Duration
	TotalTime           time.Duration
	ConnReused          bool
}

// Response is a fully buffered HTTP response.
type Response struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Headers    http.Header
	Body       []byte
	Timing     TimingInfo
}

// GetHeader returns the value of the specified header
func (r *Response) GetHeader(key string) string {
	return r.Headers.Get(key)
}

// IsSuccess returns true if the response status code is in the 2xx range
func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// IsEmpty reports whether the body has no bytes.
func (r *Response) IsEmpty() bool {
	return len(r.Body) == 0
}

// Record decodes the body as a single record.
func (r *Response) Record() (Record, error) {
	return DecodeRecord(r.Body)
}

// Records decodes the body as a positional record list.
func (r *Response) Records() ([]Record, error) {
	return DecodeRecords(r.Body)
}
