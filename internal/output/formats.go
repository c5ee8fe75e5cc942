package output

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/wesleyorama2/kvlunge/internal/kv"
)

// OutputFormat represents the available output formats
type OutputFormat string

const (
	// FormatText is the default human-readable text format
	FormatText OutputFormat = "text"
	// FormatJSON outputs in JSON format
	FormatJSON OutputFormat = "json"
	// FormatYAML outputs in YAML format
	FormatYAML OutputFormat = "yaml"
)

// ParseFormat converts a flag value to an OutputFormat.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (expected text, json or yaml)", s)
	}
}

// FormatProvider renders a kv response.
type FormatProvider interface {
	FormatResponse(resp *kv.Response) string
}

// TimingData represents detailed timing information for a request
type TimingData struct {
	DNSLookup       int64 `json:"dnsLookupMs,omitempty" yaml:"dnsLookupMs,omitempty"`
	TCPConnection   int64 `json:"tcpConnectionMs,omitempty" yaml:"tcpConnectionMs,omitempty"`
	TLSHandshake    int64 `json:"tlsHandshakeMs,omitempty" yaml:"tlsHandshakeMs,omitempty"`
	TimeToFirstByte int64 `json:"timeToFirstByteMs,omitempty" yaml:"timeToFirstByteMs,omitempty"`
	ContentTransfer int64 `json:"contentTransferMs,omitempty" yaml:"contentTransferMs,omitempty"`
	Total           int64 `json:"totalMs" yaml:"totalMs"`
}

// ResponseData represents the structured data of a kv response
type ResponseData struct {
	Method       string            `json:"method" yaml:"method"`
	URL          string            `json:"url" yaml:"url"`
	StatusCode   int               `json:"statusCode" yaml:"statusCode"`
	Status       string            `json:"status" yaml:"status"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body         interface{}       `json:"body,omitempty" yaml:"body,omitempty"`
	ResponseTime int64             `json:"responseTimeMs" yaml:"responseTimeMs"`
	Timing       *TimingData       `json:"timing,omitempty" yaml:"timing,omitempty"`
}

func newResponseData(resp *kv.Response, verbose bool) ResponseData {
	data := ResponseData{
		Method:       resp.Method,
		URL:          resp.URL,
		StatusCode:   resp.StatusCode,
		Status:       resp.Status,
		Body:         decodeBody(resp.Body),
		ResponseTime: resp.Timing.TotalTime.Milliseconds(),
	}

	if verbose {
		data.Headers = make(map[string]string, len(resp.Headers))
		for key, values := range resp.Headers {
			if len(values) > 0 {
				data.Headers[key] = values[0]
			}
		}
		t := resp.Timing
		data.Timing = &TimingData{
			DNSLookup:       t.DNSLookupTime.Milliseconds(),
			TCPConnection:   t.TCPConnectTime.Milliseconds(),
			TLSHandshake:    t.TLSHandshakeTime.Milliseconds(),
			TimeToFirstByte: t.TimeToFirstByte.Milliseconds(),
			ContentTransfer: t.ContentTransferTime.Milliseconds(),
			Total:           t.TotalTime.Milliseconds(),
		}
	}

	return data
}

// decodeBody returns the body as a JSON value when it parses, the raw
// string otherwise, or nil when empty.
func decodeBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	if !gjson.ValidBytes(body) {
		return string(body)
	}
	return gjson.ParseBytes(body).Value()
}

// JSONFormatter formats output as JSON
type JSONFormatter struct {
	Verbose bool
	Pretty  bool
}

// FormatResponse formats a response as JSON
func (f *JSONFormatter) FormatResponse(resp *kv.Response) string {
	data := newResponseData(resp, f.Verbose)

	var out []byte
	var err error
	if f.Pretty {
		out, err = json.MarshalIndent(data, "", "  ")
	} else {
		out, err = json.Marshal(data)
	}
	if err != nil {
		return fmt.Sprintf(`{"error":"failed to marshal response: %s"}`, err)
	}
	return string(out)
}

// YAMLFormatter formats output as YAML
type YAMLFormatter struct {
	Verbose bool
}

// FormatResponse formats a response as YAML
func (f *YAMLFormatter) FormatResponse(resp *kv.Response) string {
	out, err := yaml.Marshal(newResponseData(resp, f.Verbose))
	if err != nil {
		return fmt.Sprintf("error: failed to marshal response: %s\n", err)
	}
	return string(out)
}

// GetFormatter returns a formatter for the requested format.
func GetFormatter(format OutputFormat, verbose bool, noColor bool) FormatProvider {
	switch format {
	case FormatJSON:
		return &JSONFormatter{Verbose: verbose, Pretty: true}
	case FormatYAML:
		return &YAMLFormatter{Verbose: verbose}
	default:
		return NewFormatter(verbose, noColor)
	}
}

func sortedHeaderKeys(h map[string][]string) []string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
