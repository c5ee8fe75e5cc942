package output

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"

	"github.com/wesleyorama2/kvlunge/internal/kv"
)

// Formatter renders kv responses as human-readable text
type Formatter struct {
	Verbose bool
	NoColor bool
	colors  *ColorScheme
}

// NewFormatter creates a new formatter with the given options
func NewFormatter(verbose, noColor bool) *Formatter {
	colors := DefaultColorScheme()
	if noColor {
		colors = NoColorScheme()
	}
	return &Formatter{
		Verbose: verbose,
		NoColor: noColor,
		colors:  colors,
	}
}

// FormatResponse formats a response for display
func (f *Formatter) FormatResponse(resp *kv.Response) string {
	var buf strings.Builder

	if resp.Method != "" {
		buf.WriteString(fmt.Sprintf("▶ %s %s\n", f.colors.Method.Sprint(resp.Method), f.colors.URL.Sprint(resp.URL)))
	}

	buf.WriteString(fmt.Sprintf("◀ %s (%s)\n",
		f.colors.Status(resp.StatusCode).Sprint(resp.Status),
		formatMillis(resp.Timing.TotalTime.Milliseconds())))

	if f.Verbose {
		t := resp.Timing
		buf.WriteString("  Timing:\n")
		buf.WriteString(fmt.Sprintf("    DNS Lookup:         %s\n", formatMillis(t.DNSLookupTime.Milliseconds())))
		buf.WriteString(fmt.Sprintf("    TCP Connection:     %s\n", formatMillis(t.TCPConnectTime.Milliseconds())))
		buf.WriteString(fmt.Sprintf("    TLS Handshake:      %s\n", formatMillis(t.TLSHandshakeTime.Milliseconds())))
		buf.WriteString(fmt.Sprintf("    Time to First Byte: %s\n", formatMillis(t.TimeToFirstByte.Milliseconds())))
		buf.WriteString(fmt.Sprintf("    Content Transfer:   %s\n", formatMillis(t.ContentTransferTime.Milliseconds())))
		buf.WriteString(fmt.Sprintf("    Total:              %s\n", formatMillis(t.TotalTime.Milliseconds())))
		if t.ConnReused {
			buf.WriteString("    Connection reused\n")
		}

		buf.WriteString("  Headers:\n")
		for _, key := range sortedHeaderKeys(resp.Headers) {
			for _, value := range resp.Headers[key] {
				buf.WriteString(fmt.Sprintf("    %s: %s\n", f.colors.HeaderKey.Sprint(key), value))
			}
		}
	}

	if len(resp.Body) > 0 {
		if records := f.formatRecords(resp.Body); records != "" {
			buf.WriteString(records)
		}
		buf.WriteString("  Body:\n")
		buf.WriteString(f.formatJSON(resp.Body))
		buf.WriteString("\n")
	}

	return buf.String()
}

// formatRecords lists key = value lines for record-shaped bodies.
func (f *Formatter) formatRecords(body []byte) string {
	var records []kv.Record
	if rec, err := kv.DecodeRecord(body); err == nil {
		records = []kv.Record{rec}
	} else if list, err := kv.DecodeRecords(body); err == nil {
		records = list
	} else {
		return ""
	}

	var buf strings.Builder
	buf.WriteString("  Records:\n")
	for _, r := range records {
		value := f.colors.Null.Sprint("(null)")
		if r.Present() {
			value = f.colors.Value.Sprint(*r.Value)
		}
		buf.WriteString(fmt.Sprintf("    %s = %s\n", f.colors.Key.Sprint(r.Key), value))
	}
	return buf.String()
}

// formatJSON pretty-prints a JSON body, or returns it unchanged.
func (f *Formatter) formatJSON(body []byte) string {
	if !gjson.ValidBytes(body) {
		return "  " + string(body)
	}
	out := pretty.PrettyOptions(body, &pretty.Options{Width: 80, Prefix: "  ", Indent: "  "})
	if !f.NoColor {
		out = pretty.Color(out, nil)
	}
	return strings.TrimRight(string(out), "\n")
}

func formatMillis(ms int64) string {
	return fmt.Sprintf("%dms", ms)
}
