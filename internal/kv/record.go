package kv

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/wesleyorama2/kvlunge/pkg/jsonschema"
)

const recordShape = `{
	"type": "object",
	"properties": {
		"key":   { "type": "string" },
		"value": { "type": ["string", "null"] }
	},
	"required": ["key", "value"]
}`

var (
	recordSchema     = jsonschema.MustCompile("record.json", recordShape)
	recordListSchema = jsonschema.MustCompile("records.json", `{"type": "array", "items": `+recordShape+`}`)
)

// Record is one {key, value} entry returned by the service. A nil Value
// means the key is absent or expired.
type Record struct {
	Key   string
	Value *string
}

// Present reports whether the record carries a value.
func (r Record) Present() bool {
	return r.Value != nil
}

// ValueOr returns the value, or def when the record is absent.
func (r Record) ValueOr(def string) string {
	if r.Value == nil {
		return def
	}
	return *r.Value
}

// DecodeRecord parses a single {key, value} object. A body that is not JSON
// or does not have that shape is an error.
func DecodeRecord(body []byte) (Record, error) {
	if !gjson.ValidBytes(body) {
		return Record{}, fmt.Errorf("record: malformed JSON")
	}
	if err := recordSchema.Validate(body); err != nil {
		return Record{}, fmt.Errorf("record: %w", err)
	}
	return recordFrom(gjson.ParseBytes(body)), nil
}

// DecodeRecords parses a positional list of records.
func DecodeRecords(body []byte) ([]Record, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("records: malformed JSON")
	}
	if err := recordListSchema.Validate(body); err != nil {
		return nil, fmt.Errorf("records: %w", err)
	}

	items := gjson.ParseBytes(body).Array()
	records := make([]Record, 0, len(items))
	for _, item := range items {
		records = append(records, recordFrom(item))
	}
	return records, nil
}

func recordFrom(res gjson.Result) Record {
	rec := Record{Key: res.Get("key").String()}
	if v := res.Get("value"); v.Type == gjson.String {
		s := v.String()
		rec.Value = &s
	}
	return rec
}
