package kv

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRecord(t *testing.T) {
	rec, err := DecodeRecord([]byte(`{"key":"bench000003","value":"7"}`))
	require.NoError(t, err)
	assert.Equal(t, "bench000003", rec.Key)
	require.True(t, rec.Present())
	assert.Equal(t, "7", *rec.Value)

	rec, err = DecodeRecord([]byte(`{"key":"bench000003","value":null}`))
	require.NoError(t, err)
	assert.False(t, rec.Present())
	assert.Equal(t, "none", rec.ValueOr("none"))

	// an empty string is a value, not an absence
	rec, err = DecodeRecord([]byte(`{"key":"k","value":""}`))
	require.NoError(t, err)
	assert.True(t, rec.Present())
}

func TestDecodeRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"empty", ``},
		{"malformed", `{"key":`},
		{"not an object", `["a"]`},
		{"missing value", `{"key":"a"}`},
		{"numeric value", `{"key":"a","value":7}`},
		{"numeric key", `{"key":1,"value":"7"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord([]byte(tt.body))
			assert.Error(t, err)
		})
	}
}

func TestDecodeRecords(t *testing.T) {
	recs, err := DecodeRecords([]byte(`[{"key":"a","value":"1"},{"key":"a__absent","value":null}]`))
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "a", recs[0].Key)
	assert.Equal(t, "1", recs[0].ValueOr(""))
	assert.Equal(t, "a__absent", recs[1].Key)
	assert.Nil(t, recs[1].Value)

	recs, err = DecodeRecords([]byte(`[]`))
	require.NoError(t, err)
	assert.Empty(t, recs)

	_, err = DecodeRecords([]byte(`{"key":"a","value":"1"}`))
	assert.Error(t, err)

	_, err = DecodeRecords([]byte(`[{"key":"a"}]`))
	assert.Error(t, err)

	_, err = DecodeRecords([]byte(`[`))
	assert.Error(t, err)
}
