package scenario

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wesleyorama2/kvlunge/internal/keyspace"
)

func TestNewIteration(t *testing.T) {
	it := NewIteration(keyspace.New(10, 2), 1, 7)

	assert.Equal(t, 1, it.Unit)
	assert.Equal(t, int64(7), it.Counter)
	assert.Equal(t, "bench000003", it.Key)
	assert.Equal(t, "7", it.Value)
	assert.Equal(t, "bench000003__absent", it.AbsentKey())
	assert.Equal(t, "value=7", it.FormBody())
}

func TestIteration_Matches(t *testing.T) {
	it := Iteration{Value: "42"}

	assert.True(t, it.Matches("42"))
	assert.True(t, it.Matches("value=42"))
	assert.False(t, it.Matches("41"))
	assert.False(t, it.Matches("value=4"))
	assert.False(t, it.Matches(""))
}
