package scenario

import (
	"net/url"
	"strconv"

	"github.com/wesleyorama2/kvlunge/internal/keyspace"
)

// Iteration identifies one pass of a unit through the scenario.
type Iteration struct {
	Unit    int
	Counter int64
	Key     string
	Value   string
}

// NewIteration derives the key and value for unit at counter.
func NewIteration(keys *keyspace.Partitioner, unit int, counter int64) Iteration {
	return Iteration{
		Unit:    unit,
		Counter: counter,
		Key:     keys.Key(unit, counter),
		Value:   strconv.FormatInt(counter, 10),
	}
}

// AbsentKey is the companion key used by the batch read.
func (it Iteration) AbsentKey() string {
	return it.Key + AbsentSuffix
}

// FormBody is the exact body the write sends.
func (it Iteration) FormBody() string {
	return url.Values{"value": {it.Value}}.Encode()
}

// Matches reports whether a stored value reflects this iteration's write.
// The service may hand back either the decoded value or the raw form body
// it was given.
func (it Iteration) Matches(stored string) bool {
	return stored == it.Value || stored == it.FormBody()
}
