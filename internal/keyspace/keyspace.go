// Package keyspace maps virtual users and their iteration counters onto a
// bounded key namespace.
//
// Every unit owns a private, contiguous sub-range of the namespace and walks
// it round-robin as its iteration counter grows. The mapping is pure
// arithmetic over caller-local state, so hundreds of concurrent units can
// pick keys without coordination and a run can be replayed key for key.
package keyspace

import "fmt"

// Prefix is prepended to every generated key.
const Prefix = "bench"

// Width is the zero-padded width of the key ordinal.
const Width = 6

// Partitioner splits a namespace of Keys ordinals across VUs units.
type Partitioner struct {
	keys    int64
	vus     int64
	perUnit int64
}

// New creates a partitioner for the given namespace size and unit count.
// Non-positive arguments are treated as 1.
func New(keys, vus int) *Partitioner {
	k := int64(keys)
	if k < 1 {
		k = 1
	}
	v := int64(vus)
	if v < 1 {
		v = 1
	}

	perUnit := k / v
	if perUnit < 1 {
		perUnit = 1
	}

	return &Partitioner{keys: k, vus: v, perUnit: perUnit}
}

// Keys returns the namespace size.
func (p *Partitioner) Keys() int { return int(p.keys) }

// VUs returns the unit count.
func (p *Partitioner) VUs() int { return int(p.vus) }

// PerUnit returns the size of each unit's sub-range.
func (p *Partitioner) PerUnit() int { return int(p.perUnit) }

// Ordinal returns the 1-based key ordinal for a unit (1-based) at an
// iteration (0-based). The result is always in [1, Keys].
//
// When Keys is not a multiple of VUs the overshoot of the trailing units is
// clamped onto the last ordinal rather than wrapped.
func (p *Partitioner) Ordinal(unit int, iteration int64) int {
	u := int64(unit)
	if u < 1 {
		u = 1
	}
	if iteration < 0 {
		iteration = 0
	}

	base := (u - 1) * p.perUnit
	slot := iteration % p.perUnit

	ordinal := base + slot + 1
	if ordinal > p.keys {
		ordinal = p.keys
	}
	return int(ordinal)
}

// Key returns the key for a unit at an iteration.
func (p *Partitioner) Key(unit int, iteration int64) string {
	return Format(p.Ordinal(unit, iteration))
}

// Format renders an ordinal as a key.
func Format(ordinal int) string {
	return fmt.Sprintf("%s%0*d", Prefix, Width, ordinal)
}

// Key is a convenience wrapper around New(keys, vus).Key(unit, iteration).
func Key(unit int, iteration int64, keys, vus int) string {
	return New(keys, vus).Key(unit, iteration)
}
