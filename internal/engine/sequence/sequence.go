// Package sequence models authoritative and speculative state generations.
//
// Authoritative snapshots from the host carry integer sequence numbers. The
// engine may insert a local speculative generation halfway between two
// integers while an optimistic move is in flight; any authoritative merge
// discards it.
package sequence

import "math"

// Number is a state generation. Integer values are authoritative; a value of
// the form n+0.5 is a local speculative generation layered on top of n.
type Number float64

// Invalid is the sentinel for "no valid generation", used before the first
// snapshot and after a resync reset.
const Invalid Number = -1

// FromInt returns the authoritative generation for an integer sequence.
func FromInt(n int) Number {
	return Number(n)
}

// Valid reports whether the generation is a real (non-sentinel) value.
func (n Number) Valid() bool {
	return n >= 0
}

// Floor returns the authoritative generation this number is based on.
func (n Number) Floor() Number {
	return Number(math.Floor(float64(n)))
}

// Int returns the authoritative integer sequence this number is based on.
func (n Number) Int() int {
	return int(math.Floor(float64(n)))
}

// Next returns the next authoritative generation after this one.
func (n Number) Next() Number {
	return n.Floor() + 1
}

// Speculative returns the half-generation layered on top of this one.
func (n Number) Speculative() Number {
	return n.Floor() + 0.5
}

// IsSpeculative reports whether the generation is a local half-generation.
func (n Number) IsSpeculative() bool {
	return n.Valid() && n != n.Floor()
}
