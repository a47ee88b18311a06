// Package sentinel implements the -999 "not computed / invalid" float
// convention used throughout the analysis pipeline. Every field that can
// be legitimately absent (an unconverged center, an ungrounded ring) is
// represented as a Float rather than a bare float64, so that combining a
// missing value with a real one is a type-checked mistake instead of a
// silent NaN-like corruption.
package sentinel

import "math"

// Missing marks "not computed / invalid" on any Float field.
const Missing Float = -999

// Float is a float64 that may be Missing.
type Float float64

// Valid reports whether f is not the Missing sentinel.
func (f Float) Valid() bool {
	return f != Missing
}

// Value returns the underlying float64. Callers must check Valid first;
// Value does not panic on Missing, it just returns -999.
func (f Float) Value() float64 {
	return float64(f)
}

// Of wraps a plain float64 as a Float, mapping NaN to Missing.
func Of(v float64) Float {
	if math.IsNaN(v) {
		return Missing
	}
	return Float(v)
}

// Add returns a+b, or Missing if either operand is Missing.
func Add(a, b Float) Float {
	if !a.Valid() || !b.Valid() {
		return Missing
	}
	return Of(float64(a) + float64(b))
}

// Sub returns a-b, or Missing if either operand is Missing.
func Sub(a, b Float) Float {
	if !a.Valid() || !b.Valid() {
		return Missing
	}
	return Of(float64(a) - float64(b))
}

// Combine applies f to a and b and returns Missing if either is Missing,
// otherwise Of(f(a.Value(), b.Value())). It is the general case of Add/Sub
// for binary operations that don't merit their own named helper.
func Combine(a, b Float, f func(x, y float64) float64) Float {
	if !a.Valid() || !b.Valid() {
		return Missing
	}
	return Of(f(float64(a), float64(b)))
}

// Slice converts a []float64 to []Float, mapping NaN to Missing.
func Slice(vs []float64) []Float {
	out := make([]Float, len(vs))
	for i, v := range vs {
		out[i] = Of(v)
	}
	return out
}
