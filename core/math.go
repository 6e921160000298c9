package core

import "math"

// Clamp limits v to the inclusive range [lo, hi]: values inside the
// range come back unchanged, values outside snap to the nearer bound.
// The bounds must satisfy lo <= hi; the result is unspecified otherwise.
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if hi < v {
		return hi
	}
	return v
}

// Max returns the larger of a and b with math.Max's floating-point
// semantics. Callers should not rely on its NaN behavior.
func Max(a, b float64) float64 {
	return math.Max(a, b)
}
