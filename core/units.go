package core

import (
	"math"
	"time"
)

// DurationFromSeconds converts a fractional number of seconds to a
// Duration, saturating instead of overflowing for absurd inputs.
func DurationFromSeconds(secs float64) time.Duration {
	ns := secs * float64(time.Second)
	if ns >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	if ns <= math.MinInt64 {
		return time.Duration(math.MinInt64)
	}
	return time.Duration(ns)
}

// Axis converts between a physical unit (millimetres, degrees, ...) and
// whole motor steps, so callers can think in real units while a Driver
// keeps counting steps.
type Axis struct {
	stepsPerUnit float64
}

// NewAxis returns an axis with the given steps-per-unit scaling.
func NewAxis(stepsPerUnit float64) Axis {
	return Axis{stepsPerUnit: stepsPerUnit}
}

// Steps converts a distance in physical units to the nearest whole
// number of steps.
func (a Axis) Steps(units float64) int64 {
	return int64(math.Round(units * a.stepsPerUnit))
}

// Units converts a step count back to physical units.
func (a Axis) Units(steps int64) float64 {
	return float64(steps) / a.stepsPerUnit
}

// StepsPerUnit returns the configured scaling.
func (a Axis) StepsPerUnit() float64 { return a.stepsPerUnit }
