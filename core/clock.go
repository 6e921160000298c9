package core

import "time"

// SystemClock reports how much time has passed since a clock-specific
// reference point (process start, device boot, the unix epoch).
//
// Clocks are read-only to the motion code. Nothing in this package ever
// advances a clock: whoever owns the clock drives time forward.
type SystemClock interface {
	Elapsed() time.Duration
}

// ClockFunc adapts a plain function to the SystemClock interface.
type ClockFunc func() time.Duration

// Elapsed calls f.
func (f ClockFunc) Elapsed() time.Duration { return f() }

// SimulatedClock is a manually driven clock for tests and simulation.
//
// A fresh clock reads zero and stays there until the caller moves it
// with Advance, Set or SetMicros. Reading has no side effects, so two
// reads with no mutation in between return the same value.
//
// SimulatedClock is deliberately unsynchronized. It is meant for
// single-threaded harnesses; concurrent use needs external locking.
type SimulatedClock struct {
	now time.Duration
}

// NewSimulatedClock returns a clock frozen at zero.
func NewSimulatedClock() *SimulatedClock {
	return &SimulatedClock{}
}

// Elapsed returns the current reading.
func (c *SimulatedClock) Elapsed() time.Duration { return c.now }

// Advance moves the clock forward by d.
func (c *SimulatedClock) Advance(d time.Duration) { c.now += d }

// Set jumps the clock to an absolute reading (for testing/hardware
// integration). Readers expect time to be monotonically nondecreasing;
// rewinding is on the caller.
func (c *SimulatedClock) Set(d time.Duration) { c.now = d }

// Micros returns the current reading in whole microseconds.
func (c *SimulatedClock) Micros() uint64 {
	return uint64(c.now / time.Microsecond)
}

// SetMicros jumps the clock to an absolute reading in microseconds.
func (c *SimulatedClock) SetMicros(us uint64) {
	c.now = time.Duration(us) * time.Microsecond
}

// OperatingSystemClock is a monotonically non-decreasing clock backed
// by the operating system. Elapsed reports time since the clock was
// created.
type OperatingSystemClock struct {
	createdAt time.Time
}

// NewOperatingSystemClock returns a clock whose epoch is now.
func NewOperatingSystemClock() *OperatingSystemClock {
	return &OperatingSystemClock{createdAt: time.Now()}
}

// Elapsed returns the time since the clock was created.
func (c *OperatingSystemClock) Elapsed() time.Duration {
	return time.Since(c.createdAt)
}
