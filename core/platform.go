package core

import "time"

// Level is the logic level of a digital pin.
type Level uint8

// Logic levels.
const (
	Low  Level = 0 // deasserted
	High Level = 1 // asserted
)

// PinMode selects the configured direction/function of a pin.
type PinMode uint8

// Output configures a pin as a digital output.
const Output PinMode = 0

// Platform is the hardware-actuation capability pin devices run on.
// Implementations either drive real pins or refuse to.
type Platform interface {
	// PinMode configures the direction/function of a pin.
	PinMode(pin uint8, mode PinMode)

	// DigitalWrite drives a pin to the given logic level.
	DigitalWrite(pin uint8, level Level)

	// DelayMicroseconds busy-waits for the given duration.
	DelayMicroseconds(us uint32)
}

// UnavailablePlatform refuses all hardware access: every method panics.
//
// Inject it wherever code must compile against pin control but must
// never actually touch a pin, such as a host-side test build. Reaching
// one of these methods is an integration bug in the caller, and the
// loud failure is the point.
type UnavailablePlatform struct{}

// PinMode panics.
func (UnavailablePlatform) PinMode(pin uint8, mode PinMode) {
	panic("core: pin mode configuration is unavailable on this platform")
}

// DigitalWrite panics.
func (UnavailablePlatform) DigitalWrite(pin uint8, level Level) {
	panic("core: digital pin writes are unavailable on this platform")
}

// DelayMicroseconds panics.
func (UnavailablePlatform) DelayMicroseconds(us uint32) {
	panic("core: busy-wait delays are unavailable on this platform")
}

// RecorderPlatform remembers every pin operation so a simulation or a
// test can inspect what a device did. The zero value is ready to use.
//
// Like SimulatedClock it is unsynchronized: single-threaded use only.
type RecorderPlatform struct {
	modes   map[uint8]PinMode
	levels  map[uint8]Level
	writes  int
	delayed time.Duration
}

// PinMode records the configured mode for pin.
func (p *RecorderPlatform) PinMode(pin uint8, mode PinMode) {
	if p.modes == nil {
		p.modes = make(map[uint8]PinMode)
	}
	p.modes[pin] = mode
}

// DigitalWrite records the new level for pin.
func (p *RecorderPlatform) DigitalWrite(pin uint8, level Level) {
	if p.levels == nil {
		p.levels = make(map[uint8]Level)
	}
	p.levels[pin] = level
	p.writes++
}

// DelayMicroseconds accumulates the requested delay without sleeping.
func (p *RecorderPlatform) DelayMicroseconds(us uint32) {
	p.delayed += time.Duration(us) * time.Microsecond
}

// Level returns the last level written to pin, Low if it was never
// written.
func (p *RecorderPlatform) Level(pin uint8) Level {
	return p.levels[pin]
}

// Mode returns the configured mode for pin and whether it was ever
// configured.
func (p *RecorderPlatform) Mode(pin uint8) (PinMode, bool) {
	mode, ok := p.modes[pin]
	return mode, ok
}

// Writes returns how many digital writes were recorded.
func (p *RecorderPlatform) Writes() int { return p.writes }

// Delayed returns the total busy-wait time requested so far.
func (p *RecorderPlatform) Delayed() time.Duration { return p.delayed }
