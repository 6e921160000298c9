package core

import "errors"

// ErrHomingTravel means the endstop never triggered within the allowed
// travel.
var ErrHomingTravel = errors.New("core: endstop not reached within travel budget")

// Endstop senses whether an axis has reached its reference switch.
type Endstop interface {
	Triggered() (bool, error)
}

// EndstopFunc adapts a plain function to the Endstop interface.
type EndstopFunc func() (bool, error)

// Triggered calls f.
func (f EndstopFunc) Triggered() (bool, error) { return f() }

// PinEndstop reads a switch wired to a recorded pin, e.g. one a
// simulation toggles. TriggerLevel selects which level counts as
// pressed (mechanical switches to ground usually trigger Low).
type PinEndstop struct {
	Platform     *RecorderPlatform
	Pin          uint8
	TriggerLevel Level
}

// Triggered reports whether the pin currently reads the trigger level.
func (e *PinEndstop) Triggered() (bool, error) {
	return e.Platform.Level(e.Pin) == e.TriggerLevel, nil
}

// HomeOptions tunes a homing seek.
type HomeOptions struct {
	// Speed of the seek in steps per second. Negative seeks
	// backwards, the usual direction for a switch at the axis
	// minimum. Zero defaults to -MaxSpeed/4.
	Speed float64

	// MaxTravel bounds the seek in steps (absolute value), turning
	// a missing or broken switch into an error instead of an
	// endless crawl. Zero defaults to 1,000,000 steps.
	MaxTravel int64

	// Samples is how many consecutive triggered polls count as a
	// real trigger, to ride out switch bounce. Zero means one.
	Samples int
}

// Homer seeks an axis toward its endstop at constant speed and declares
// the spot where it triggers to be position zero.
//
// Like the Driver itself, a Homer never sleeps and never advances time:
// pump Poll until it reports done, with time flowing however the caller
// likes. The endstop is checked before each step, so a switch that is
// already pressed homes in place.
type Homer struct {
	driver  *Driver
	device  Device
	endstop Endstop
	travel  int64
	samples int
	start   int64
	hits    int
	done    bool
}

// NewHomer arms the seek move on the driver and returns the homer.
func NewHomer(d *Driver, device Device, endstop Endstop, opts HomeOptions) *Homer {
	speed := opts.Speed
	if speed == 0 {
		speed = -d.MaxSpeed() / 4
	}
	travel := opts.MaxTravel
	if travel == 0 {
		travel = 1_000_000
	}
	if travel < 0 {
		travel = -travel
	}
	samples := opts.Samples
	if samples <= 0 {
		samples = 1
	}

	// Aim past the budget so the target can't end the move early;
	// only the endstop or the budget does.
	if speed < 0 {
		d.Move(-(travel + 1))
	} else {
		d.Move(travel + 1)
	}
	d.SetSpeed(speed)

	return &Homer{
		driver:  d,
		device:  device,
		endstop: endstop,
		travel:  travel,
		samples: samples,
		start:   d.CurrentPosition(),
	}
}

// Poll advances the seek by at most one step. It reports done once the
// switch has triggered and the driver has been zeroed. Any error (from
// the endstop, the device, or running out of travel) halts the axis in
// place and ends the seek.
func (h *Homer) Poll(clock SystemClock) (bool, error) {
	if h.done {
		return true, nil
	}

	triggered, err := h.endstop.Triggered()
	if err != nil {
		h.halt()
		return false, err
	}
	if triggered {
		h.hits++
		if h.hits >= h.samples {
			h.driver.SetCurrentPosition(0)
			h.done = true
			return true, nil
		}
	} else {
		h.hits = 0
	}

	moved := h.driver.CurrentPosition() - h.start
	if moved < 0 {
		moved = -moved
	}
	if moved >= h.travel {
		h.halt()
		return false, ErrHomingTravel
	}

	if _, err := h.driver.PollAtConstantSpeed(h.device, clock); err != nil {
		h.halt()
		return false, err
	}
	return false, nil
}

func (h *Homer) halt() {
	h.driver.SetCurrentPosition(h.driver.CurrentPosition())
	h.done = true
}

// Home runs a homing seek to completion. It spins until the endstop
// triggers, so the clock must advance on its own (OperatingSystemClock
// or similar); with a caller-driven SimulatedClock use a Homer and
// advance time between polls instead.
func Home(d *Driver, device Device, clock SystemClock, endstop Endstop, opts HomeOptions) error {
	h := NewHomer(d, device, endstop, opts)
	for {
		done, err := h.Poll(clock)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
}
