package core

import (
	"errors"
	"time"
)

// MaxDrivers is the most axes a MultiDriver will manage.
const MaxDrivers = 10

// MultiDriver errors.
var (
	ErrTooManyDrivers = errors.New("core: multi driver is full")
	ErrLengthMismatch = errors.New("core: count does not match managed drivers")
)

// MultiDriver moves a group of axes in a coordinated fashion: every
// axis reaches its target at the same time.
//
// Coordinated moves run each axis at a constant speed derived from the
// slowest axis, so the acceleration ramps of the individual drivers
// are not used while a group move is in flight.
type MultiDriver struct {
	drivers []*Driver
}

// NewMultiDriver returns a MultiDriver managing the given axes.
func NewMultiDriver(drivers ...*Driver) *MultiDriver {
	return &MultiDriver{drivers: drivers}
}

// AddDriver appends an axis to the synchronized group. At most
// MaxDrivers axes are supported.
func (m *MultiDriver) AddDriver(d *Driver) error {
	if len(m.drivers) >= MaxDrivers {
		return ErrTooManyDrivers
	}
	m.drivers = append(m.drivers, d)
	return nil
}

// Drivers returns the managed axes, in the order they were added.
func (m *MultiDriver) Drivers() []*Driver { return m.drivers }

// MoveTo sets a coordinated target for every axis: positions must have
// one entry per managed driver. The axis with the longest move (at its
// own max speed) sets the pace, and every other axis is slowed so they
// all arrive together.
func (m *MultiDriver) MoveTo(positions []int64) error {
	if len(positions) != len(m.drivers) {
		return ErrLengthMismatch
	}
	if len(m.drivers) == 0 {
		return nil
	}

	// First find the axis that will take the longest to move.
	var longest time.Duration
	for i, d := range m.drivers {
		if t := timeToMove(d, positions[i]); t > longest {
			longest = t
		}
	}
	if longest == 0 {
		// Nothing else needs to be done.
		return nil
	}

	// Now work out a speed for each axis so they all arrive at the
	// same time.
	secs := longest.Seconds()
	for i, d := range m.drivers {
		distance := positions[i] - d.CurrentPosition()
		d.MoveTo(positions[i])
		d.SetSpeed(float64(distance) / secs)
	}
	return nil
}

func timeToMove(d *Driver, target int64) time.Duration {
	distance := target - d.CurrentPosition()
	if distance < 0 {
		distance = -distance
	}
	return DurationFromSeconds(float64(distance) / d.MaxSpeed())
}

// Poll pumps every axis once, stepping its paired device when a step
// is due. devices must line up one-to-one with the managed drivers.
// Axes that have reached their target are left alone.
func (m *MultiDriver) Poll(devices []Device, clock SystemClock) error {
	if len(devices) != len(m.drivers) {
		return ErrLengthMismatch
	}
	for i, d := range m.drivers {
		if d.DistanceToGo() == 0 {
			continue
		}
		if _, err := d.PollAtConstantSpeed(devices[i], clock); err != nil {
			return err
		}
	}
	return nil
}

// Wait pumps Poll until every axis reaches its target. It spins, so
// only use it with a clock that advances on its own (such as
// OperatingSystemClock), never with a caller-driven SimulatedClock.
func (m *MultiDriver) Wait(devices []Device, clock SystemClock) error {
	for m.IsRunning() {
		if err := m.Poll(devices, clock); err != nil {
			return err
		}
	}
	return nil
}

// IsRunning reports whether any managed axis is still short of its
// target.
func (m *MultiDriver) IsRunning() bool {
	for _, d := range m.drivers {
		if d.DistanceToGo() != 0 {
			return true
		}
	}
	return false
}

// Stop halts every axis where it stands, abandoning the current group
// move.
func (m *MultiDriver) Stop() {
	for _, d := range m.drivers {
		d.SetSpeed(0)
		d.MoveTo(d.CurrentPosition())
	}
}
