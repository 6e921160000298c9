package core

import "time"

// StepContext carries everything a Device needs to know about the step
// being taken.
type StepContext struct {
	// Position is the motor position, in steps, once this step lands.
	Position int64

	// StepTime is the clock reading the driver stepped at.
	StepTime time.Duration
}

// Device is an interface to the stepper motor itself.
//
// Step is invoked from the polling loop, potentially back-to-back, so
// it should be fast and must not block. Returning an error leaves the
// driver's position unchanged; the same step will be retried on the
// next poll.
type Device interface {
	Step(ctx StepContext) error
}

// DeviceFunc adapts a plain function to the Device interface.
type DeviceFunc func(ctx StepContext) error

// Step calls f.
func (f DeviceFunc) Step(ctx StepContext) error { return f(ctx) }

// NopDevice discards every step. Useful as a placeholder while wiring
// things together, or for exercising a Driver without any motor.
type NopDevice struct{}

// Step does nothing.
func (NopDevice) Step(StepContext) error { return nil }

// FuncDevice calls one function for a forwards step and another for a
// backwards step, deciding direction from the change in position since
// the last successful step.
type FuncDevice struct {
	forward  func() error
	backward func() error
	last     int64
}

// NewFuncDevice wraps the two callbacks. Either may be nil, in which
// case steps in that direction are dropped.
func NewFuncDevice(forward, backward func() error) *FuncDevice {
	return &FuncDevice{forward: forward, backward: backward}
}

// Step dispatches to the forward or backward callback.
func (d *FuncDevice) Step(ctx StepContext) error {
	var err error
	if ctx.Position >= d.last {
		if d.forward != nil {
			err = d.forward()
		}
	} else {
		if d.backward != nil {
			err = d.backward()
		}
	}
	if err == nil {
		d.last = ctx.Position
	}
	return err
}
