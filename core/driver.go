package core

import (
	"math"
	"time"
)

// Driver runs a single stepper motor with acceleration and deceleration
// ramps, using the step-timing scheme from David Austin's "Generate
// stepper-motor speed profiles in real time" (Embedded Systems
// Programming, 2005).
//
// A Driver owns no hardware and never sleeps. Call Poll from your main
// loop as often as you can; each call emits at most one step to the
// Device when one is due against the supplied clock. You may want the
// Axis helper to convert movements in real units (mm, degrees) to the
// right number of steps.
//
// The zero value is inert until SetMaxSpeed and SetAcceleration are
// called; NewDriver returns one that can move immediately.
type Driver struct {
	maxSpeed        float64
	acceleration    float64
	currentPosition int64
	stepInterval    time.Duration
	speed           float64
	targetPosition  int64
	lastStepTime    time.Duration

	// The step counter for speed calculations. Positive while
	// accelerating, negative while decelerating, zero at rest.
	stepCounter     int64
	initialStepSize time.Duration
	lastStepSize    time.Duration
	// Min step size based on maxSpeed.
	minStepSize time.Duration

	trace *TraceRing
}

// NewDriver returns a driver with a max speed and acceleration of 1.0,
// so it can immediately run at constant speeds.
func NewDriver() *Driver {
	d := &Driver{}
	d.SetMaxSpeed(1.0)
	d.SetAcceleration(1.0)
	return d
}

// MoveTo sets the target position in steps, relative to the zero point
// (typically set when calibrating with SetCurrentPosition).
func (d *Driver) MoveTo(target int64) {
	if d.targetPosition == target {
		return
	}
	d.targetPosition = target
	if d.trace != nil {
		d.trace.Record(TraceEvent{When: d.lastStepTime, Position: target, Kind: TraceRetarget})
	}
	d.computeNewSpeed()
}

// Move sets the target the given number of steps away from the current
// position. Negative deltas move backwards.
func (d *Driver) Move(delta int64) {
	d.MoveTo(d.currentPosition + delta)
}

// SetMaxSpeed sets the maximum permitted speed in steps per second.
// Non-positive values are ignored.
//
// # Caution
//
// The speed actually achievable depends on how often Poll gets called.
// The default max speed is 1.0 step per second.
func (d *Driver) SetMaxSpeed(stepsPerSecond float64) {
	if stepsPerSecond <= 0 {
		return
	}
	d.maxSpeed = stepsPerSecond
	d.minStepSize = DurationFromSeconds(1.0 / stepsPerSecond)
}

// MaxSpeed returns the maximum permitted speed.
func (d *Driver) MaxSpeed() float64 { return d.maxSpeed }

// SetAcceleration sets the acceleration and deceleration rate in steps
// per second per second. Zero is ignored; a negative rate is used as
// its absolute value.
func (d *Driver) SetAcceleration(acceleration float64) {
	if acceleration == 0 {
		return
	}
	acceleration = math.Abs(acceleration)
	if acceleration == d.acceleration {
		return
	}

	// Recompute stepCounter per Equation 17.
	d.stepCounter = int64(float64(d.stepCounter) * d.acceleration / acceleration)
	// New initialStepSize per Equation 7, with correction per
	// Equation 15.
	d.initialStepSize = DurationFromSeconds(0.676 * math.Sqrt(2.0/acceleration))
	d.acceleration = acceleration
	d.computeNewSpeed()
}

// Acceleration returns the acceleration/deceleration rate.
func (d *Driver) Acceleration() float64 { return d.acceleration }

// SetSpeed sets the desired constant speed for PollAtConstantSpeed, in
// steps per second, limited to ±MaxSpeed. Positive speeds run forward,
// negative backwards; zero (or a non-finite value) stops stepping.
//
// Very slow speeds may be set (e.g. 0.00027777 for about once per
// hour). Accuracy depends on the clock, jitter on how frequently the
// driver gets polled.
func (d *Driver) SetSpeed(stepsPerSecond float64) {
	if stepsPerSecond == d.speed {
		return
	}

	speed := Clamp(stepsPerSecond, -d.maxSpeed, d.maxSpeed)

	if speed == 0 || math.IsNaN(speed) || math.IsInf(speed, 0) {
		d.stepInterval = 0
	} else {
		d.stepInterval = time.Duration(math.Round(math.Abs(1e9 / speed)))
	}

	d.speed = speed
}

// Speed returns the most recently computed or set speed in steps per
// second.
func (d *Driver) Speed() float64 { return d.speed }

// DistanceToGo returns how many steps remain until the target position.
func (d *Driver) DistanceToGo() int64 {
	return d.targetPosition - d.currentPosition
}

// TargetPosition returns the most recently set target position.
func (d *Driver) TargetPosition() int64 { return d.targetPosition }

// SetCurrentPosition resets the position counter so the motor's current
// location reads as position, and forgets any motion in progress.
// Useful for establishing a zero after an initial homing move. Only
// sensible while the motor is stopped.
func (d *Driver) SetCurrentPosition(position int64) {
	d.currentPosition = position
	d.targetPosition = position
	d.stepInterval = 0
	d.speed = 0.0
}

// CurrentPosition returns the current motor position, as measured by
// counting the steps emitted so far.
//
// # Note
//
// Stepper motors are an open-loop system, so there is no guarantee the
// motor is actually at that position.
func (d *Driver) CurrentPosition() int64 { return d.currentPosition }

// Stop sets a new target that brings the motor to rest as quickly as
// the current speed and acceleration allow.
func (d *Driver) Stop() {
	if d.speed == 0 {
		return
	}

	stoppingDistance := (d.speed * d.speed) / (2.0 * d.acceleration)
	stepsToStop := int64(math.Round(stoppingDistance)) + 1

	if d.speed > 0 {
		d.Move(stepsToStop)
	} else {
		d.Move(-stepsToStop)
	}
}

// IsRunning reports whether the motor is still heading to a target.
func (d *Driver) IsRunning() bool {
	return d.speed != 0 || d.targetPosition != d.currentPosition
}

// SetTraceRing attaches a ring that records every committed step, full
// stop and retarget. A nil ring disables tracing.
func (d *Driver) SetTraceRing(r *TraceRing) { d.trace = r }

func (d *Driver) computeNewSpeed() {
	distanceTo := d.DistanceToGo()
	stoppingDistance := (d.speed * d.speed) / (2.0 * d.acceleration)
	stepsToStop := int64(math.Round(stoppingDistance))

	if distanceTo == 0 && stepsToStop <= 1 {
		// We are at the target and it's time to stop.
		d.stepInterval = 0
		d.speed = 0.0
		d.stepCounter = 0
		if d.trace != nil {
			d.trace.Record(TraceEvent{When: d.lastStepTime, Position: d.currentPosition, Kind: TraceStop})
		}
		return
	}

	if distanceTo > 0 {
		// The target is in front of us.
		if d.stepCounter > 0 {
			// Currently accelerating: need to decel now?
			if stepsToStop >= distanceTo {
				d.stepCounter = -stepsToStop // start decelerating
			}
		} else if d.stepCounter < 0 {
			// Currently decelerating: need to accel again?
			if stepsToStop < distanceTo {
				d.stepCounter = -d.stepCounter // start accelerating
			}
		}
	} else if distanceTo < 0 {
		// We've gone past the target and need to go backwards,
		// maybe decelerating.
		if d.stepCounter > 0 {
			if stepsToStop >= -distanceTo {
				d.stepCounter = -stepsToStop
			}
		} else if d.stepCounter < 0 {
			if stepsToStop < -distanceTo {
				d.stepCounter = -d.stepCounter
			}
		}
	}

	if d.stepCounter == 0 {
		// First step after having stopped.
		d.lastStepSize = d.initialStepSize
	} else {
		// Subsequent step. Works for accel (n is +ve) and decel
		// (n is -ve).
		size := d.lastStepSize.Seconds()
		size -= size * 2.0 / (4.0*float64(d.stepCounter) + 1.0)
		d.lastStepSize = DurationFromSeconds(size)
		if d.lastStepSize < d.minStepSize {
			d.lastStepSize = d.minStepSize
		}
	}

	d.stepCounter++
	d.stepInterval = d.lastStepSize
	d.speed = 1.0 / d.lastStepSize.Seconds()
	if distanceTo < 0 {
		d.speed = -d.speed
	}
}

// Poll the driver, stepping the device once if a step is due and then
// recomputing the speed ramp.
//
// Call this as frequently as possible, but at least once per minimum
// step interval, preferably from the main loop. Each call makes at
// most one step, and only when one is due given the current speed and
// the time since the last step. Reports whether a step was made.
//
// # Warning
//
// For correctness the same SystemClock should be used for every call.
// Mixing clocks will mess up the internal timing calculations.
func (d *Driver) Poll(device Device, clock SystemClock) (bool, error) {
	stepped, err := d.PollAtConstantSpeed(device, clock)
	if err != nil || !stepped {
		return stepped, err
	}
	d.computeNewSpeed()
	return true, nil
}

// PollAtConstantSpeed steps the device if a step is due, holding the
// constant speed chosen by the most recent SetSpeed call instead of
// following the acceleration ramp.
//
// Call this as frequently as possible, but at least once per step
// interval. Reports whether a step was made.
func (d *Driver) PollAtConstantSpeed(device Device, clock SystemClock) (bool, error) {
	// Don't do anything unless we actually have a step interval.
	if d.stepInterval == 0 {
		return false, nil
	}

	now := clock.Elapsed()
	if now-d.lastStepTime < d.stepInterval {
		return false, nil
	}

	// A step is due. Nothing is committed until the device accepts
	// the step; a failed step must not change any internal state.
	newPosition := d.currentPosition - 1
	kind := TraceStepBackward
	if d.DistanceToGo() > 0 {
		newPosition = d.currentPosition + 1
		kind = TraceStepForward
	}

	ctx := StepContext{Position: newPosition, StepTime: now}
	if err := device.Step(ctx); err != nil {
		return false, err
	}

	d.currentPosition = newPosition
	d.lastStepTime = now // Caution: does not account for time spent in Step
	if d.trace != nil {
		d.trace.Record(TraceEvent{When: now, Position: newPosition, Kind: kind})
	}

	return true, nil
}
