package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

// tickingClock advances itself one second per read, letting tests poll
// in a tight loop without managing time by hand.
func tickingClock() SystemClock {
	var reads int64
	return ClockFunc(func() time.Duration {
		reads++
		return time.Duration(reads-1) * time.Second
	})
}

func TestComputeNewSpeedWhenAlreadyAtTarget(t *testing.T) {
	d := NewDriver()

	d.computeNewSpeed()

	if d.Speed() != 0 {
		t.Errorf("Speed() = %v, want 0", d.Speed())
	}
	if d.stepInterval != 0 {
		t.Errorf("stepInterval = %v, want 0", d.stepInterval)
	}
	if d.stepCounter != 0 {
		t.Errorf("stepCounter = %d, want 0", d.stepCounter)
	}
}

func TestDontStepWhenAlreadyAtTarget(t *testing.T) {
	d := NewDriver()
	clock := tickingClock()
	forward, backward := 0, 0
	dev := NewFuncDevice(
		func() error { forward++; return nil },
		func() error { backward++; return nil },
	)

	for i := 0; i < 100; i++ {
		stepped, err := d.Poll(dev, clock)
		if err != nil {
			t.Fatalf("poll %d failed: %v", i, err)
		}
		if stepped {
			t.Fatalf("poll %d stepped while at the target", i)
		}
	}

	if forward != 0 || backward != 0 {
		t.Errorf("device stepped %d forward, %d backward, want none", forward, backward)
	}
	if d.CurrentPosition() != 0 {
		t.Errorf("position = %d, want 0", d.CurrentPosition())
	}
}

func TestAcceleratedMoveRunsToTarget(t *testing.T) {
	d := NewDriver()
	ring := &TraceRing{}
	d.SetTraceRing(ring)
	d.SetMaxSpeed(100)
	clock := tickingClock()
	forward, backward := 0, 0
	dev := NewFuncDevice(
		func() error { forward++; return nil },
		func() error { backward++; return nil },
	)

	d.MoveTo(20)
	if !d.IsRunning() {
		t.Fatal("driver not running after MoveTo")
	}

	polls := 0
	for d.IsRunning() {
		polls++
		if polls > 1000 {
			t.Fatal("driver never reached the target")
		}
		if _, err := d.Poll(dev, clock); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	if d.CurrentPosition() != 20 {
		t.Errorf("position = %d, want 20", d.CurrentPosition())
	}
	if forward != 20 || backward != 0 {
		t.Errorf("device stepped %d forward, %d backward, want 20 and 0", forward, backward)
	}
	if d.Speed() != 0 {
		t.Errorf("Speed() = %v after stopping, want 0", d.Speed())
	}
	if d.DistanceToGo() != 0 {
		t.Errorf("DistanceToGo() = %d, want 0", d.DistanceToGo())
	}
	if polls > 25 {
		t.Errorf("took %d polls for a 20 step move at 1 poll/s", polls)
	}

	// One retarget, twenty steps, one stop.
	events := ring.Events()
	if len(events) != 22 {
		t.Fatalf("trace recorded %d events, want 22", len(events))
	}
	if events[0].Kind != TraceRetarget || events[0].Position != 20 {
		t.Errorf("first event = %+v, want retarget to 20", events[0])
	}
	for i := 1; i <= 20; i++ {
		if events[i].Kind != TraceStepForward || events[i].Position != int64(i) {
			t.Errorf("event %d = %+v, want forward step to %d", i, events[i], i)
		}
	}
	if last := events[21]; last.Kind != TraceStop || last.Position != 20 {
		t.Errorf("last event = %+v, want stop at 20", last)
	}
}

func TestBackwardMoveRunsToTarget(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	clock := tickingClock()
	forward, backward := 0, 0
	dev := NewFuncDevice(
		func() error { forward++; return nil },
		func() error { backward++; return nil },
	)

	d.MoveTo(-7)
	if d.Speed() >= 0 {
		t.Errorf("Speed() = %v for a backward move, want negative", d.Speed())
	}

	for polls := 0; d.IsRunning(); polls++ {
		if polls > 1000 {
			t.Fatal("driver never reached the target")
		}
		if _, err := d.Poll(dev, clock); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	if d.CurrentPosition() != -7 {
		t.Errorf("position = %d, want -7", d.CurrentPosition())
	}
	if forward != 0 || backward != 7 {
		t.Errorf("device stepped %d forward, %d backward, want 0 and 7", forward, backward)
	}
}

func TestConstantSpeedCadence(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(10)
	d.MoveTo(3)
	d.SetSpeed(2) // one step every 500ms

	clock := NewSimulatedClock()
	var positions []int64
	dev := DeviceFunc(func(ctx StepContext) error {
		positions = append(positions, ctx.Position)
		return nil
	})

	schedule := []struct {
		advance  time.Duration
		wantStep bool
	}{
		{0, false},
		{250 * time.Millisecond, false},
		{250 * time.Millisecond, true}, // t=500ms
		{100 * time.Millisecond, false},
		{400 * time.Millisecond, true}, // t=1s
		{500 * time.Millisecond, true}, // t=1.5s
	}

	for i, s := range schedule {
		clock.Advance(s.advance)
		stepped, err := d.PollAtConstantSpeed(dev, clock)
		if err != nil {
			t.Fatalf("poll %d failed: %v", i, err)
		}
		if stepped != s.wantStep {
			t.Errorf("poll %d at t=%v: stepped = %v, want %v",
				i, clock.Elapsed(), stepped, s.wantStep)
		}
	}

	want := []int64{1, 2, 3}
	if len(positions) != len(want) {
		t.Fatalf("stepped to %v, want %v", positions, want)
	}
	for i := range want {
		if positions[i] != want[i] {
			t.Fatalf("stepped to %v, want %v", positions, want)
		}
	}
	if d.DistanceToGo() != 0 {
		t.Errorf("DistanceToGo() = %d, want 0", d.DistanceToGo())
	}
}

func TestSetSpeedClamping(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(5)

	d.SetSpeed(12)
	if got := d.Speed(); got != 5 {
		t.Errorf("Speed() = %v after SetSpeed(12), want 5", got)
	}

	d.SetSpeed(-99)
	if got := d.Speed(); got != -5 {
		t.Errorf("Speed() = %v after SetSpeed(-99), want -5", got)
	}

	d.SetSpeed(0)
	if got := d.Speed(); got != 0 {
		t.Errorf("Speed() = %v after SetSpeed(0), want 0", got)
	}

	// A zero speed must freeze the motor even if time keeps passing.
	d.MoveTo(100)
	d.SetSpeed(0)
	clock := NewSimulatedClock()
	clock.Advance(time.Hour)
	stepped, err := d.PollAtConstantSpeed(NopDevice{}, clock)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if stepped {
		t.Error("driver stepped at speed 0")
	}
}

func TestSetSpeedRejectsNonFinite(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(5)
	d.MoveTo(10)

	d.SetSpeed(math.NaN())
	if !math.IsNaN(d.Speed()) {
		t.Errorf("Speed() = %v after SetSpeed(NaN)", d.Speed())
	}

	clock := NewSimulatedClock()
	clock.Advance(time.Hour)
	if stepped, _ := d.PollAtConstantSpeed(NopDevice{}, clock); stepped {
		t.Error("driver stepped with a NaN speed")
	}

	// Infinity clamps to the max speed before the finite check.
	d.SetSpeed(math.Inf(1))
	if got := d.Speed(); got != 5 {
		t.Errorf("Speed() = %v after SetSpeed(+Inf), want 5", got)
	}
}

func TestFailedStepLeavesDriverUnchanged(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	d.MoveTo(5)
	d.SetSpeed(10)

	boom := errors.New("stall")
	fail := true
	var positions []int64
	dev := DeviceFunc(func(ctx StepContext) error {
		if fail {
			return boom
		}
		positions = append(positions, ctx.Position)
		return nil
	})

	clock := NewSimulatedClock()
	clock.Advance(time.Second)

	stepped, err := d.Poll(dev, clock)
	if err != boom {
		t.Fatalf("Poll() error = %v, want %v", err, boom)
	}
	if stepped {
		t.Error("Poll() reported a step that the device rejected")
	}
	if d.CurrentPosition() != 0 {
		t.Errorf("position = %d after failed step, want 0", d.CurrentPosition())
	}

	// The same step stays due and is retried on the next poll.
	fail = false
	stepped, err = d.Poll(dev, clock)
	if err != nil || !stepped {
		t.Fatalf("retry Poll() = %v, %v, want step", stepped, err)
	}
	if d.CurrentPosition() != 1 {
		t.Errorf("position = %d after retry, want 1", d.CurrentPosition())
	}
	if len(positions) != 1 || positions[0] != 1 {
		t.Errorf("device saw positions %v, want [1]", positions)
	}
}

func TestStopPlansDeceleration(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(50)
	d.MoveTo(1000)
	clock := tickingClock()

	for i := 0; i < 30; i++ {
		if _, err := d.Poll(NopDevice{}, clock); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}
	if !d.IsRunning() {
		t.Fatal("driver stopped before Stop was called")
	}

	d.Stop()
	if d.TargetPosition() >= 1000 {
		t.Errorf("Stop() left target at %d", d.TargetPosition())
	}

	for polls := 0; d.IsRunning(); polls++ {
		if polls > 1000 {
			t.Fatal("driver never came to rest after Stop")
		}
		if _, err := d.Poll(NopDevice{}, clock); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	if d.CurrentPosition() != d.TargetPosition() {
		t.Errorf("stopped at %d with target %d", d.CurrentPosition(), d.TargetPosition())
	}
	if d.CurrentPosition() >= 1000 || d.CurrentPosition() <= 0 {
		t.Errorf("stopped at %d, want somewhere between the old position and 1000",
			d.CurrentPosition())
	}
	if d.Speed() != 0 {
		t.Errorf("Speed() = %v after stopping, want 0", d.Speed())
	}
}

func TestSetCurrentPosition(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	d.MoveTo(40)
	clock := tickingClock()
	for i := 0; i < 5; i++ {
		if _, err := d.Poll(NopDevice{}, clock); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	d.SetCurrentPosition(7)

	if got := d.CurrentPosition(); got != 7 {
		t.Errorf("CurrentPosition() = %d, want 7", got)
	}
	if got := d.TargetPosition(); got != 7 {
		t.Errorf("TargetPosition() = %d, want 7", got)
	}
	if d.Speed() != 0 {
		t.Errorf("Speed() = %v, want 0", d.Speed())
	}
	if d.IsRunning() {
		t.Error("driver still running after SetCurrentPosition")
	}
}

func TestParameterGuards(t *testing.T) {
	d := NewDriver()

	d.SetMaxSpeed(-3)
	if got := d.MaxSpeed(); got != 1 {
		t.Errorf("MaxSpeed() = %v after SetMaxSpeed(-3), want 1", got)
	}
	d.SetMaxSpeed(0)
	if got := d.MaxSpeed(); got != 1 {
		t.Errorf("MaxSpeed() = %v after SetMaxSpeed(0), want 1", got)
	}
	d.SetMaxSpeed(80)
	if got := d.MaxSpeed(); got != 80 {
		t.Errorf("MaxSpeed() = %v, want 80", got)
	}

	d.SetAcceleration(0)
	if got := d.Acceleration(); got != 1 {
		t.Errorf("Acceleration() = %v after SetAcceleration(0), want 1", got)
	}
	d.SetAcceleration(-4)
	if got := d.Acceleration(); got != 4 {
		t.Errorf("Acceleration() = %v after SetAcceleration(-4), want 4", got)
	}
}

func TestMoveIsRelative(t *testing.T) {
	d := NewDriver()

	d.MoveTo(5)
	if got := d.TargetPosition(); got != 5 {
		t.Errorf("TargetPosition() = %d, want 5", got)
	}

	// Relative to the current position, not the target.
	d.Move(-2)
	if got := d.TargetPosition(); got != -2 {
		t.Errorf("TargetPosition() = %d after Move(-2) from 0, want -2", got)
	}
	if got := d.DistanceToGo(); got != -2 {
		t.Errorf("DistanceToGo() = %d, want -2", got)
	}
}

func TestChangingAccelerationMidMove(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	d.MoveTo(30)
	clock := tickingClock()

	for i := 0; i < 5; i++ {
		if _, err := d.Poll(NopDevice{}, clock); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	d.SetAcceleration(4)
	if got := d.Acceleration(); got != 4 {
		t.Fatalf("Acceleration() = %v, want 4", got)
	}

	for polls := 0; d.IsRunning(); polls++ {
		if polls > 1000 {
			t.Fatal("driver never reached the target")
		}
		if _, err := d.Poll(NopDevice{}, clock); err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	if d.CurrentPosition() != 30 {
		t.Errorf("position = %d, want 30", d.CurrentPosition())
	}
}

func TestZeroValueDriverIsInert(t *testing.T) {
	var d Driver
	clock := NewSimulatedClock()
	clock.Advance(time.Hour)

	stepped, err := d.PollAtConstantSpeed(NopDevice{}, clock)
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if stepped {
		t.Error("zero value driver stepped")
	}
}
