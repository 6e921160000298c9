package core

import (
	"errors"
	"testing"
	"time"
)

func TestHomerFindsEndstop(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	back := 0
	dev := NewFuncDevice(nil, func() error { back++; return nil })

	// The switch sits 25 steps below the starting position.
	endstop := EndstopFunc(func() (bool, error) {
		return d.CurrentPosition() <= -25, nil
	})

	h := NewHomer(d, dev, endstop, HomeOptions{Speed: -10, MaxTravel: 100})
	clock := NewSimulatedClock()

	done := false
	for i := 0; i < 500 && !done; i++ {
		clock.Advance(100 * time.Millisecond)
		var err error
		done, err = h.Poll(clock)
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	if !done {
		t.Fatal("homing never finished")
	}
	if back != 25 {
		t.Errorf("took %d steps to the switch, want 25", back)
	}
	if got := d.CurrentPosition(); got != 0 {
		t.Errorf("position = %d after homing, want 0", got)
	}
	if d.IsRunning() {
		t.Error("driver still running after homing")
	}

	// Once done, polling is a no-op.
	if again, err := h.Poll(clock); !again || err != nil {
		t.Errorf("Poll after done = %v, %v, want true, nil", again, err)
	}
	if back != 25 {
		t.Errorf("homer kept stepping after done: %d steps", back)
	}
}

func TestHomerTravelBudget(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	back := 0
	dev := NewFuncDevice(nil, func() error { back++; return nil })
	endstop := EndstopFunc(func() (bool, error) { return false, nil })

	h := NewHomer(d, dev, endstop, HomeOptions{Speed: -10, MaxTravel: 30})
	clock := NewSimulatedClock()

	var err error
	for i := 0; i < 500; i++ {
		clock.Advance(100 * time.Millisecond)
		if _, err = h.Poll(clock); err != nil {
			break
		}
	}

	if !errors.Is(err, ErrHomingTravel) {
		t.Fatalf("error = %v, want ErrHomingTravel", err)
	}
	if back != 30 {
		t.Errorf("took %d steps before giving up, want 30", back)
	}
	if got := d.CurrentPosition(); got != -30 {
		t.Errorf("position = %d, want -30", got)
	}
	if d.IsRunning() {
		t.Error("driver still running after a failed seek")
	}
}

func TestHomerAlreadyTriggered(t *testing.T) {
	d := NewDriver()
	steps := 0
	dev := DeviceFunc(func(StepContext) error { steps++; return nil })
	endstop := EndstopFunc(func() (bool, error) { return true, nil })

	h := NewHomer(d, dev, endstop, HomeOptions{})

	done, err := h.Poll(NewSimulatedClock())
	if err != nil {
		t.Fatalf("poll failed: %v", err)
	}
	if !done {
		t.Fatal("pressed switch did not home in place")
	}
	if steps != 0 {
		t.Errorf("took %d steps with the switch already pressed, want 0", steps)
	}
	if got := d.CurrentPosition(); got != 0 {
		t.Errorf("position = %d, want 0", got)
	}
}

func TestHomerDebounce(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	back := 0
	dev := NewFuncDevice(nil, func() error { back++; return nil })
	endstop := EndstopFunc(func() (bool, error) {
		return d.CurrentPosition() <= -25, nil
	})

	h := NewHomer(d, dev, endstop, HomeOptions{Speed: -10, MaxTravel: 100, Samples: 2})
	clock := NewSimulatedClock()

	done := false
	for i := 0; i < 500 && !done; i++ {
		clock.Advance(100 * time.Millisecond)
		var err error
		done, err = h.Poll(clock)
		if err != nil {
			t.Fatalf("poll failed: %v", err)
		}
	}

	if !done {
		t.Fatal("homing never finished")
	}
	// One extra step lands between the first and second triggered
	// sample.
	if back != 26 {
		t.Errorf("took %d steps, want 26", back)
	}
	if got := d.CurrentPosition(); got != 0 {
		t.Errorf("position = %d after homing, want 0", got)
	}
}

func TestHomerEndstopError(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	sensor := errors.New("sensor unplugged")
	polls := 0
	endstop := EndstopFunc(func() (bool, error) {
		polls++
		if polls > 2 {
			return false, sensor
		}
		return false, nil
	})

	h := NewHomer(d, NopDevice{}, endstop, HomeOptions{Speed: -10})
	clock := NewSimulatedClock()

	var err error
	for i := 0; i < 10 && err == nil; i++ {
		clock.Advance(100 * time.Millisecond)
		_, err = h.Poll(clock)
	}

	if err != sensor {
		t.Fatalf("error = %v, want %v", err, sensor)
	}
	if d.IsRunning() {
		t.Error("driver still running after an endstop fault")
	}
	if done, err := h.Poll(clock); !done || err != nil {
		t.Errorf("Poll after fault = %v, %v, want true, nil", done, err)
	}
}

func TestPinEndstop(t *testing.T) {
	var p RecorderPlatform
	e := &PinEndstop{Platform: &p, Pin: 3, TriggerLevel: High}

	if trig, err := e.Triggered(); err != nil || trig {
		t.Errorf("Triggered() = %v, %v on an untouched pin, want false", trig, err)
	}

	p.DigitalWrite(3, High)
	if trig, _ := e.Triggered(); !trig {
		t.Error("switch not seen after the pin went high")
	}

	p.DigitalWrite(3, Low)
	if trig, _ := e.Triggered(); trig {
		t.Error("switch still seen after the pin went low")
	}

	// Normally-closed switches trigger on Low, which is also what an
	// unwritten pin reads.
	nc := &PinEndstop{Platform: &p, Pin: 9, TriggerLevel: Low}
	if trig, _ := nc.Triggered(); !trig {
		t.Error("normally-closed switch should trigger on a low pin")
	}
}

func TestHomeBlocking(t *testing.T) {
	d := NewDriver()
	d.SetMaxSpeed(100)
	clock := tickingClock()
	endstop := EndstopFunc(func() (bool, error) {
		return d.CurrentPosition() <= -5, nil
	})

	err := Home(d, NopDevice{}, clock, endstop, HomeOptions{Speed: -10, MaxTravel: 50})
	if err != nil {
		t.Fatalf("Home failed: %v", err)
	}
	if got := d.CurrentPosition(); got != 0 {
		t.Errorf("position = %d after homing, want 0", got)
	}
}
