package core

import (
	"errors"
	"testing"
	"time"
)

func TestFuncDeviceDirection(t *testing.T) {
	forward, backward := 0, 0
	dev := NewFuncDevice(
		func() error { forward++; return nil },
		func() error { backward++; return nil },
	)

	positions := []int64{1, 2, 3, 2, 1, 0, -1, 0}
	wantForward, wantBackward := 4, 4

	for _, pos := range positions {
		if err := dev.Step(StepContext{Position: pos}); err != nil {
			t.Fatalf("Step(%d) failed: %v", pos, err)
		}
	}

	if forward != wantForward || backward != wantBackward {
		t.Errorf("got %d forward, %d backward, want %d and %d",
			forward, backward, wantForward, wantBackward)
	}
}

func TestFuncDeviceDoesNotAdvanceOnError(t *testing.T) {
	boom := errors.New("driver fault")
	fail := true
	forward := 0
	dev := NewFuncDevice(
		func() error {
			if fail {
				return boom
			}
			forward++
			return nil
		},
		nil,
	)

	if err := dev.Step(StepContext{Position: 1}); err != boom {
		t.Fatalf("Step() = %v, want %v", err, boom)
	}

	// The failed step must not move the device's notion of position,
	// so retrying the same step is still a forward step.
	fail = false
	if err := dev.Step(StepContext{Position: 1}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if forward != 1 {
		t.Errorf("forward = %d, want 1", forward)
	}
}

func TestFuncDeviceNilCallbacks(t *testing.T) {
	dev := NewFuncDevice(nil, nil)

	if err := dev.Step(StepContext{Position: 1}); err != nil {
		t.Errorf("forward step with nil callback failed: %v", err)
	}
	if err := dev.Step(StepContext{Position: 0}); err != nil {
		t.Errorf("backward step with nil callback failed: %v", err)
	}
}

func TestDeviceFunc(t *testing.T) {
	var got StepContext
	dev := DeviceFunc(func(ctx StepContext) error {
		got = ctx
		return nil
	})

	want := StepContext{Position: 7, StepTime: 3 * time.Second}
	if err := dev.Step(want); err != nil {
		t.Fatalf("Step() failed: %v", err)
	}
	if got != want {
		t.Errorf("handler saw %+v, want %+v", got, want)
	}
}

func TestNopDevice(t *testing.T) {
	var dev NopDevice
	if err := dev.Step(StepContext{Position: 123}); err != nil {
		t.Errorf("NopDevice.Step() = %v, want nil", err)
	}
}
