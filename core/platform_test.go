package core

import (
	"testing"
	"time"
)

func TestLevelConstants(t *testing.T) {
	if Low != 0 {
		t.Errorf("Low = %d, want 0", Low)
	}
	if High != 1 {
		t.Errorf("High = %d, want 1", High)
	}
	if Output != 0 {
		t.Errorf("Output = %d, want 0", Output)
	}
}

func TestUnavailablePlatformPanics(t *testing.T) {
	var p UnavailablePlatform

	tests := []struct {
		name string
		call func()
	}{
		{"PinMode", func() { p.PinMode(13, Output) }},
		{"PinMode zero pin", func() { p.PinMode(0, Output) }},
		{"DigitalWrite high", func() { p.DigitalWrite(13, High) }},
		{"DigitalWrite low", func() { p.DigitalWrite(0, Low) }},
		{"DelayMicroseconds", func() { p.DelayMicroseconds(100) }},
		{"DelayMicroseconds zero", func() { p.DelayMicroseconds(0) }},
	}

	for _, test := range tests {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("%s returned normally, want panic", test.name)
				}
			}()
			test.call()
		}()
	}
}

func TestRecorderPlatform(t *testing.T) {
	var p RecorderPlatform

	p.PinMode(4, Output)
	if mode, ok := p.Mode(4); !ok || mode != Output {
		t.Errorf("Mode(4) = %v, %v after PinMode", mode, ok)
	}
	if _, ok := p.Mode(5); ok {
		t.Error("Mode(5) reported a pin that was never configured")
	}

	p.DigitalWrite(4, High)
	if got := p.Level(4); got != High {
		t.Errorf("Level(4) = %v, want High", got)
	}
	p.DigitalWrite(4, Low)
	if got := p.Level(4); got != Low {
		t.Errorf("Level(4) = %v, want Low", got)
	}
	if got := p.Level(9); got != Low {
		t.Errorf("Level(9) = %v for untouched pin, want Low", got)
	}
	if got := p.Writes(); got != 2 {
		t.Errorf("Writes() = %d, want 2", got)
	}

	p.DelayMicroseconds(250)
	p.DelayMicroseconds(750)
	if got := p.Delayed(); got != time.Millisecond {
		t.Errorf("Delayed() = %v, want 1ms", got)
	}
}
