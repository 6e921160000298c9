package core

// StepAndDirection drives a controller with step and direction pins
// through a Platform, walking the classic two-wire full-step table:
// bit 0 of the position drives the step pin, bit 1 the direction pin.
type StepAndDirection struct {
	platform Platform
	stepPin  uint8
	dirPin   uint8
}

// NewStepAndDirection configures both pins as outputs and returns the
// device.
func NewStepAndDirection(p Platform, stepPin, dirPin uint8) *StepAndDirection {
	p.PinMode(stepPin, Output)
	p.PinMode(dirPin, Output)
	return &StepAndDirection{platform: p, stepPin: stepPin, dirPin: dirPin}
}

// Step updates both pins for the new position.
func (d *StepAndDirection) Step(ctx StepContext) error {
	switch ctx.Position & 0x03 {
	case 0:
		d.setOutputs(0b10)
	case 1:
		d.setOutputs(0b11)
	case 2:
		d.setOutputs(0b01)
	case 3:
		d.setOutputs(0b00)
	}
	return nil
}

func (d *StepAndDirection) setOutputs(mask uint8) {
	d.platform.DigitalWrite(d.stepPin, levelFor(mask&0b01))
	d.platform.DigitalWrite(d.dirPin, levelFor(mask&0b10))
}

// FourWire drives the four coils of a unipolar or dual H-bridge motor
// directly, using the standard full-step excitation sequence.
type FourWire struct {
	platform Platform
	pins     [4]uint8
}

// NewFourWire configures the four coil pins as outputs and returns the
// device.
func NewFourWire(p Platform, pin1, pin2, pin3, pin4 uint8) *FourWire {
	pins := [4]uint8{pin1, pin2, pin3, pin4}
	for _, pin := range pins {
		p.PinMode(pin, Output)
	}
	return &FourWire{platform: p, pins: pins}
}

// Step energizes the coil pair for the new position.
func (d *FourWire) Step(ctx StepContext) error {
	var mask uint8
	switch ctx.Position & 0x03 {
	case 0:
		mask = 0b0101
	case 1:
		mask = 0b0110
	case 2:
		mask = 0b1010
	case 3:
		mask = 0b1001
	}
	for i, pin := range d.pins {
		d.platform.DigitalWrite(pin, levelFor(mask&(1<<uint(i))))
	}
	return nil
}

func levelFor(mask uint8) Level {
	if mask != 0 {
		return High
	}
	return Low
}
