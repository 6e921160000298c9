// Package remote drives a motion controller over the wire protocol,
// letting firmware steppers stand in for in-memory devices.
package remote

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Masterminds/semver"

	"github.com/Michael-F-Bryan/accel-stepper/core"
	"github.com/Michael-F-Bryan/accel-stepper/host/serial"
	"github.com/Michael-F-Bryan/accel-stepper/protocol"
)

// VersionConstraint is the firmware revision range this package knows
// how to drive. Controllers outside it are refused before any motion
// command goes out.
const VersionConstraint = "~0.1.0"

// ErrVersionRejected is returned when the controller reports a
// firmware version outside VersionConstraint.
var ErrVersionRejected = errors.New("remote: unsupported firmware version")

// Identity is what a controller reports during the connect handshake.
type Identity struct {
	Version string
	Name    string
}

// Device is one remote stepper behind a protocol connection. It
// implements core.Device, so a Driver can pump it like any in-memory
// device; every committed step becomes a step command on the wire.
//
// Like the rest of the motion core it expects a single caller.
type Device struct {
	conn     *protocol.Conn
	identity Identity
	pingSeq  int32
}

// Dial opens the configured serial port and connects to the controller
// behind it.
func Dial(cfg *serial.Config) (*Device, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}

	dev, err := Connect(port)
	if err != nil {
		port.Close()
		return nil, err
	}
	return dev, nil
}

// Connect runs the identify handshake over an already-open port and
// refuses firmware outside VersionConstraint. The port is owned by the
// returned Device and is closed with it.
func Connect(port io.ReadWriteCloser) (*Device, error) {
	dev := &Device{conn: protocol.NewConn(port)}
	if err := dev.identify(); err != nil {
		dev.conn.Close()
		return nil, err
	}
	return dev, nil
}

func (d *Device) identify() error {
	if err := d.conn.SendCommand(protocol.CmdIdentify, nil); err != nil {
		return fmt.Errorf("remote: identify: %w", err)
	}

	resp, err := d.conn.ReceiveResponse(protocol.DefaultTimeout)
	if err != nil {
		return fmt.Errorf("remote: identify: %w", err)
	}

	cursor := resp.Payload
	cmd, err := protocol.DecodeUint32(&cursor)
	if err != nil || uint16(cmd) != protocol.RespIdentify {
		return fmt.Errorf("remote: unexpected identify response 0x%02x", cmd)
	}
	version, err := protocol.DecodeString(&cursor)
	if err != nil {
		return fmt.Errorf("remote: bad identity payload: %w", err)
	}
	name, err := protocol.DecodeString(&cursor)
	if err != nil {
		return fmt.Errorf("remote: bad identity payload: %w", err)
	}
	d.identity = Identity{Version: version, Name: name}

	return checkVersion(version)
}

func checkVersion(version string) error {
	if version == "dev" {
		// Development builds skip the gate.
		return nil
	}

	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("remote: firmware version %q: %w", version, err)
	}
	constraint, err := semver.NewConstraint(VersionConstraint)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: firmware reports %s, need %s",
			ErrVersionRejected, version, VersionConstraint)
	}
	return nil
}

// Identity returns what the controller reported when connecting.
func (d *Device) Identity() Identity { return d.identity }

// Step sends one step command carrying the position after the step and
// the clock reading. The controller acknowledges before this returns.
// The clock reading wraps like a 32-bit microsecond timer.
func (d *Device) Step(ctx core.StepContext) error {
	if ctx.Position > math.MaxInt32 || ctx.Position < math.MinInt32 {
		return fmt.Errorf("remote: position %d overflows the wire format", ctx.Position)
	}

	return d.conn.SendCommand(protocol.CmdStep, func(o protocol.OutputBuffer) {
		protocol.EncodeInt32(o, int32(ctx.Position))
		protocol.EncodeUint32(o, uint32(ctx.StepTime/time.Microsecond))
	})
}

// Ping round-trips a token through the controller and verifies the
// echo.
func (d *Device) Ping() error {
	d.pingSeq++
	token := d.pingSeq

	err := d.conn.SendCommand(protocol.CmdPing, func(o protocol.OutputBuffer) {
		protocol.EncodeInt32(o, token)
	})
	if err != nil {
		return err
	}

	resp, err := d.conn.ReceiveResponse(protocol.DefaultTimeout)
	if err != nil {
		return fmt.Errorf("remote: ping: %w", err)
	}

	cursor := resp.Payload
	cmd, err := protocol.DecodeUint32(&cursor)
	if err != nil || uint16(cmd) != protocol.RespPong {
		return fmt.Errorf("remote: unexpected ping response 0x%02x", cmd)
	}
	echo, err := protocol.DecodeInt32(&cursor)
	if err != nil {
		return fmt.Errorf("remote: bad pong payload: %w", err)
	}
	if echo != token {
		return fmt.Errorf("remote: pong echoed %d, sent %d", echo, token)
	}
	return nil
}

// Position asks the controller where it believes the axis is.
func (d *Device) Position() (int64, error) {
	if err := d.conn.SendCommand(protocol.CmdGetPosition, nil); err != nil {
		return 0, err
	}

	resp, err := d.conn.ReceiveResponse(protocol.DefaultTimeout)
	if err != nil {
		return 0, fmt.Errorf("remote: position: %w", err)
	}

	cursor := resp.Payload
	cmd, err := protocol.DecodeUint32(&cursor)
	if err != nil || uint16(cmd) != protocol.RespPosition {
		return 0, fmt.Errorf("remote: unexpected position response 0x%02x", cmd)
	}
	pos, err := protocol.DecodeInt32(&cursor)
	if err != nil {
		return 0, fmt.Errorf("remote: bad position payload: %w", err)
	}
	return int64(pos), nil
}

// SetPinMode configures a controller pin.
func (d *Device) SetPinMode(pin uint8, mode core.PinMode) error {
	return d.conn.SendCommand(protocol.CmdPinMode, func(o protocol.OutputBuffer) {
		protocol.EncodeUint32(o, uint32(pin))
		protocol.EncodeUint32(o, uint32(mode))
	})
}

// WritePin sets a controller pin level.
func (d *Device) WritePin(pin uint8, level core.Level) error {
	return d.conn.SendCommand(protocol.CmdDigitalWrite, func(o protocol.OutputBuffer) {
		protocol.EncodeUint32(o, uint32(pin))
		protocol.EncodeUint32(o, uint32(level))
	})
}

// Delay asks the controller to busy-wait, e.g. for a driver chip's
// settle time.
func (d *Device) Delay(us uint32) error {
	return d.conn.SendCommand(protocol.CmdDelay, func(o protocol.OutputBuffer) {
		protocol.EncodeUint32(o, us)
	})
}

// Close tears down the connection and the port beneath it.
func (d *Device) Close() error {
	return d.conn.Close()
}
