// Package serial opens the serial link to a motion controller.
package serial

import (
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// Port is a serial connection to a controller. Implementations besides
// the native one include in-memory fakes for tests.
type Port interface {
	io.ReadWriteCloser

	// Flush pushes any buffered bytes onto the wire.
	Flush() error
}

// Config describes how to open a port.
type Config struct {
	// Device is the port path, e.g. "/dev/ttyACM0" or "COM3".
	Device string

	// Baud is the line rate. USB CDC devices ignore it.
	Baud int

	// ReadTimeout bounds a single Read. Zero blocks forever.
	ReadTimeout time.Duration
}

// DefaultConfig returns the settings that suit a USB-connected
// controller; the caller fills in Device.
func DefaultConfig() *Config {
	return &Config{
		Baud:        115200,
		ReadTimeout: 100 * time.Millisecond,
	}
}

// nativePort wraps github.com/tarm/serial.
type nativePort struct {
	port *serial.Port
}

// Open opens the port named by cfg.
func Open(cfg *Config) (Port, error) {
	if cfg == nil || cfg.Device == "" {
		return nil, fmt.Errorf("serial: no device configured")
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", cfg.Device, err)
	}

	return &nativePort{port: port}, nil
}

func (p *nativePort) Read(b []byte) (int, error)  { return p.port.Read(b) }
func (p *nativePort) Write(b []byte) (int, error) { return p.port.Write(b) }

func (p *nativePort) Close() error {
	return p.port.Close()
}

// Flush is a no-op: writes go straight to the device.
func (p *nativePort) Flush() error { return nil }
