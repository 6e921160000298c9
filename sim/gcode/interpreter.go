package gcode

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-gl/mathgl/mgl64"
)

// ErrUnsupported marks commands the interpreter has no handler for.
// Run reports them and carries on rather than aborting the program.
var ErrUnsupported = errors.New("gcode: unsupported command")

// Controller is the slice of a machine the interpreter drives.
// sim.Machine satisfies it.
type Controller interface {
	// MoveTo queues a move to a Cartesian target in mm at feed
	// mm/s, zero meaning the controller's own default.
	MoveTo(target mgl64.Vec3, feed float64) error

	// Home drives every axis onto its endstop.
	Home(ctx context.Context) error

	// SetPosition declares the machine to be at target without
	// moving.
	SetPosition(target mgl64.Vec3) error

	// Run plays queued moves until the controller is idle.
	Run(ctx context.Context) error

	// Position reports where the machine actually is, in mm.
	Position() mgl64.Vec3
}

var axisLetters = [3]byte{'X', 'Y', 'Z'}

// Interpreter executes parsed commands against a Controller. It
// understands G0/G1 moves with feed rates, G28 homing, G90/G91
// positioning modes, G92 position declaration, M114 position reports
// and M400 motion sync.
type Interpreter struct {
	// Output receives M114 reports and notes about skipped
	// commands. Defaults to io.Discard.
	Output io.Writer

	ctrl     Controller
	absolute bool
	feed     float64

	// pos tracks where the program has routed the machine so far,
	// which runs ahead of the physical position while moves are
	// still queued.
	pos mgl64.Vec3
}

// NewInterpreter builds an interpreter in absolute mode, synced to the
// controller's current position.
func NewInterpreter(ctrl Controller) *Interpreter {
	return &Interpreter{
		Output:   io.Discard,
		ctrl:     ctrl,
		absolute: true,
		pos:      ctrl.Position(),
	}
}

// Execute runs a single parsed command.
func (in *Interpreter) Execute(ctx context.Context, cmd *Command) error {
	switch cmd.Letter {
	case 'G':
		switch cmd.Number {
		case 0, 1:
			return in.doMove(cmd)
		case 28:
			if err := in.ctrl.Home(ctx); err != nil {
				return err
			}
			in.pos = in.ctrl.Position()
			return nil
		case 90:
			in.absolute = true
			return nil
		case 91:
			in.absolute = false
			return nil
		case 92:
			return in.doSetPosition(ctx, cmd)
		}
	case 'M':
		switch cmd.Number {
		case 114:
			pos := in.ctrl.Position()
			fmt.Fprintf(in.Output, "X:%.3f Y:%.3f Z:%.3f\n", pos.X(), pos.Y(), pos.Z())
			return nil
		case 400:
			return in.ctrl.Run(ctx)
		}
	}
	return fmt.Errorf("%w %s", ErrUnsupported, cmd)
}

// doMove handles G0 and G1. An F word updates the feed rate, in
// mm/min as G-code measures it, and sticks for later moves; axis
// words move the machine.
func (in *Interpreter) doMove(cmd *Command) error {
	if f, ok := cmd.Param('F'); ok {
		if f <= 0 {
			return fmt.Errorf("gcode: F must be positive, got %g", f)
		}
		in.feed = f / 60
	}

	target := in.pos
	seen := false
	for i, letter := range axisLetters {
		v, ok := cmd.Param(letter)
		if !ok {
			continue
		}
		if in.absolute {
			target[i] = v
		} else {
			target[i] = in.pos[i] + v
		}
		seen = true
	}
	if !seen {
		return nil
	}

	if err := in.ctrl.MoveTo(target, in.feed); err != nil {
		return err
	}
	in.pos = target
	return nil
}

// doSetPosition handles G92. The axes named keep their commanded
// value, everything else stays put. Queued motion is drained first so
// the declaration lands on a standing machine.
func (in *Interpreter) doSetPosition(ctx context.Context, cmd *Command) error {
	if len(cmd.Params) == 0 {
		return nil
	}
	if err := in.ctrl.Run(ctx); err != nil {
		return err
	}

	target := in.pos
	for i, letter := range axisLetters {
		if v, ok := cmd.Param(letter); ok {
			target[i] = v
		}
	}
	if err := in.ctrl.SetPosition(target); err != nil {
		return err
	}
	in.pos = target
	return nil
}

// Run feeds a whole program through the interpreter, one line at a
// time, and waits for the queued motion to finish. Unsupported
// commands are reported to Output and skipped; anything else that
// fails aborts the program with its line number.
func (in *Interpreter) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		cmd, err := ParseLine(scanner.Text())
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if cmd == nil {
			continue
		}
		if err := in.Execute(ctx, cmd); err != nil {
			if errors.Is(err, ErrUnsupported) {
				fmt.Fprintf(in.Output, "line %d: %v\n", line, err)
				continue
			}
			return fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return in.ctrl.Run(ctx)
}
