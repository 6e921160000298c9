// Package sim wires the motion core into a virtual multi axis machine:
// a kinematics model maps Cartesian targets in millimetres onto step
// counters, simulated step/dir drivers record every pin edge, and a
// move queue plays G-code style motion against any clock.
//
// A Machine is not safe for concurrent use. Drive it from one
// goroutine, the way the REPL and the G-code interpreter do.
package sim

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Michael-F-Bryan/accel-stepper/core"
)

// move is one queued motion segment.
type move struct {
	target mgl64.Vec3
	feed   float64
}

// plan is the motion segment currently being played.
type plan struct {
	single     bool
	motor      int
	restoreMax float64
}

// Machine simulates a small motion platform. Construct one with
// NewMachine, queue targets with MoveTo and play them with Run.
type Machine struct {
	cfg   *MachineConfig
	kin   Kinematics
	clock core.SystemClock

	platform *core.RecorderPlatform
	drivers  []*core.Driver
	devices  []core.Device
	multi    *core.MultiDriver
	trace    *core.TraceRing

	// homeSteps holds each motor's step counter at its endstop, the
	// machine's minimum corner.
	homeSteps []int64

	feed  float64
	accel float64
	homed bool

	queue  []move
	active *plan

	pollEvery time.Duration
}

// NewMachine builds a machine from its config with all motors parked
// on their endstops. The clock decides how simulated time flows: use
// core.NewOperatingSystemClock for wall time or a core.SimulatedClock
// advanced by hand.
func NewMachine(cfg *MachineConfig, clock core.SystemClock) (*Machine, error) {
	kin, err := NewKinematics(cfg)
	if err != nil {
		return nil, err
	}

	m := &Machine{
		cfg:       cfg,
		kin:       kin,
		clock:     clock,
		platform:  &core.RecorderPlatform{},
		trace:     &core.TraceRing{},
		feed:      cfg.DefaultSpeed,
		pollEvery: 100 * time.Microsecond,
	}

	minCorner := m.minCorner()
	m.homeSteps, err = kin.Steps(minCorner)
	if err != nil {
		return nil, err
	}

	for i, motor := range kin.Motors() {
		d := core.NewDriver()
		d.SetMaxSpeed(motor.Config.MaxSpeed * motor.Config.StepsPerMM)
		d.SetTraceRing(m.trace)
		d.SetCurrentPosition(m.homeSteps[i])
		m.drivers = append(m.drivers, d)

		pin := uint8(2 * i)
		m.devices = append(m.devices, core.NewStepAndDirection(m.platform, pin, pin+1))
	}
	m.multi = core.NewMultiDriver(m.drivers...)

	if err := m.SetAcceleration(cfg.DefaultAccel); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Machine) minCorner() mgl64.Vec3 {
	var corner mgl64.Vec3
	for i, name := range m.kin.AxisNames() {
		corner[i] = m.cfg.Axes[name].MinMM
	}
	return corner
}

// Name returns the config's machine name.
func (m *Machine) Name() string { return m.cfg.Name }

// AxisNames lists the Cartesian axes in Vec3 order.
func (m *Machine) AxisNames() []string { return m.kin.AxisNames() }

// Position reports where the motors actually are, in mm. Queued moves
// that have not run yet are not included.
func (m *Machine) Position() mgl64.Vec3 {
	steps := make([]int64, len(m.drivers))
	for i, d := range m.drivers {
		steps[i] = d.CurrentPosition()
	}
	return m.kin.Position(steps)
}

// Homed reports whether Home has completed since the machine was
// built.
func (m *Machine) Homed() bool { return m.homed }

// FeedRate returns the machine's fallback feed rate in mm/s.
func (m *Machine) FeedRate() float64 { return m.feed }

// SetFeedRate sets the feed rate used by moves that don't carry their
// own, in mm/s. Zero lets every axis run at its configured maximum.
func (m *Machine) SetFeedRate(mmPerSec float64) error {
	if mmPerSec < 0 {
		return fmt.Errorf("sim: feed rate must not be negative, got %g", mmPerSec)
	}
	m.feed = mmPerSec
	return nil
}

// Acceleration returns the ramp applied to single axis moves, in
// mm/s².
func (m *Machine) Acceleration() float64 { return m.accel }

// SetAcceleration sets the ramp for single axis moves in mm/s², capped
// per motor at the axis max_accel.
func (m *Machine) SetAcceleration(mmPerSec2 float64) error {
	if mmPerSec2 <= 0 {
		return fmt.Errorf("sim: acceleration must be positive, got %g", mmPerSec2)
	}
	for i, motor := range m.kin.Motors() {
		a := core.Clamp(mmPerSec2, 0, motor.Config.MaxAccel)
		m.drivers[i].SetAcceleration(a * motor.Config.StepsPerMM)
	}
	m.accel = mmPerSec2
	return nil
}

// MoveTo queues a move to a Cartesian target in mm. feed is the vector
// speed in mm/s; zero uses the machine's feed rate. Targets outside
// the configured limits are rejected here, before anything moves.
func (m *Machine) MoveTo(target mgl64.Vec3, feed float64) error {
	if feed < 0 {
		return fmt.Errorf("sim: feed rate must not be negative, got %g", feed)
	}
	if _, err := m.kin.Steps(target); err != nil {
		return err
	}
	m.queue = append(m.queue, move{target: target, feed: feed})
	return nil
}

// SetPosition declares the machine to be at target without moving,
// the G92 treatment. It refuses to retag a machine in motion.
func (m *Machine) SetPosition(target mgl64.Vec3) error {
	if m.Busy() {
		return fmt.Errorf("sim: cannot set position while moving")
	}
	steps, err := m.kin.Steps(target)
	if err != nil {
		return err
	}
	for i, d := range m.drivers {
		d.SetCurrentPosition(steps[i])
	}
	return nil
}

// BindDevice swaps the named motor's simulated step/dir device for
// another, typically a remote.Device mirroring the axis onto real
// hardware. Bind before any motion starts.
func (m *Machine) BindDevice(motor string, dev core.Device) error {
	for i, mc := range m.kin.Motors() {
		if mc.Name == motor {
			m.devices[i] = dev
			return nil
		}
	}
	return fmt.Errorf("sim: no motor named %q", motor)
}

// Busy reports whether any motion is queued or in flight.
func (m *Machine) Busy() bool {
	return m.active != nil || len(m.queue) > 0 || m.multi.IsRunning()
}

// Stop abandons the active move and empties the queue, halting every
// motor where it stands.
func (m *Machine) Stop() {
	m.finish()
	m.queue = nil
	m.multi.Stop()
}

// SetPollInterval sets how long Run and Home sleep between polls.
// The default 100µs keeps a wall clock machine from spinning a core;
// tests driving a SimulatedClock want zero.
func (m *Machine) SetPollInterval(d time.Duration) { m.pollEvery = d }

// DumpTrace renders the recent step trace, newest last.
func (m *Machine) DumpTrace() []string { return m.trace.Dump() }

// Run plays queued moves until the machine is idle or the context is
// cancelled. Motion timing follows the machine's clock, so with a wall
// clock a 100mm move at 50mm/s really takes two seconds.
func (m *Machine) Run(ctx context.Context) error {
	for {
		if m.active == nil {
			if len(m.queue) == 0 {
				return nil
			}
			mv := m.queue[0]
			m.queue = m.queue[1:]
			if err := m.start(mv); err != nil {
				m.Stop()
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			m.Stop()
			return ctx.Err()
		default:
		}

		if err := m.pump(); err != nil {
			m.Stop()
			return err
		}
		if !m.running() {
			m.finish()
			continue
		}
		m.idle()
	}
}

// start arms the drivers for one segment. A segment that moves a
// single motor rides that driver's acceleration ramp; anything
// coordinated runs at constant per motor speeds chosen so all motors
// arrive together.
func (m *Machine) start(mv move) error {
	targets, err := m.kin.Steps(mv.target)
	if err != nil {
		return err
	}

	feed := mv.feed
	if feed == 0 {
		feed = m.feed
	}

	deltas := make([]int64, len(m.drivers))
	moving := -1
	count := 0
	for i, d := range m.drivers {
		deltas[i] = targets[i] - d.CurrentPosition()
		if deltas[i] != 0 {
			moving = i
			count++
		}
	}
	if count == 0 {
		return nil
	}

	if count == 1 {
		d := m.drivers[moving]
		p := &plan{single: true, motor: moving, restoreMax: d.MaxSpeed()}
		if feed > 0 {
			spmm := m.kin.Motors()[moving].Config.StepsPerMM
			d.SetMaxSpeed(core.Clamp(feed*spmm, 1, p.restoreMax))
		}
		d.MoveTo(targets[moving])
		m.active = p
		return nil
	}

	// Pace the group by its slowest axis, then slow everything
	// further if the vector feed asks for it.
	var longest time.Duration
	for i, d := range m.drivers {
		dist := deltas[i]
		if dist < 0 {
			dist = -dist
		}
		if t := core.DurationFromSeconds(float64(dist) / d.MaxSpeed()); t > longest {
			longest = t
		}
	}
	if feed > 0 {
		dist := mv.target.Sub(m.Position()).Len()
		if t := core.DurationFromSeconds(dist / feed); t > longest {
			longest = t
		}
	}

	secs := longest.Seconds()
	for i, d := range m.drivers {
		d.MoveTo(targets[i])
		d.SetSpeed(float64(deltas[i]) / secs)
	}
	m.active = &plan{}
	return nil
}

func (m *Machine) pump() error {
	if m.active.single {
		i := m.active.motor
		_, err := m.drivers[i].Poll(m.devices[i], m.clock)
		return err
	}
	return m.multi.Poll(m.devices, m.clock)
}

func (m *Machine) running() bool {
	if m.active == nil {
		return false
	}
	if m.active.single {
		return m.drivers[m.active.motor].IsRunning()
	}
	return m.multi.IsRunning()
}

func (m *Machine) finish() {
	if m.active != nil && m.active.single {
		m.drivers[m.active.motor].SetMaxSpeed(m.active.restoreMax)
	}
	m.active = nil
}

func (m *Machine) idle() {
	if m.pollEvery > 0 {
		time.Sleep(m.pollEvery)
	}
}

// Home drains any queued motion, then seeks every motor onto its
// virtual endstop at the axis homing speed, slowest motor last. The
// endstops sit at the machine's minimum corner, so a homed machine
// always reads the corner as its position.
func (m *Machine) Home(ctx context.Context) error {
	if err := m.Run(ctx); err != nil {
		return err
	}

	for i, motor := range m.kin.Motors() {
		d := m.drivers[i]
		min := m.homeSteps[i]
		endstop := core.EndstopFunc(func() (bool, error) {
			return d.CurrentPosition() <= min, nil
		})
		h := core.NewHomer(d, m.devices[i], endstop, core.HomeOptions{
			Speed: -motor.Config.HomingSpeed * motor.Config.StepsPerMM,
		})
		for {
			select {
			case <-ctx.Done():
				m.Stop()
				return ctx.Err()
			default:
			}
			done, err := h.Poll(m.clock)
			if err != nil {
				return fmt.Errorf("sim: homing %s: %w", motor.Name, err)
			}
			if done {
				break
			}
			m.idle()
		}
		d.SetCurrentPosition(min)
	}

	m.homed = true
	return nil
}
