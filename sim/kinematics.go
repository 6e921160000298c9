package sim

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/Michael-F-Bryan/accel-stepper/core"
)

// Motor pairs a motor name with the axis settings that drive it.
type Motor struct {
	Name   string
	Config AxisConfig
}

// Kinematics translates between Cartesian space, where targets and
// limits live, and motor space, where the step counters live.
type Kinematics interface {
	// AxisNames lists the Cartesian axes in Vec3 order.
	AxisNames() []string

	// Motors lists the physical motors in the order Steps and
	// Position use.
	Motors() []Motor

	// Steps converts a Cartesian target in mm to per motor step
	// targets, rejecting targets outside the configured limits.
	Steps(pos mgl64.Vec3) ([]int64, error)

	// Position converts motor step counters back to Cartesian mm.
	Position(steps []int64) mgl64.Vec3
}

// NewKinematics builds the kinematics named by the config.
func NewKinematics(cfg *MachineConfig) (Kinematics, error) {
	switch cfg.Kinematics {
	case "cartesian":
		return NewCartesian(cfg)
	case "corexy":
		return NewCoreXY(cfg)
	default:
		return nil, fmt.Errorf("sim: unsupported kinematics %q", cfg.Kinematics)
	}
}

var cartesianAxes = []string{"x", "y", "z"}

func requireAxes(cfg *MachineConfig) ([]AxisConfig, error) {
	axes := make([]AxisConfig, len(cartesianAxes))
	for i, name := range cartesianAxes {
		ac, ok := cfg.Axes[name]
		if !ok {
			return nil, fmt.Errorf("sim: %s kinematics needs an %q axis", cfg.Kinematics, name)
		}
		axes[i] = ac
	}
	return axes, nil
}

func checkLimits(axes []AxisConfig, pos mgl64.Vec3) error {
	for i, name := range cartesianAxes {
		if pos[i] < axes[i].MinMM || pos[i] > axes[i].MaxMM {
			return fmt.Errorf("sim: %s=%.3f outside range [%g, %g]",
				name, pos[i], axes[i].MinMM, axes[i].MaxMM)
		}
	}
	return nil
}

// Cartesian drives one motor per axis.
type Cartesian struct {
	axes  []AxisConfig
	scale []core.Axis
}

// NewCartesian builds Cartesian kinematics from a config with x, y and
// z axes. Any further axes in the config are ignored.
func NewCartesian(cfg *MachineConfig) (*Cartesian, error) {
	axes, err := requireAxes(cfg)
	if err != nil {
		return nil, err
	}
	k := &Cartesian{axes: axes}
	for _, ac := range axes {
		k.scale = append(k.scale, core.NewAxis(ac.StepsPerMM))
	}
	return k, nil
}

func (k *Cartesian) AxisNames() []string { return cartesianAxes }

func (k *Cartesian) Motors() []Motor {
	motors := make([]Motor, len(cartesianAxes))
	for i, name := range cartesianAxes {
		motors[i] = Motor{Name: name, Config: k.axes[i]}
	}
	return motors
}

func (k *Cartesian) Steps(pos mgl64.Vec3) ([]int64, error) {
	if err := checkLimits(k.axes, pos); err != nil {
		return nil, err
	}
	steps := make([]int64, len(k.scale))
	for i, scale := range k.scale {
		steps[i] = scale.Steps(pos[i])
	}
	return steps, nil
}

func (k *Cartesian) Position(steps []int64) mgl64.Vec3 {
	var pos mgl64.Vec3
	for i, scale := range k.scale {
		pos[i] = scale.Units(steps[i])
	}
	return pos
}

// CoreXY drives x and y with a pair of crossed belts: motor a carries
// x+y and motor b carries x-y, while z keeps its own motor. Both belt
// motors take their settings from the x axis, so give x and y matching
// steps_per_mm.
type CoreXY struct {
	axes []AxisConfig
	belt core.Axis
	z    core.Axis
}

// NewCoreXY builds CoreXY kinematics from a config with x, y and z
// axes.
func NewCoreXY(cfg *MachineConfig) (*CoreXY, error) {
	axes, err := requireAxes(cfg)
	if err != nil {
		return nil, err
	}
	if axes[0].StepsPerMM != axes[1].StepsPerMM {
		return nil, fmt.Errorf("sim: corexy needs matching steps_per_mm on x and y, got %g and %g",
			axes[0].StepsPerMM, axes[1].StepsPerMM)
	}
	return &CoreXY{
		axes: axes,
		belt: core.NewAxis(axes[0].StepsPerMM),
		z:    core.NewAxis(axes[2].StepsPerMM),
	}, nil
}

func (k *CoreXY) AxisNames() []string { return cartesianAxes }

func (k *CoreXY) Motors() []Motor {
	return []Motor{
		{Name: "a", Config: k.axes[0]},
		{Name: "b", Config: k.axes[0]},
		{Name: "z", Config: k.axes[2]},
	}
}

func (k *CoreXY) Steps(pos mgl64.Vec3) ([]int64, error) {
	if err := checkLimits(k.axes, pos); err != nil {
		return nil, err
	}
	return []int64{
		k.belt.Steps(pos.X() + pos.Y()),
		k.belt.Steps(pos.X() - pos.Y()),
		k.z.Steps(pos.Z()),
	}, nil
}

func (k *CoreXY) Position(steps []int64) mgl64.Vec3 {
	a := k.belt.Units(steps[0])
	b := k.belt.Units(steps[1])
	return mgl64.Vec3{
		(a + b) / 2,
		(a - b) / 2,
		k.z.Units(steps[2]),
	}
}
