package sim

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// AxisConfig describes one axis of travel. All distances are in
// millimetres, speeds in mm/s and accelerations in mm/s².
type AxisConfig struct {
	StepsPerMM  float64 `yaml:"steps_per_mm"`
	MaxSpeed    float64 `yaml:"max_speed"`
	MaxAccel    float64 `yaml:"max_accel"`
	HomingSpeed float64 `yaml:"homing_speed"`
	MinMM       float64 `yaml:"min"`
	MaxMM       float64 `yaml:"max"`
}

// yamlAxis carries the raw document values so UnmarshalYAML can fill
// defaults without recursing into itself.
type yamlAxis struct {
	StepsPerMM  float64 `yaml:"steps_per_mm"`
	MaxSpeed    float64 `yaml:"max_speed"`
	MaxAccel    float64 `yaml:"max_accel"`
	HomingSpeed float64 `yaml:"homing_speed"`
	MinMM       float64 `yaml:"min"`
	MaxMM       float64 `yaml:"max"`
}

func (a *AxisConfig) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var ya yamlAxis
	if err := unmarshal(&ya); err != nil {
		return err
	}
	if ya.StepsPerMM == 0 {
		ya.StepsPerMM = 80
	}
	if ya.MaxSpeed == 0 {
		ya.MaxSpeed = 300
	}
	if ya.MaxAccel == 0 {
		ya.MaxAccel = 1000
	}
	if ya.HomingSpeed == 0 {
		ya.HomingSpeed = 5
	}
	if ya.MinMM == 0 && ya.MaxMM == 0 {
		ya.MaxMM = 200
	}

	if ya.StepsPerMM < 0 {
		return fmt.Errorf("sim: steps_per_mm must be positive, got %g", ya.StepsPerMM)
	}
	if ya.MaxSpeed < 0 || ya.MaxAccel < 0 || ya.HomingSpeed < 0 {
		return fmt.Errorf("sim: axis speeds must be positive")
	}
	if ya.MaxMM <= ya.MinMM {
		return fmt.Errorf("sim: axis range [%g, %g] is empty", ya.MinMM, ya.MaxMM)
	}

	*a = AxisConfig(ya)
	return nil
}

// MachineConfig is the root of a machine description file.
type MachineConfig struct {
	Name       string                `yaml:"name"`
	Kinematics string                `yaml:"kinematics"`
	Axes       map[string]AxisConfig `yaml:"axes"`

	// DefaultSpeed is the feed rate used for moves until a caller
	// (or a G-code F word) picks another, in mm/s.
	DefaultSpeed float64 `yaml:"default_speed"`

	// DefaultAccel is the ramp used for uncoordinated single axis
	// moves, in mm/s².
	DefaultAccel float64 `yaml:"default_accel"`
}

// LoadConfig parses a YAML machine description and fills in defaults.
func LoadConfig(data []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("sim: parsing machine config: %w", err)
	}
	if err := applyDefaults(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigFile reads and parses a machine description file.
func LoadConfigFile(path string) (*MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sim: reading machine config: %w", err)
	}
	return LoadConfig(data)
}

func applyDefaults(cfg *MachineConfig) error {
	if cfg.Name == "" {
		cfg.Name = "simulator"
	}
	if cfg.Kinematics == "" {
		cfg.Kinematics = "cartesian"
	}
	switch cfg.Kinematics {
	case "cartesian", "corexy":
	default:
		return fmt.Errorf("sim: unsupported kinematics %q", cfg.Kinematics)
	}
	if len(cfg.Axes) == 0 {
		return fmt.Errorf("sim: config declares no axes")
	}
	if cfg.DefaultSpeed == 0 {
		cfg.DefaultSpeed = 50
	}
	if cfg.DefaultAccel == 0 {
		cfg.DefaultAccel = 500
	}
	return nil
}

// DefaultConfig describes a small three axis Cartesian machine, handy
// for demos and tests that don't care about exact geometry.
func DefaultConfig() *MachineConfig {
	return &MachineConfig{
		Name:       "simulator",
		Kinematics: "cartesian",
		Axes: map[string]AxisConfig{
			"x": {
				StepsPerMM:  80,
				MaxSpeed:    300,
				MaxAccel:    3000,
				HomingSpeed: 50,
				MinMM:       0,
				MaxMM:       220,
			},
			"y": {
				StepsPerMM:  80,
				MaxSpeed:    300,
				MaxAccel:    3000,
				HomingSpeed: 50,
				MinMM:       0,
				MaxMM:       220,
			},
			"z": {
				StepsPerMM:  400,
				MaxSpeed:    10,
				MaxAccel:    100,
				HomingSpeed: 5,
				MinMM:       0,
				MaxMM:       250,
			},
		},
		DefaultSpeed: 50,
		DefaultAccel: 500,
	}
}
