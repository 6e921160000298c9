// Command accel-sim is an interactive shell around a simulated motion
// platform: queue moves, home, run G-code programs and teach named
// points, all against wall clock time. Point it at a real controller
// with -port and the x axis is mirrored onto the hardware as it moves.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"
	"github.com/caarlos0/env/v6"
	"github.com/go-gl/mathgl/mgl64"

	"github.com/Michael-F-Bryan/accel-stepper/core"
	"github.com/Michael-F-Bryan/accel-stepper/host/remote"
	"github.com/Michael-F-Bryan/accel-stepper/host/serial"
	"github.com/Michael-F-Bryan/accel-stepper/sim"
	"github.com/Michael-F-Bryan/accel-stepper/sim/gcode"
)

type envConfig struct {
	Config   string `env:"ACCEL_SIM_CONFIG"`
	PointsDB string `env:"ACCEL_SIM_POINTS_DB" envDefault:"points.db"`
	Port     string `env:"ACCEL_SIM_PORT"`
}

var (
	configPath = flag.String("config", "", "Machine description YAML (defaults to a small Cartesian machine)")
	pointsPath = flag.String("points", "", "Teach point database file")
	portName   = flag.String("port", "", "Serial port of a controller to mirror the x axis onto")
)

func main() {
	flag.Parse()

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		fatal(err)
	}
	if *configPath != "" {
		cfg.Config = *configPath
	}
	if *pointsPath != "" {
		cfg.PointsDB = *pointsPath
	}
	if *portName != "" {
		cfg.Port = *portName
	}

	machineCfg := sim.DefaultConfig()
	if cfg.Config != "" {
		var err error
		machineCfg, err = sim.LoadConfigFile(cfg.Config)
		if err != nil {
			fatal(err)
		}
	}

	machine, err := sim.NewMachine(machineCfg, core.NewOperatingSystemClock())
	if err != nil {
		fatal(err)
	}

	points, err := sim.OpenPoints(cfg.PointsDB)
	if err != nil {
		fatal(err)
	}
	defer points.Close()

	shell := ishell.New()
	shell.Printf("%s - type 'help' for commands\n", machine.Name())

	if cfg.Port != "" {
		serialCfg := serial.DefaultConfig()
		serialCfg.Device = cfg.Port
		dev, err := remote.Dial(serialCfg)
		if err != nil {
			fatal(err)
		}
		defer dev.Close()
		if err := machine.BindDevice("x", dev); err != nil {
			fatal(err)
		}
		ident := dev.Identity()
		shell.Printf("x axis mirrored to %s (firmware %s) on %s\n", ident.Name, ident.Version, cfg.Port)
	}

	addCommands(shell, machine, points)
	shell.Run()
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func addCommands(shell *ishell.Shell, machine *sim.Machine, points *sim.PointStore) {
	ctx := context.Background()

	shell.AddCmd(&ishell.Cmd{
		Name: "move",
		Help: "move <x> <y> <z> [feed mm/s]",
		Func: func(c *ishell.Context) {
			if len(c.Args) < 3 {
				c.Println("usage: move <x> <y> <z> [feed mm/s]")
				return
			}
			var target mgl64.Vec3
			for i := 0; i < 3; i++ {
				v, err := strconv.ParseFloat(c.Args[i], 64)
				if err != nil {
					c.Printf("bad coordinate %q\n", c.Args[i])
					return
				}
				target[i] = v
			}
			feed := 0.0
			if len(c.Args) > 3 {
				v, err := strconv.ParseFloat(c.Args[3], 64)
				if err != nil {
					c.Printf("bad feed %q\n", c.Args[3])
					return
				}
				feed = v
			}
			if err := runTo(ctx, machine, target, feed); err != nil {
				c.Printf("move failed: %v\n", err)
			} else {
				printPosition(c, machine)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "home",
		Help: "home all axes",
		Func: func(c *ishell.Context) {
			if err := machine.Home(ctx); err != nil {
				c.Printf("homing failed: %v\n", err)
				return
			}
			printPosition(c, machine)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "pos",
		Help: "report the current position",
		Func: func(c *ishell.Context) {
			printPosition(c, machine)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "speed",
		Help: "speed [mm/s] - show or set the feed rate",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Printf("feed rate: %g mm/s\n", machine.FeedRate())
				return
			}
			v, err := strconv.ParseFloat(c.Args[0], 64)
			if err == nil {
				err = machine.SetFeedRate(v)
			}
			if err != nil {
				c.Printf("bad feed rate: %v\n", err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "accel",
		Help: "accel [mm/s^2] - show or set the acceleration",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Printf("acceleration: %g mm/s^2\n", machine.Acceleration())
				return
			}
			v, err := strconv.ParseFloat(c.Args[0], 64)
			if err == nil {
				err = machine.SetAcceleration(v)
			}
			if err != nil {
				c.Printf("bad acceleration: %v\n", err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "save",
		Help: "save <name> - teach the current position as a named point",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: save <name>")
				return
			}
			if err := points.Save(c.Args[0], machine.Position()); err != nil {
				c.Printf("save failed: %v\n", err)
				return
			}
			c.Printf("taught %q\n", c.Args[0])
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:      "goto",
		Help:      "goto <name> - move to a taught point",
		Completer: pointCompleter(points),
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Println("usage: goto <name>")
				return
			}
			target, err := points.Get(c.Args[0])
			if err != nil {
				c.Printf("%v\n", err)
				return
			}
			if err := runTo(ctx, machine, target, 0); err != nil {
				c.Printf("move failed: %v\n", err)
				return
			}
			printPosition(c, machine)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "points",
		Help: "list the taught points",
		Func: func(c *ishell.Context) {
			all, err := points.All()
			if err != nil {
				c.Printf("%v\n", err)
				return
			}
			if len(all) == 0 {
				c.Println("no points taught yet")
				return
			}
			for _, p := range all {
				c.Printf("%-16s X:%.3f Y:%.3f Z:%.3f\n", p.Name, p.X, p.Y, p.Z)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "gcode",
		Help: "gcode <file> | gcode <line> - run a G-code program",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Println("usage: gcode <file> or gcode G1 X10 F600")
				return
			}

			in := gcode.NewInterpreter(machine)
			in.Output = os.Stdout

			if len(c.Args) == 1 {
				if f, err := os.Open(c.Args[0]); err == nil {
					defer f.Close()
					if err := in.Run(ctx, f); err != nil {
						c.Printf("program failed: %v\n", err)
					}
					return
				}
			}
			line := strings.Join(c.Args, " ")
			if err := in.Run(ctx, strings.NewReader(line)); err != nil {
				c.Printf("program failed: %v\n", err)
			}
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "trace",
		Help: "dump the recent step trace",
		Func: func(c *ishell.Context) {
			lines := machine.DumpTrace()
			if len(lines) == 0 {
				c.Println("no steps recorded yet")
				return
			}
			for _, line := range lines {
				c.Println(line)
			}
		},
	})
}

// runTo queues one move and plays it to completion.
func runTo(ctx context.Context, machine *sim.Machine, target mgl64.Vec3, feed float64) error {
	if err := machine.MoveTo(target, feed); err != nil {
		return err
	}
	return machine.Run(ctx)
}

func printPosition(c *ishell.Context, machine *sim.Machine) {
	pos := machine.Position()
	homed := ""
	if !machine.Homed() {
		homed = " (unhomed)"
	}
	c.Printf("X:%.3f Y:%.3f Z:%.3f%s\n", pos.X(), pos.Y(), pos.Z(), homed)
}

func pointCompleter(points *sim.PointStore) func(args []string) []string {
	return func(args []string) []string {
		all, err := points.All()
		if err != nil {
			return nil
		}
		names := make([]string, len(all))
		for i, p := range all {
			names[i] = p.Name
		}
		return names
	}
}
