// Package config holds the robot's static configuration, read from yaml over
// built-in defaults.
package config

import (
	"io/ioutil"
	"os"
	"time"

	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/Auyushg/Robonauts-2023/pkg/endeffector"
	"github.com/Auyushg/Robonauts-2023/pkg/esc"
	"github.com/Auyushg/Robonauts-2023/pkg/ina219"
	"github.com/Auyushg/Robonauts-2023/pkg/joystick"
	"github.com/Auyushg/Robonauts-2023/pkg/mux"
	"github.com/Auyushg/Robonauts-2023/pkg/vesc"
)

const (
	DefaultPath      = "/cfg/robot.yaml"
	DefaultInUsePath = "/cfg/robot-in-use.yaml"
)

const (
	DriverVESC     = "vesc"
	DriverESC      = "esc"
	DriverViamFake = "viam-fake"
	DriverSim      = "sim"
	DriverNone     = "none"
)

type Robot struct {
	Period   time.Duration `yaml:"period"`
	Joystick string        `yaml:"joystick"`

	Preferences string `yaml:"preferences"`
	DataLogDir  string `yaml:"data_log_dir"`

	// InitScript runs once at start-up; AutonScript each time autonomous
	// starts.  Empty disables either.
	InitScript    string        `yaml:"init_script"`
	AutonScript   string        `yaml:"auton_script"`
	AutonDuration time.Duration `yaml:"auton_duration"`

	SoundDir     string `yaml:"sound_dir"`
	Framebuffer  string `yaml:"framebuffer"`
	DashboardTab string `yaml:"dashboard_tab"`

	Roller Roller `yaml:"roller"`

	// Buttons maps each logical button to the physical inputs that drive it
	// (see oi.Panel.MapInput).
	Buttons map[string][]string `yaml:"buttons"`
}

type Roller struct {
	Driver             string      `yaml:"driver"`
	SteadyCurrentLimit float64     `yaml:"steady_current_limit"`
	InrushCurrentLimit float64     `yaml:"inrush_current_limit"`
	MaxRPM             float64     `yaml:"max_rpm"`
	VESC               vesc.Config `yaml:"vesc"`
	ESC                esc.Config  `yaml:"esc"`
}

func Default() Robot {
	return Robot{
		Period:        20 * time.Millisecond,
		Joystick:      joystick.DefaultDevice,
		Preferences:   "/cfg/preferences.yaml",
		DataLogDir:    "/var/log/robot",
		InitScript:    "/cfg/RobotControl.lua",
		AutonDuration: 15 * time.Second,
		SoundDir:      "/sounds",
		Framebuffer:   "/dev/fb1",
		DashboardTab:  "EndEffector",
		Roller: Roller{
			Driver:             DriverVESC,
			SteadyCurrentLimit: endeffector.DefaultSteadyCurrentLimit,
			InrushCurrentLimit: endeffector.DefaultInrushCurrentLimit,
			MaxRPM:             6000,
			VESC: vesc.Config{
				Interface: "can0",
				ID:        21,
				PolePairs: 7,
			},
			ESC: esc.Config{
				I2CBus:     "/dev/i2c-1",
				MuxPort:    mux.NoPort,
				PWMPort:    0,
				INA219Addr: ina219.Addr1,
				ShuntOhms:  0.1,
				MaxCurrent: 3.2,
			},
		},
		Buttons: map[string][]string{
			"roller_in":    {"r1"},
			"roller_out":   {"l1"},
			"slurp":        {"r2"},
			"spit":         {"l2"},
			"reset":        {"share"},
			"cone":         {"triangle"},
			"cube":         {"square"},
			"toggle_piece": {"circle"},
			"mode":         {"options"},
			"tune_up":      {"dpad_up"},
			"tune_down":    {"dpad_down"},
			"tune_next":    {"dpad_right"},
			"tune_prev":    {"dpad_left"},
		},
	}
}

// PathFromEnv returns $ROBOT_CONFIG, or DefaultPath.
func PathFromEnv() string {
	if p := os.Getenv("ROBOT_CONFIG"); p != "" {
		return p
	}
	return DefaultPath
}

// Load reads the config at path over the defaults.  A missing file gives the
// defaults.  On any other error the defaults are returned with the error.
// Button entries in the file replace the default entry of the same name.
func Load(path string) (Robot, error) {
	cfg := Default()
	data, err := ioutil.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	} else if err != nil {
		return Default(), errors.Wrapf(err, "reading %s", path)
	}
	// Strict decoding rejects keys already present in a map, so buttons are
	// decoded into an empty map and the defaults filled in afterwards.
	defaults := cfg.Buttons
	cfg.Buttons = nil
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Default(), errors.Wrapf(err, "parsing %s", path)
	}
	if cfg.Buttons == nil {
		cfg.Buttons = map[string][]string{}
	}
	for name, inputs := range defaults {
		if _, ok := cfg.Buttons[name]; !ok {
			cfg.Buttons[name] = inputs
		}
	}
	if err := cfg.Validate(); err != nil {
		return Default(), errors.Wrapf(err, "invalid config %s", path)
	}
	return cfg, nil
}

func (r *Robot) Validate() error {
	switch r.Roller.Driver {
	case DriverVESC, DriverESC, DriverViamFake, DriverSim, DriverNone:
	default:
		return errors.Errorf("unknown roller driver %q", r.Roller.Driver)
	}
	if r.Period <= 0 {
		return errors.New("period must be positive")
	}
	if r.Roller.SteadyCurrentLimit <= 0 || r.Roller.InrushCurrentLimit <= 0 {
		return errors.New("current limits must be positive")
	}
	if r.Roller.SteadyCurrentLimit > r.Roller.InrushCurrentLimit {
		return errors.Errorf("steady current limit %vA is above the inrush limit %vA",
			r.Roller.SteadyCurrentLimit, r.Roller.InrushCurrentLimit)
	}
	if r.Roller.Driver == DriverVESC {
		return r.Roller.VESC.Validate()
	}
	return nil
}

// WriteInUse writes out the config actually being used.
func (r *Robot) WriteInUse(path string) error {
	data, err := yaml.Marshal(r)
	if err != nil {
		return errors.Wrap(err, "marshalling config")
	}
	return errors.Wrapf(ioutil.WriteFile(path, data, 0666), "writing %s", path)
}
