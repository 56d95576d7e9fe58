// Package endeffector controls the roller on the end of the arm.
//
// The roller is driven at one of three preset duty cycles (in, out, off).
// Which direction intakes depends on the game piece: cones come in one way
// and cubes the other, so the "slurp" and "spit" buttons consult a
// Classifier.  Holding a cone needs a brief burst of current, so acquiring a
// cone raises the motor's current limit to the inrush limit for
// InrushDuration before dropping back to the steady limit.
package endeffector

import (
	"time"

	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/motor"
)

const (
	DefaultSteadyCurrentLimit = 1.0
	DefaultInrushCurrentLimit = 40.0

	// InrushDuration is how long an acquire keeps the inrush limit.
	InrushDuration = time.Second
	// LimitRampTime is passed to the motor with every current limit.
	LimitRampTime = time.Second

	PrefRollerInCmd  = "EndEffector/roller_in_cmd"
	PrefRollerOutCmd = "EndEffector/roller_out_cmd"
	PrefRollerOffCmd = "EndEffector/roller_off_cmd"

	// Number of telemetry values read round-robin, one per cycle.
	telemetryCount = 3
)

// Classifier reports which game piece the robot is handling.
type Classifier interface {
	IsCone() bool
}

// ModeSource reports whether the robot is running autonomously.
type ModeSource interface {
	IsAutonomous() bool
}

// Clock is a monotonic clock.
type Clock interface {
	Now() time.Time
}

// Button is an edge-latched operator input.
type Button interface {
	Pressed() bool
	Released() bool
}

// Preferences is the persistent store the roller presets live in.
type Preferences interface {
	ContainsKey(key string) bool
	GetDouble(key string, def float64) float64
	SetDouble(key string, value float64)
}

type preset int

const (
	presetOff preset = iota
	presetIn
	presetOut
)

type Buttons struct {
	RollerIn, RollerOut Button
	Slurp, Spit         Button
	Reset               Button
}

type Config struct {
	// Motor may be nil if the controller failed to open; the subsystem then
	// runs without it.
	Motor       motor.Interface
	Buttons     Buttons
	Classifier  Classifier
	Mode        ModeSource
	Clock       Clock
	Preferences Preferences
	Logger      logging.Logger
}

type EndEffector struct {
	name   string
	logger logging.Logger

	roller     motor.Interface
	buttons    Buttons
	classifier Classifier
	mode       ModeSource
	clock      Clock
	prefs      Preferences

	// Presets.
	rollerInCmd  float64
	rollerOutCmd float64
	rollerOffCmd float64

	// The command is kept as a preset so that reloading the presets changes
	// what is written straight away.
	rollerCmd preset

	// Sensors (from the motor).
	rollerDC   float64
	rollerCurr float64
	rollerVel  float64

	// Only one telemetry value is read per cycle to keep CAN traffic down.
	getterCount int

	currentLimit        float64
	initialCurrentLimit float64
	appliedLimit        float64

	reduceCurrent     bool
	reduceCurrentTime time.Time

	reportedMissingMotor bool
	writeFailing         bool
}

func New(name string, cfg Config) *EndEffector {
	e := &EndEffector{
		name:                name,
		logger:              cfg.Logger,
		roller:              cfg.Motor,
		buttons:             cfg.Buttons,
		classifier:          cfg.Classifier,
		mode:                cfg.Mode,
		clock:               cfg.Clock,
		prefs:               cfg.Preferences,
		currentLimit:        DefaultSteadyCurrentLimit,
		initialCurrentLimit: DefaultInrushCurrentLimit,
		appliedLimit:        DefaultSteadyCurrentLimit,
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.logger == nil {
		e.logger = logging.NewLogger(name)
	}
	return e
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (e *EndEffector) Name() string {
	return e.name
}

// InitPreferences writes the presets to the store if they aren't there yet.
func (e *EndEffector) InitPreferences() {
	if e.prefs == nil {
		return
	}
	if !e.prefs.ContainsKey(PrefRollerInCmd) {
		e.prefs.SetDouble(PrefRollerInCmd, e.rollerInCmd)
	}
	if !e.prefs.ContainsKey(PrefRollerOutCmd) {
		e.prefs.SetDouble(PrefRollerOutCmd, e.rollerOutCmd)
	}
	if !e.prefs.ContainsKey(PrefRollerOffCmd) {
		e.prefs.SetDouble(PrefRollerOffCmd, e.rollerOffCmd)
	}
}

// ReadPreferences loads the presets.  The store's defaults are the current
// values, so a missing or malformed entry leaves a preset unchanged.
func (e *EndEffector) ReadPreferences() {
	if e.prefs == nil {
		return
	}
	e.rollerInCmd = clampDuty(e.prefs.GetDouble(PrefRollerInCmd, e.rollerInCmd))
	e.rollerOutCmd = clampDuty(e.prefs.GetDouble(PrefRollerOutCmd, e.rollerOutCmd))
	e.rollerOffCmd = clampDuty(e.prefs.GetDouble(PrefRollerOffCmd, e.rollerOffCmd))
}

// RobotInit puts the roller in duty-cycle mode with the brake on and the
// steady current limit.
func (e *EndEffector) RobotInit() {
	if e.roller == nil {
		return
	}
	if err := e.roller.SetControlMode(motor.DutyCycle); err != nil {
		e.logger.Warnf("%s: failed to set roller control mode: %v", e.name, err)
	}
	if err := e.roller.SetBrakeMode(true); err != nil {
		e.logger.Warnf("%s: failed to set roller brake mode: %v", e.name, err)
	}
	e.setRollerCurrentLimit(e.currentLimit)
}

func (e *EndEffector) RobotPeriodic() {
	e.readSensors()

	if e.mode == nil || !e.mode.IsAutonomous() {
		e.handleOI()
	}

	if e.reduceCurrent && e.clock.Now().After(e.reduceCurrentTime) {
		e.reduceCurrent = false
		e.setRollerCurrentLimit(e.currentLimit)
	}

	e.writeEffectors()
}

func (e *EndEffector) AutonomousInit() {
	e.rollerCmd = presetOff
}

func (e *EndEffector) TeleopInit() {
	e.rollerCmd = presetOff
}

func (e *EndEffector) handleOI() {
	b := e.buttons
	if pressed(b.RollerIn) {
		e.RollerIn()
	}
	if released(b.RollerIn) {
		e.RollerOff()
	}

	if pressed(b.RollerOut) {
		e.RollerOut()
	}
	if released(b.RollerOut) {
		e.RollerOff()
	}

	// Smart buttons that are aware of the game piece.
	if pressed(b.Slurp) {
		e.SlurpPressed()
	}
	if released(b.Slurp) {
		e.SlurpReleased()
	}

	if pressed(b.Spit) {
		e.SpitPressed()
	}
	if released(b.Spit) {
		e.SpitReleased()
	}

	if pressed(b.Reset) {
		e.Reset()
	}
}

func pressed(b Button) bool {
	return b != nil && b.Pressed()
}

func released(b Button) bool {
	return b != nil && b.Released()
}

func (e *EndEffector) readSensors() {
	if e.roller == nil {
		return
	}
	switch e.getterCount {
	case 0:
		if v, err := e.roller.OutputCurrent(); err == nil {
			e.rollerCurr = v
		}
	case 1:
		if v, err := e.roller.OutputPercent(); err == nil {
			e.rollerDC = v
		}
	case 2:
		if v, err := e.roller.Speed(); err == nil {
			e.rollerVel = v
		}
	}
	e.getterCount = (e.getterCount + 1) % telemetryCount
}

func (e *EndEffector) writeEffectors() {
	if e.roller == nil {
		if !e.reportedMissingMotor {
			e.reportedMissingMotor = true
			e.logger.Infof("%s: roller motor missing, not driving it", e.name)
		}
		return
	}
	err := e.roller.Set(e.RollerCmd())
	if err != nil && !e.writeFailing {
		e.logger.Warnf("%s: failed to write roller command: %v", e.name, err)
	} else if err == nil && e.writeFailing {
		e.logger.Infof("%s: roller writes recovered", e.name)
	}
	e.writeFailing = err != nil
}

func (e *EndEffector) RollerIn() {
	e.rollerCmd = presetIn
}

func (e *EndEffector) RollerOut() {
	e.rollerCmd = presetOut
}

func (e *EndEffector) RollerOff() {
	e.rollerCmd = presetOff
}

// SlurpPressed starts acquiring a game piece.  Cones are pulled in with the
// inrush limit, which drops back to steady InrushDuration after the window
// opened; pressing again while the window is open does not extend it.  Cubes
// come in the other way at the unchanged limit.
func (e *EndEffector) SlurpPressed() {
	if e.isCone() {
		e.setRollerCurrentLimit(e.initialCurrentLimit)
		if !e.reduceCurrent {
			e.reduceCurrent = true
			e.reduceCurrentTime = e.clock.Now().Add(InrushDuration)
		}
		e.RollerIn()
	} else {
		e.RollerOut()
	}
}

func (e *EndEffector) SlurpReleased() {
	e.setRollerCurrentLimit(e.currentLimit)
	e.RollerOff()
}

// SpitPressed starts ejecting a game piece.  Cones are spat with the inrush
// limit, and unlike SlurpPressed the limit stays raised until SpitReleased.
func (e *EndEffector) SpitPressed() {
	if e.isCone() {
		e.setRollerCurrentLimit(e.initialCurrentLimit)
		e.RollerOut()
	} else {
		e.RollerIn()
	}
}

func (e *EndEffector) SpitReleased() {
	e.RollerOff()
	e.setRollerCurrentLimit(e.currentLimit)
}

func (e *EndEffector) Reset() {
	e.RollerOff()
}

func (e *EndEffector) isCone() bool {
	return e.classifier != nil && e.classifier.IsCone()
}

// RollerVelocity returns the last velocity read from the motor; it may be up
// to two cycles old.
func (e *EndEffector) RollerVelocity() float64 {
	return e.rollerVel
}

// InitCurrentLimits sets the steady and inrush limits used by later limit
// changes.  It does not touch the motor.
func (e *EndEffector) InitCurrentLimits(currentLimit, initialCurrentLimit float64) {
	e.currentLimit = currentLimit
	e.initialCurrentLimit = initialCurrentLimit
}

// setRollerCurrentLimit is a no-op on controllers that can't limit current.
func (e *EndEffector) setRollerCurrentLimit(limit float64) {
	e.appliedLimit = limit
	cl, ok := motor.LimiterOf(e.roller)
	if !ok {
		return
	}
	if err := cl.SetCurrentLimit(limit, limit, LimitRampTime); err != nil {
		e.logger.Warnf("%s: failed to set roller current limit to %vA: %v", e.name, limit, err)
	}
}

// RollerCmd returns the duty cycle of the selected preset.
func (e *EndEffector) RollerCmd() float64 {
	switch e.rollerCmd {
	case presetIn:
		return e.rollerInCmd
	case presetOut:
		return e.rollerOutCmd
	}
	return e.rollerOffCmd
}

func (e *EndEffector) RollerDutyCycle() float64 {
	return e.rollerDC
}

func (e *EndEffector) RollerCurrent() float64 {
	return e.rollerCurr
}

// CurrentLimit returns the limit most recently requested for the roller.
func (e *EndEffector) CurrentLimit() float64 {
	return e.appliedLimit
}

// InrushActive reports whether an acquire's inrush window is still open.
func (e *EndEffector) InrushActive() bool {
	return e.reduceCurrent
}

func clampDuty(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
