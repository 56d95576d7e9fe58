// Package bot assembles the robot: the control loop, the end effector and
// its supporting subsystems, the dashboard, data log and Lua bindings.
// Hardware is chosen by the caller and passed in.
package bot

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/config"
	"github.com/Auyushg/Robonauts-2023/pkg/dashboard"
	"github.com/Auyushg/Robonauts-2023/pkg/endeffector"
	"github.com/Auyushg/Robonauts-2023/pkg/gamepiece"
	"github.com/Auyushg/Robonauts-2023/pkg/motor"
	"github.com/Auyushg/Robonauts-2023/pkg/oi"
	"github.com/Auyushg/Robonauts-2023/pkg/prefs"
	"github.com/Auyushg/Robonauts-2023/pkg/robot"
	"github.com/Auyushg/Robonauts-2023/pkg/scripting"
	"github.com/Auyushg/Robonauts-2023/pkg/tunable"
)

// ScriptNamespace is the Lua global the subsystems are registered under.
const ScriptNamespace = "robonauts"

// Player plays a named sound cue.
type Player interface {
	Play(name string)
}

// DataLog records registered variables once per cycle.
type DataLog interface {
	AddLogVar(name string, get func() float64)
	Write(now time.Time) error
}

// Preferences is the persistent store shared by the subsystems.
type Preferences interface {
	endeffector.Preferences
	tunable.Store
}

type Options struct {
	Config config.Robot
	// Motor is the roller; nil runs the end effector without one.
	Motor       motor.Interface
	Panel       *oi.Panel
	Preferences Preferences
	// Optional.
	Sound   Player
	DataLog DataLog
	Clock   func() time.Time
	Logger  logging.Logger
}

type Bot struct {
	Robot       *robot.Robot
	EndEffector *endeffector.EndEffector
	GamePiece   *gamepiece.Selector
	Tunables    *tunable.Tunables
	Board       *dashboard.Board
	Scripts     *scripting.Engine

	cfg    config.Robot
	logger logging.Logger
	sound  Player
	log    DataLog

	autonLock   sync.Mutex
	autonCtx    context.Context
	autonCancel context.CancelFunc
	autonDone   chan struct{}
}

func New(o Options) (*Bot, error) {
	cfg := o.Config
	logger := o.Logger
	if logger == nil {
		logger = logging.NewLogger("robot")
	}
	if o.Preferences == nil {
		o.Preferences = prefs.NewMemory(logger)
	}
	panel := o.Panel
	if panel == nil {
		panel = oi.NewPanel()
	}
	if err := panel.MapAll(cfg.Buttons); err != nil {
		return nil, errors.Wrap(err, "mapping buttons")
	}

	robotOpts := []robot.Option{robot.WithPeriod(cfg.Period)}
	if o.Clock != nil {
		robotOpts = append(robotOpts, robot.WithClock(o.Clock))
	}
	b := &Bot{
		Robot:    robot.New(logger, robotOpts...),
		Board:    dashboard.NewBoard(),
		cfg:      cfg,
		logger:   logger,
		sound:    o.Sound,
		log:      o.DataLog,
		autonCtx: context.Background(),
	}
	b.Scripts = scripting.New(logger.Sublogger("lua"), b.Robot.Do)

	b.GamePiece = gamepiece.New(logger.Sublogger("game_piece"),
		panel.Button("cone"), panel.Button("cube"), panel.Button("toggle_piece"))

	b.EndEffector = endeffector.New("EndEffector", endeffector.Config{
		Motor: o.Motor,
		Buttons: endeffector.Buttons{
			RollerIn:  panel.Button("roller_in"),
			RollerOut: panel.Button("roller_out"),
			Slurp:     panel.Button("slurp"),
			Spit:      panel.Button("spit"),
			Reset:     panel.Button("reset"),
		},
		Classifier:  b.GamePiece,
		Mode:        b.Robot,
		Clock:       b.Robot,
		Preferences: o.Preferences,
		Logger:      logger.Sublogger("end_effector"),
	})
	b.EndEffector.InitCurrentLimits(cfg.Roller.SteadyCurrentLimit, cfg.Roller.InrushCurrentLimit)

	b.Tunables = tunable.New(o.Preferences, logger.Sublogger("tunables"))
	b.Tunables.Create("roller_in", endeffector.PrefRollerInCmd, 0.05, -1, 1)
	b.Tunables.Create("roller_out", endeffector.PrefRollerOutCmd, 0.05, -1, 1)
	b.Tunables.Create("roller_off", endeffector.PrefRollerOffCmd, 0.05, -1, 1)
	tuner := tunable.NewTuner(b.Tunables, tunable.Buttons{
		Up:   panel.Button("tune_up"),
		Down: panel.Button("tune_down"),
		Next: panel.Button("tune_next"),
		Prev: panel.Button("tune_prev"),
	}, func() bool { return b.Robot.Mode() == robot.Teleop }, b.EndEffector.ReadPreferences)

	// Mode switching runs first so the other subsystems see the new mode on
	// the following cycle, as they would after a field transition.
	b.Robot.Register(&modeSwitcher{robot: b.Robot, button: panel.Button("mode")})
	b.Robot.Register(b.GamePiece)
	b.Robot.Register(b.EndEffector)
	b.Robot.Register(tuner)

	tab := b.Board.Tab(cfg.DashboardTab)
	tab.Add("Roller", b.EndEffector).WithSize(2, 4).WithPosition(0, 0)
	tab.Add("GamePiece", b.GamePiece).WithPosition(2, 0)
	b.Board.Tab("Tuning").Add("Presets", b.Tunables).WithSize(2, 4)

	b.Scripts.Register(ScriptNamespace, "end_effector", b.EndEffector.ScriptTable())
	b.Scripts.Register(ScriptNamespace, "game_piece", b.GamePiece.ScriptTable())

	if b.log != nil {
		b.EndEffector.AddLogVars(b.log)
		b.log.AddLogVar("current_limit", b.EndEffector.CurrentLimit)
		b.log.AddLogVar("mode", func() float64 { return float64(b.Robot.Mode()) })
	}

	b.Robot.AfterCycle(b.afterCycle)
	b.Robot.OnModeChange(b.onModeChange)
	return b, nil
}

// Run initialises the subsystems, runs the init script and then the control
// loop until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.autonLock.Lock()
	b.autonCtx = ctx
	b.autonLock.Unlock()

	b.Robot.Init()
	b.RunInitScript(ctx)
	err := b.Robot.Loop(ctx)
	b.stopAuton()
	return err
}

// RunInitScript runs the configured start-up script, if there is one.
func (b *Bot) RunInitScript(ctx context.Context) {
	path := b.cfg.InitScript
	if path == "" {
		return
	}
	if _, err := os.Stat(path); err != nil {
		b.logger.Infof("No init script at %s", path)
		return
	}
	b.logger.Infof("Running %s", path)
	if err := b.Scripts.RunFile(ctx, path); err != nil {
		b.logger.Warnf("Init script failed: %v", err)
	}
}

func (b *Bot) afterCycle() {
	if b.Robot.Mode() == robot.Autonomous && b.cfg.AutonDuration > 0 &&
		b.Robot.PhaseElapsed() >= b.cfg.AutonDuration {
		b.Robot.RequestMode(robot.Teleop)
	}
	b.Board.Publish()
	if b.log != nil {
		// Failures are reported by the log itself.
		_ = b.log.Write(b.Robot.Now())
	}
}

func (b *Bot) onModeChange(m robot.Mode) {
	if b.sound != nil {
		b.sound.Play(m.String() + ".wav")
	}
	b.stopAuton()
	if m == robot.Autonomous {
		b.startAuton()
	}
}

// startAuton runs the auton script on its own goroutine; its calls into the
// subsystems are queued onto the control loop.
func (b *Bot) startAuton() {
	path := b.cfg.AutonScript
	if path == "" {
		return
	}
	b.autonLock.Lock()
	defer b.autonLock.Unlock()
	ctx, cancel := context.WithCancel(b.autonCtx)
	done := make(chan struct{})
	b.autonCancel, b.autonDone = cancel, done
	go func() {
		defer close(done)
		b.logger.Infof("Auton: running %s", path)
		err := b.Scripts.RunFile(ctx, path)
		if err != nil && ctx.Err() == nil {
			b.logger.Warnf("Auton script failed: %v", err)
			return
		}
		b.logger.Info("Auton: script finished")
	}()
}

// stopAuton cancels the running auton script.  It doesn't wait: the script
// may be blocked queueing a call onto the loop that is calling us.
func (b *Bot) stopAuton() {
	b.autonLock.Lock()
	defer b.autonLock.Unlock()
	if b.autonCancel != nil {
		b.autonCancel()
		b.autonCancel = nil
	}
}

// AutonDone returns a channel closed when the most recent auton script
// exits, or nil if none has been started.
func (b *Bot) AutonDone() <-chan struct{} {
	b.autonLock.Lock()
	defer b.autonLock.Unlock()
	return b.autonDone
}

// modeSwitcher cycles Disabled -> Autonomous -> Teleop on the mode button.
type modeSwitcher struct {
	robot  *robot.Robot
	button interface{ Pressed() bool }
}

func (m *modeSwitcher) Name() string { return "ModeSwitcher" }

func (m *modeSwitcher) RobotInit() {}

func (m *modeSwitcher) RobotPeriodic() {
	if !m.button.Pressed() {
		return
	}
	next := robot.Disabled
	switch m.robot.Mode() {
	case robot.Disabled:
		next = robot.Autonomous
	case robot.Autonomous:
		next = robot.Teleop
	}
	m.robot.RequestMode(next)
}
