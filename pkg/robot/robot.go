// Package robot runs subsystems on a fixed-period control loop and tracks
// the robot's operating mode.
package robot

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
)

type Mode int

const (
	Disabled Mode = iota
	Autonomous
	Teleop
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Autonomous:
		return "autonomous"
	case Teleop:
		return "teleop"
	default:
		return "unknown"
	}
}

// Subsystem is a part of the robot that is run once per cycle.
type Subsystem interface {
	Name() string
	// RobotInit is called once, after all subsystems are registered.
	RobotInit()
	// RobotPeriodic is called once per cycle, in every mode.
	RobotPeriodic()
}

type DisabledIniter interface {
	DisabledInit()
}

type AutonomousIniter interface {
	AutonomousInit()
}

type TeleopIniter interface {
	TeleopInit()
}

// PreferencesUser is implemented by subsystems with persisted settings.
// InitPreferences runs once at start-up; ReadPreferences runs at start-up and
// on every mode change.
type PreferencesUser interface {
	InitPreferences()
	ReadPreferences()
}

const DefaultPeriod = 20 * time.Millisecond

type command struct {
	fn   func()
	done chan struct{}
}

type Robot struct {
	logger logging.Logger
	period time.Duration
	now    func() time.Time

	subsystems []Subsystem
	afterCycle []func()
	onMode     []func(Mode)

	lock        sync.Mutex
	mode        Mode
	pendingMode *Mode
	modeStart   time.Time
	running     bool
	// stopped is closed when the running loop exits.
	stopped chan struct{}
	cycles  uint64

	commands chan command
}

type Option func(*Robot)

// WithClock replaces the wall clock; now must be monotonic.
func WithClock(now func() time.Time) Option {
	return func(r *Robot) {
		r.now = now
	}
}

func WithPeriod(period time.Duration) Option {
	return func(r *Robot) {
		r.period = period
	}
}

func New(logger logging.Logger, opts ...Option) *Robot {
	r := &Robot{
		logger:   logger,
		period:   DefaultPeriod,
		now:      time.Now,
		commands: make(chan command, 16),
	}
	for _, o := range opts {
		o(r)
	}
	r.modeStart = r.now()
	return r
}

func (r *Robot) Register(s Subsystem) {
	r.logger.Infof("========================= Creating SubSystem [%s] =========================", s.Name())
	r.subsystems = append(r.subsystems, s)
}

// AfterCycle adds a function run at the end of every cycle, after all
// subsystems, on the control loop's goroutine.
func (r *Robot) AfterCycle(f func()) {
	r.afterCycle = append(r.afterCycle, f)
}

// OnModeChange adds a function run on the control loop's goroutine after the
// subsystems have handled a mode change.
func (r *Robot) OnModeChange(f func(Mode)) {
	r.onMode = append(r.onMode, f)
}

// Init runs the one-time initialisation of every subsystem.
func (r *Robot) Init() {
	for _, s := range r.subsystems {
		if pu, ok := s.(PreferencesUser); ok {
			pu.InitPreferences()
			pu.ReadPreferences()
		}
		s.RobotInit()
	}
}

// Now returns the robot's monotonic clock.
func (r *Robot) Now() time.Time {
	return r.now()
}

func (r *Robot) Mode() Mode {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.mode
}

func (r *Robot) IsAutonomous() bool {
	return r.Mode() == Autonomous
}

// PhaseElapsed returns the time since the current mode started.
func (r *Robot) PhaseElapsed() time.Duration {
	r.lock.Lock()
	start := r.modeStart
	r.lock.Unlock()
	return r.now().Sub(start)
}

// Cycles returns the number of completed cycles.
func (r *Robot) Cycles() uint64 {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.cycles
}

// RequestMode asks for a mode change.  It is applied at the start of the
// next cycle; requests made in between replace each other.
func (r *Robot) RequestMode(m Mode) {
	r.lock.Lock()
	r.pendingMode = &m
	r.lock.Unlock()
}

// Do runs fn on the control loop's goroutine at the start of the next cycle
// and waits for it to finish.  If the loop isn't running, fn runs inline.
func (r *Robot) Do(ctx context.Context, fn func()) error {
	r.lock.Lock()
	running, stopped := r.running, r.stopped
	r.lock.Unlock()
	if !running {
		fn()
		return nil
	}

	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case r.commands <- cmd:
	case <-stopped:
		r.runQueuedCommands()
		fn()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-stopped:
		// The loop may have drained the queue before cmd arrived.
		r.runQueuedCommands()
		<-cmd.done
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Loop runs cycles every period until ctx is done.
func (r *Robot) Loop(ctx context.Context) error {
	r.lock.Lock()
	if r.running {
		r.lock.Unlock()
		return errors.New("control loop already running")
	}
	r.running = true
	stopped := make(chan struct{})
	r.stopped = stopped
	r.lock.Unlock()

	defer func() {
		r.lock.Lock()
		r.running = false
		close(stopped)
		r.lock.Unlock()
		// Release anyone who queued a command as the loop stopped.
		r.runQueuedCommands()
	}()

	ticker := time.NewTicker(r.period)
	defer ticker.Stop()

	r.logger.Infof("Control loop started, period %v", r.period)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			r.Step()
			if overrun := time.Since(start); overrun > r.period {
				r.logger.Warnf("Loop overrun: cycle took %v", overrun)
			}
		}
	}
}

// Step runs one cycle: pending mode change, queued commands, subsystems,
// then the after-cycle hooks.
func (r *Robot) Step() {
	r.lock.Lock()
	pending := r.pendingMode
	r.pendingMode = nil
	r.lock.Unlock()
	if pending != nil {
		r.setMode(*pending)
	}

	r.runQueuedCommands()

	for _, s := range r.subsystems {
		s.RobotPeriodic()
	}
	for _, f := range r.afterCycle {
		f()
	}

	r.lock.Lock()
	r.cycles++
	r.lock.Unlock()
}

func (r *Robot) setMode(m Mode) {
	r.lock.Lock()
	old := r.mode
	r.mode = m
	r.modeStart = r.now()
	r.lock.Unlock()

	r.logger.Infof("Mode %v -> %v", old, m)
	for _, s := range r.subsystems {
		if pu, ok := s.(PreferencesUser); ok {
			pu.ReadPreferences()
		}
		switch m {
		case Disabled:
			if i, ok := s.(DisabledIniter); ok {
				i.DisabledInit()
			}
		case Autonomous:
			if i, ok := s.(AutonomousIniter); ok {
				i.AutonomousInit()
			}
		case Teleop:
			if i, ok := s.(TeleopIniter); ok {
				i.TeleopInit()
			}
		}
	}
	for _, f := range r.onMode {
		f(m)
	}
}

func (r *Robot) runQueuedCommands() {
	for {
		select {
		case cmd := <-r.commands:
			cmd.fn()
			close(cmd.done)
		default:
			return
		}
	}
}
