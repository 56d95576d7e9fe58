package motor

import (
	"math"
	"sync"
	"time"
)

const (
	SimFreeSpeedRPM   = 6000
	SimStallCurrent   = 100.0
	SimSpinUpConstant = 50 * time.Millisecond
)

// Sim is a first-order model of a roller on a brushless motor.  Velocity
// follows the commanded duty cycle with time constant SimSpinUpConstant;
// current is proportional to the gap between commanded and actual speed and
// is clamped to the active current limit.  A loaded roller (game piece
// jammed against the hard stop) cannot turn, so it draws stall current.
type Sim struct {
	lock sync.Mutex

	mode     ControlMode
	brake    bool
	duty     float64
	rpm      float64
	current  float64
	limit    float64
	loaded   bool
	setCalls int
}

func NewSim() *Sim {
	return &Sim{limit: math.Inf(1)}
}

func (s *Sim) Set(value float64) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.mode != DutyCycle {
		return ErrUnsupportedMode
	}
	s.duty = clampDuty(value)
	s.setCalls++
	return nil
}

func (s *Sim) OutputCurrent() (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.current, nil
}

func (s *Sim) OutputPercent() (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.duty, nil
}

func (s *Sim) Speed() (float64, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.rpm, nil
}

func (s *Sim) SetControlMode(mode ControlMode) error {
	if mode != DutyCycle {
		return ErrUnsupportedMode
	}
	s.lock.Lock()
	s.mode = mode
	s.lock.Unlock()
	return nil
}

func (s *Sim) SetBrakeMode(brake bool) error {
	s.lock.Lock()
	s.brake = brake
	s.lock.Unlock()
	return nil
}

func (s *Sim) SetCurrentLimit(steadyAmps, peakAmps float64, rampTime time.Duration) error {
	s.lock.Lock()
	s.limit = math.Max(steadyAmps, 0)
	s.lock.Unlock()
	return nil
}

// CurrentLimit returns the limit most recently applied by SetCurrentLimit.
func (s *Sim) CurrentLimit() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.limit
}

// BrakeMode reports whether brake mode is on.
func (s *Sim) BrakeMode() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.brake
}

// SetCalls returns how many times Set has succeeded.
func (s *Sim) SetCalls() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.setCalls
}

// SetLoaded jams (or frees) the roller.
func (s *Sim) SetLoaded(loaded bool) {
	s.lock.Lock()
	s.loaded = loaded
	s.lock.Unlock()
}

// Step advances the model by dt.
func (s *Sim) Step(dt time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()

	target := s.duty * SimFreeSpeedRPM
	if s.loaded {
		target = 0
	}
	alpha := 1 - math.Exp(-float64(dt)/float64(SimSpinUpConstant))
	if s.duty == 0 && !s.brake {
		// Coasting decays much more slowly than active braking.
		alpha /= 10
	}
	s.rpm += (target - s.rpm) * alpha

	slip := s.duty - s.rpm/SimFreeSpeedRPM
	s.current = math.Min(math.Abs(slip)*SimStallCurrent, s.limit)
}

var _ Interface = (*Sim)(nil)
var _ CurrentLimiter = (*Sim)(nil)
