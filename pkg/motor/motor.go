package motor

import (
	"time"

	"github.com/pkg/errors"
)

type ControlMode int

const (
	DutyCycle ControlMode = iota
	Velocity
	Current
)

func (m ControlMode) String() string {
	switch m {
	case DutyCycle:
		return "duty_cycle"
	case Velocity:
		return "velocity"
	case Current:
		return "current"
	default:
		return "unknown"
	}
}

var ErrUnsupportedMode = errors.New("control mode not supported by this motor")

// Interface is a single motor controller as seen by a subsystem.  Reads
// return the controller's most recent view of the motor; they must not
// block for longer than one bus transaction.
type Interface interface {
	// Set commands the motor.  In DutyCycle mode value is a fraction in [-1, 1].
	Set(value float64) error

	OutputCurrent() (float64, error)
	OutputPercent() (float64, error)
	Speed() (float64, error)

	SetControlMode(mode ControlMode) error
	SetBrakeMode(brake bool) error
}

// CurrentLimiter is implemented by controllers that can enforce a current
// limit on the motor.  Controllers without that ability simply don't
// implement it.
type CurrentLimiter interface {
	SetCurrentLimit(steadyAmps, peakAmps float64, rampTime time.Duration) error
}

// LimiterOf returns m's current limit capability, if it has one.
func LimiterOf(m Interface) (CurrentLimiter, bool) {
	if m == nil {
		return nil, false
	}
	cl, ok := m.(CurrentLimiter)
	return cl, ok
}

func clampDuty(value float64) float64 {
	if value > 1 {
		return 1
	}
	if value < -1 {
		return -1
	}
	return value
}
