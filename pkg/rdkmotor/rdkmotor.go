// Package rdkmotor drives the roller through any Viam motor component, such
// as a VESC CAN module or a board-driven H-bridge.
package rdkmotor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	rdkmotor "go.viam.com/rdk/components/motor"
	"go.viam.com/rdk/components/motor/fake"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"

	"github.com/Auyushg/Robonauts-2023/pkg/motor"
)

// CallTimeout bounds every call into the component.
const CallTimeout = 20 * time.Millisecond

var ErrNotReported = errors.New("motor component does not report this value")

// Roller adapts a Viam motor.  Current and speed come from the component's
// DoCommand status map ("current", "rpm"), which VESC modules provide.
type Roller struct {
	m       rdkmotor.Motor
	logger  logging.Logger
	timeout time.Duration

	mode  motor.ControlMode
	brake bool
}

var _ motor.Interface = (*Roller)(nil)

func New(m rdkmotor.Motor, logger logging.Logger) *Roller {
	return &Roller{m: m, logger: logger, timeout: CallTimeout}
}

// NewFake returns a roller backed by rdk's built-in fake motor, for bench
// runs without hardware.
func NewFake(ctx context.Context, maxRPM float64, logger logging.Logger) (*Roller, error) {
	conf := resource.Config{
		Name:                "roller",
		API:                 rdkmotor.API,
		Model:               resource.DefaultModelFamily.WithModel("fake"),
		ConvertedAttributes: &fake.Config{MaxRPM: maxRPM},
	}
	m, err := fake.NewMotor(ctx, resource.Dependencies{}, conf, logger)
	if err != nil {
		return nil, errors.Wrap(err, "creating fake motor")
	}
	return New(m, logger), nil
}

func (r *Roller) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

func (r *Roller) Set(value float64) error {
	ctx, cancel := r.ctx()
	defer cancel()
	switch r.mode {
	case motor.DutyCycle:
		if value == 0 && r.brake {
			return errors.Wrap(r.m.Stop(ctx, nil), "stopping motor")
		}
		return errors.Wrap(r.m.SetPower(ctx, value, nil), "setting motor power")
	case motor.Velocity:
		return errors.Wrap(r.m.SetRPM(ctx, value, nil), "setting motor rpm")
	}
	return motor.ErrUnsupportedMode
}

func (r *Roller) SetControlMode(mode motor.ControlMode) error {
	if mode != motor.DutyCycle && mode != motor.Velocity {
		return motor.ErrUnsupportedMode
	}
	r.mode = mode
	return nil
}

// SetBrakeMode makes a zero command stop the motor rather than cut power.
func (r *Roller) SetBrakeMode(brake bool) error {
	r.brake = brake
	return nil
}

func (r *Roller) OutputPercent() (float64, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	_, pct, err := r.m.IsPowered(ctx, nil)
	return pct, errors.Wrap(err, "reading motor power")
}

func (r *Roller) OutputCurrent() (float64, error) {
	return r.status("current")
}

func (r *Roller) Speed() (float64, error) {
	return r.status("rpm")
}

func (r *Roller) status(key string) (float64, error) {
	ctx, cancel := r.ctx()
	defer cancel()
	resp, err := r.m.DoCommand(ctx, map[string]interface{}{"command": "status"})
	if err != nil {
		return 0, errors.Wrap(err, "reading motor status")
	}
	switch v := resp[key].(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int:
		return float64(v), nil
	}
	return 0, errors.Wrap(ErrNotReported, key)
}
