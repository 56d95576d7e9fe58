// Package esc drives a hobby brushed ESC from a PCA9685 servo output, with an
// INA219 on the supply for current readings and an optional GPIO for the
// ESC's brake/coast input.
//
// The I2C devices are owned by a background loop, which writes the throttle
// when it changes and polls current.  If the bus fails the loop closes
// everything and reopens it.
package esc

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"github.com/Auyushg/Robonauts-2023/pkg/ina219"
	"github.com/Auyushg/Robonauts-2023/pkg/motor"
	"github.com/Auyushg/Robonauts-2023/pkg/mux"
	"github.com/Auyushg/Robonauts-2023/pkg/pca9685"
)

const (
	LoopPeriod   = 20 * time.Millisecond
	RetryBackoff = 500 * time.Millisecond
)

var (
	ErrNoEncoder = errors.New("ESC has no speed feedback")
	ErrNoReading = errors.New("no current reading yet")
)

type Config struct {
	I2CBus string `yaml:"i2c_bus"`
	// MuxPort is the multiplexer port the PCA9685 and INA219 sit behind,
	// or mux.NoPort.
	MuxPort    int     `yaml:"mux_port"`
	PWMPort    int     `yaml:"pwm_port"`
	INA219Addr int     `yaml:"ina219_addr"`
	ShuntOhms  float64 `yaml:"shunt_ohms"`
	MaxCurrent float64 `yaml:"max_current"`
	// BrakePin is a periph GPIO name; empty if the ESC's brake jumper is
	// hard-wired.
	BrakePin string `yaml:"brake_pin"`
	Inverted bool   `yaml:"inverted"`
}

// devices is everything the loop opens; closing it releases them all.
type devices struct {
	mux     mux.Interface
	pwm     pca9685.Interface
	current ina219.Interface
	closers []func() error
}

func (d *devices) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

type opener func(cfg Config) (*devices, error)

type brakePin interface {
	Out(l gpio.Level) error
}

type ESC struct {
	cfg    Config
	logger logging.Logger
	open   opener
	brake  brakePin

	lock     sync.Mutex
	throttle float64
	mode     motor.ControlMode
	current  float64
	haveCurr bool
	written  float64
	healthy  bool
}

var _ motor.Interface = (*ESC)(nil)

// New returns an ESC that isn't running yet; call Loop.  The brake pin, if
// any, is looked up immediately.
func New(cfg Config, logger logging.Logger) (*ESC, error) {
	e := newESC(cfg, logger, openDevices)
	if cfg.BrakePin != "" {
		if _, err := host.Init(); err != nil {
			return nil, errors.Wrap(err, "initialising periph")
		}
		pin := gpioreg.ByName(cfg.BrakePin)
		if pin == nil {
			return nil, errors.Errorf("no GPIO called %s", cfg.BrakePin)
		}
		e.brake = pin
	}
	return e, nil
}

func newESC(cfg Config, logger logging.Logger, open opener) *ESC {
	return &ESC{cfg: cfg, logger: logger, open: open}
}

func openDevices(cfg Config) (_ *devices, err error) {
	d := &devices{}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	d.mux = mux.Dummy()
	if cfg.MuxPort != mux.NoPort {
		mx, err := mux.New(cfg.I2CBus)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, mx.Close)
		d.mux = mx
	}
	if err := selectPort(d.mux, cfg.MuxPort); err != nil {
		return nil, err
	}

	pwm, err := pca9685.New(cfg.I2CBus)
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, pwm.Close)
	if err := pwm.Configure(); err != nil {
		return nil, err
	}
	d.pwm = pwm

	sensor, err := ina219.NewI2C(cfg.I2CBus, cfg.INA219Addr)
	if err != nil {
		return nil, err
	}
	if err := sensor.Configure(cfg.ShuntOhms, cfg.MaxCurrent); err != nil {
		return nil, err
	}
	d.current = sensor
	return d, nil
}

func selectPort(mx mux.Interface, port int) error {
	if port == mux.NoPort {
		return nil
	}
	return errors.Wrap(mx.SelectSinglePort(port), "selecting mux port")
}

func (e *ESC) Set(value float64) error {
	e.lock.Lock()
	defer e.lock.Unlock()
	if e.mode != motor.DutyCycle {
		return motor.ErrUnsupportedMode
	}
	if value < -1 {
		value = -1
	} else if value > 1 {
		value = 1
	}
	e.throttle = value
	if !e.healthy {
		return errors.New("ESC bus not running")
	}
	return nil
}

func (e *ESC) SetControlMode(mode motor.ControlMode) error {
	if mode != motor.DutyCycle {
		return motor.ErrUnsupportedMode
	}
	e.lock.Lock()
	e.mode = mode
	e.lock.Unlock()
	return nil
}

func (e *ESC) SetBrakeMode(brake bool) error {
	if e.brake == nil {
		return nil
	}
	level := gpio.Low
	if brake {
		level = gpio.High
	}
	return errors.Wrap(e.brake.Out(level), "setting brake pin")
}

func (e *ESC) OutputCurrent() (float64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	if !e.haveCurr {
		return 0, ErrNoReading
	}
	return e.current, nil
}

// OutputPercent returns the throttle most recently sent to the ESC.
func (e *ESC) OutputPercent() (float64, error) {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.written, nil
}

func (e *ESC) Speed() (float64, error) {
	return 0, ErrNoEncoder
}

// Loop runs until ctx is done.  initDone, if not nil, is released once the
// devices have been opened for the first time (or failed to open).
func (e *ESC) Loop(ctx context.Context, initDone *sync.WaitGroup) {
	e.logger.Info("ESC loop started")
	for {
		e.loopUntilSomethingBadHappens(ctx, initDone)
		initDone = nil
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn("===== !!! WARNING !!! ESC I2C FAILURE; TRYING TO RECOVER =====")
		select {
		case <-ctx.Done():
			return
		case <-time.After(RetryBackoff):
		}
	}
}

func (e *ESC) setHealthy(healthy bool) {
	e.lock.Lock()
	e.healthy = healthy
	e.lock.Unlock()
}

func (e *ESC) loopUntilSomethingBadHappens(ctx context.Context, initDone *sync.WaitGroup) {
	defer func() {
		if initDone != nil {
			initDone.Done()
		}
	}()

	d, err := e.open(e.cfg)
	if err != nil {
		e.logger.Warnf("Failed to open ESC devices: %v", err)
		return
	}
	defer d.Close()
	defer e.setHealthy(false)

	// Neutral first so the ESC arms.
	if err := d.pwm.SetThrottle(e.cfg.PWMPort, 0); err != nil {
		e.logger.Warnf("Failed to arm ESC: %v", err)
		return
	}
	e.setHealthy(true)
	if initDone != nil {
		initDone.Done()
		initDone = nil
	}

	ticker := time.NewTicker(LoopPeriod)
	defer ticker.Stop()
	last := 0.0
	for {
		select {
		case <-ctx.Done():
			// Leave the motor stopped.
			_ = d.pwm.SetThrottle(e.cfg.PWMPort, 0)
			return
		case <-ticker.C:
		}
		if err := e.poll(d, &last); err != nil {
			e.logger.Warnf("ESC: %v", err)
			return
		}
	}
}

func (e *ESC) poll(d *devices, last *float64) error {
	e.lock.Lock()
	throttle := e.throttle
	e.lock.Unlock()

	if err := selectPort(d.mux, e.cfg.MuxPort); err != nil {
		return err
	}
	if throttle != *last {
		out := throttle
		if e.cfg.Inverted {
			out = -out
		}
		if err := d.pwm.SetThrottle(e.cfg.PWMPort, out); err != nil {
			return errors.Wrap(err, "failed to update throttle")
		}
		*last = throttle
		e.lock.Lock()
		e.written = throttle
		e.lock.Unlock()
	}

	amps, err := d.current.ReadCurrent()
	if err != nil {
		// A missed reading isn't worth a reset.
		e.logger.Debugf("ESC current read failed: %v", err)
		return nil
	}
	e.lock.Lock()
	e.current, e.haveCurr = amps, true
	e.lock.Unlock()
	return nil
}
