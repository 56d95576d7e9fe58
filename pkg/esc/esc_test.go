package esc

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
	"periph.io/x/periph/conn/gpio"

	"github.com/Auyushg/Robonauts-2023/pkg/ina219"
	"github.com/Auyushg/Robonauts-2023/pkg/motor"
	"github.com/Auyushg/Robonauts-2023/pkg/mux"
	"github.com/Auyushg/Robonauts-2023/pkg/pca9685"
)

type fakePWM struct {
	pca9685.Interface
	lock      sync.Mutex
	throttles []float64
	fail      bool
}

func (f *fakePWM) SetThrottle(port int, value float64) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	if f.fail {
		return errors.New("i2c write failed")
	}
	f.throttles = append(f.throttles, value)
	return nil
}

func (f *fakePWM) last() float64 {
	f.lock.Lock()
	defer f.lock.Unlock()
	if len(f.throttles) == 0 {
		return -99
	}
	return f.throttles[len(f.throttles)-1]
}

type fakeSensor struct {
	ina219.Interface
	amps float64
}

func (f *fakeSensor) ReadCurrent() (float64, error) {
	return f.amps, nil
}

type fakePin struct{ levels []gpio.Level }

func (p *fakePin) Out(l gpio.Level) error {
	p.levels = append(p.levels, l)
	return nil
}

func startESC(t *testing.T, cfg Config, pwm *fakePWM, opens *int) (*ESC, context.CancelFunc) {
	var lock sync.Mutex
	e := newESC(cfg, logging.NewTestLogger(t), func(Config) (*devices, error) {
		lock.Lock()
		*opens++
		lock.Unlock()
		return &devices{mux: mux.Dummy(), pwm: pwm, current: &fakeSensor{amps: 7.5}}, nil
	})
	require.NoError(t, e.SetControlMode(motor.DutyCycle))

	ctx, cancel := context.WithCancel(context.Background())
	var initDone sync.WaitGroup
	initDone.Add(1)
	done := make(chan struct{})
	go func() {
		e.Loop(ctx, &initDone)
		close(done)
	}()
	initDone.Wait()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e, cancel
}

func TestThrottleAndCurrent(t *testing.T) {
	pwm := &fakePWM{}
	opens := 0
	e, _ := startESC(t, Config{MuxPort: mux.NoPort, Inverted: true}, pwm, &opens)

	assert.Equal(t, 0.0, pwm.last(), "armed at neutral")

	require.NoError(t, e.Set(0.5))
	require.Eventually(t, func() bool { return pwm.last() == -0.5 }, time.Second, time.Millisecond)
	dc, err := e.OutputPercent()
	require.NoError(t, err)
	assert.Equal(t, 0.5, dc)

	require.Eventually(t, func() bool {
		a, err := e.OutputCurrent()
		return err == nil && a == 7.5
	}, time.Second, time.Millisecond)

	_, err = e.Speed()
	assert.Equal(t, ErrNoEncoder, err)

	require.NoError(t, e.Set(3))
	require.Eventually(t, func() bool { return pwm.last() == -1 }, time.Second, time.Millisecond)
}

func TestRecoversFromBusFailure(t *testing.T) {
	pwm := &fakePWM{}
	opens := 0
	e, _ := startESC(t, Config{MuxPort: mux.NoPort}, pwm, &opens)

	pwm.lock.Lock()
	pwm.fail = true
	pwm.lock.Unlock()
	require.NoError(t, e.Set(0.2))
	require.Eventually(t, func() bool { return e.Set(0.2) != nil }, time.Second, time.Millisecond)

	pwm.lock.Lock()
	pwm.fail = false
	pwm.lock.Unlock()
	require.Eventually(t, func() bool { return e.Set(0.2) == nil }, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return pwm.last() == 0.2 }, time.Second, time.Millisecond)
}

func TestOnlyDutyCycle(t *testing.T) {
	e := newESC(Config{}, logging.NewTestLogger(t), nil)
	assert.Equal(t, motor.ErrUnsupportedMode, e.SetControlMode(motor.Velocity))
	_, ok := motor.LimiterOf(e)
	assert.False(t, ok, "ESCs can't limit current")
	_, err := e.OutputCurrent()
	assert.Equal(t, ErrNoReading, err)
}

func TestBrakePin(t *testing.T) {
	e := newESC(Config{}, logging.NewTestLogger(t), nil)
	assert.NoError(t, e.SetBrakeMode(true), "no pin configured")

	pin := &fakePin{}
	e.brake = pin
	require.NoError(t, e.SetBrakeMode(true))
	require.NoError(t, e.SetBrakeMode(false))
	assert.Equal(t, []gpio.Level{gpio.High, gpio.Low}, pin.levels)
}
