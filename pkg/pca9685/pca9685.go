// Package pca9685 drives the 16-channel PCA9685 PWM chip used to send servo
// pulses to hobby ESCs.
package pca9685

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/io/i2c"
)

const (
	DefaultAddr = 0x40

	RegMode1 = 0x00
	RegMode2 = 0x01

	// Each PWM output has two 16-bit (low byte first) registers.
	// First register is the on time, second is the off time.
	RegLEDBase = 0x06

	RegPreScale = 0xfe // Pre-scaler for PWM frequency.
	RegTestMode = 0xff

	PWMPeriod = 20 * time.Millisecond

	ServoMinPulseDuration = 1000 * time.Microsecond
	ServoMaxPulseDuration = 2000 * time.Microsecond

	PWMMax = 4095

	ServoMinPWM = float64(PWMMax * ServoMinPulseDuration / PWMPeriod)
	ServoMaxPWM = float64(PWMMax * ServoMaxPulseDuration / PWMPeriod)

	NumPorts = 16
)

var ErrBadPort = errors.New("PWM port out of range")

type Interface interface {
	Configure() error
	SetServo(port int, value float64) error
	SetThrottle(port int, value float64) error
	SetPWM(port int, value float64) error
	Close() error
}

type port interface {
	WriteReg(reg byte, buf []byte) error
	Close() error
}

type PCA9685 struct {
	dev   port
	sleep func(time.Duration)
}

func New(deviceFile string) (*PCA9685, error) {
	dev, err := i2c.Open(&i2c.Devfs{Dev: deviceFile}, DefaultAddr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening PCA9685 on %s", deviceFile)
	}
	return &PCA9685{dev: dev, sleep: time.Sleep}, nil
}

func (p *PCA9685) Configure() error {
	// Put device to sleep.
	if err := p.dev.WriteReg(RegMode1, []byte{0x11}); err != nil {
		return errors.Wrap(err, "PCA9685 sleep")
	}
	// Update pre-scaler for 50Hz.
	if err := p.dev.WriteReg(RegPreScale, []byte{0x79}); err != nil {
		return errors.Wrap(err, "PCA9685 prescaler")
	}
	// Trigger a reset
	if err := p.dev.WriteReg(RegMode1, []byte{0x01}); err != nil {
		return errors.Wrap(err, "PCA9685 reset")
	}
	// Required delay after reset.
	p.sleep(1 * time.Millisecond)
	// Enable.
	return errors.Wrap(p.dev.WriteReg(RegMode1, []byte{0x81}), "PCA9685 enable")
}

// SetServo sets a servo pulse; value 0 is the minimum pulse and 1 the
// maximum.
func (p *PCA9685) SetServo(port int, value float64) error {
	return p.write(port, ServoMinPWM+clamp(value, 0, 1)*(ServoMaxPWM-ServoMinPWM))
}

// SetThrottle drives a bidirectional ESC: -1 is full reverse, 0 neutral
// (1.5ms) and 1 full forward.
func (p *PCA9685) SetThrottle(port int, value float64) error {
	return p.SetServo(port, (clamp(value, -1, 1)+1)/2)
}

func (p *PCA9685) SetPWM(port int, value float64) error {
	return p.write(port, PWMMax*clamp(value, 0, 1))
}

func (p *PCA9685) write(port int, pwm float64) error {
	if port < 0 || port >= NumPorts {
		return errors.Wrapf(ErrBadPort, "port %d", port)
	}
	pwmValue := uint16(pwm)
	addr := RegLEDBase + port*4
	return p.dev.WriteReg(byte(addr), []byte{0, 0, byte(pwmValue & 0xff), byte(pwmValue >> 8)})
}

func (p *PCA9685) Close() error {
	return p.dev.Close()
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	} else if v > max {
		return max
	}
	return v
}

func Dummy() Interface {
	return &dummyServo{}
}

type dummyServo struct {
}

func (*dummyServo) Configure() error {
	return nil
}

func (*dummyServo) SetServo(port int, value float64) error {
	return nil
}

func (*dummyServo) SetThrottle(port int, value float64) error {
	return nil
}

func (*dummyServo) SetPWM(port int, value float64) error {
	return nil
}

func (*dummyServo) Close() error {
	return nil
}
