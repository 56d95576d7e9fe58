// Package vesc drives a VESC motor controller over SocketCAN.
//
// Commands are single extended frames addressed to the controller's CAN ID.
// The controller broadcasts status frames, which a listener goroutine decodes
// into the latest Status; reads never touch the bus.
package vesc

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/motor"
)

const (
	packetSetDuty           = 0
	packetSetCurrent        = 1
	packetSetCurrentBrake   = 2
	packetSetRPM            = 3
	packetStatus            = 9
	packetStatus2           = 14
	packetStatus3           = 15
	packetStatus4           = 16
	packetPing              = 17
	packetPong              = 18
	packetConfCurrentLimits = 21
	packetStatus5           = 27
)

// StatusTimeout is how old the last status frame may be before reads fail.
const StatusTimeout = 500 * time.Millisecond

var (
	ErrNoStatus = errors.New("no recent status from VESC")
	ErrClosed   = errors.New("VESC connection closed")
)

type Config struct {
	Interface string `yaml:"interface"`
	ID        int    `yaml:"id"`
	// PolePairs converts electrical RPM to shaft RPM.
	PolePairs int `yaml:"pole_pairs"`
	// BrakeCurrent is applied when the motor is commanded to zero with
	// brake mode on.
	BrakeCurrent float64 `yaml:"brake_current"`
}

func (c *Config) Validate() error {
	if c.Interface == "" {
		return errors.New("vesc: need a CAN interface")
	}
	if c.ID < 0 || c.ID > 255 {
		return errors.Errorf("vesc: CAN ID %d out of range", c.ID)
	}
	return nil
}

// Status is the telemetry broadcast by the controller.
type Status struct {
	// Status 1
	ERPM      int32
	Current   float64
	DutyCycle float64

	// Status 2
	AmpHours        float64
	AmpHoursCharged float64

	// Status 3
	WattHours        float64
	WattHoursCharged float64

	// Status 4
	FETTemp   float64
	MotorTemp float64
	CurrentIn float64
	PIDPos    float64

	// Status 5
	Tachometer   int32
	InputVoltage float64

	LastUpdate time.Time
}

// bus is the part of canbus.Socket the driver uses.
type bus interface {
	Send(frame canbus.Frame) (int, error)
	Recv() (canbus.Frame, error)
	Close() error
}

type Motor struct {
	cfg    Config
	logger logging.Logger
	bus    bus
	now    func() time.Time
	cancel context.CancelFunc
	done   chan struct{}

	lock   sync.Mutex
	mode   motor.ControlMode
	brake  bool
	status Status
}

var _ motor.Interface = (*Motor)(nil)
var _ motor.CurrentLimiter = (*Motor)(nil)

// Open binds a CAN socket to cfg.Interface and starts listening for status
// frames from the controller.
func Open(cfg Config, logger logging.Logger) (*Motor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	socket, err := canbus.New()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create CAN socket")
	}
	if err := socket.Bind(cfg.Interface); err != nil {
		socket.Close()
		return nil, errors.Wrapf(err, "failed to bind to CAN interface %s", cfg.Interface)
	}
	return newMotor(socket, cfg, logger, time.Now), nil
}

func newMotor(b bus, cfg Config, logger logging.Logger, now func() time.Time) *Motor {
	if cfg.PolePairs <= 0 {
		cfg.PolePairs = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	m := &Motor{
		cfg:    cfg,
		logger: logger,
		bus:    b,
		now:    now,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go m.listen(ctx)
	return m
}

func (m *Motor) Set(value float64) error {
	m.lock.Lock()
	mode, brake := m.mode, m.brake
	m.lock.Unlock()

	switch mode {
	case motor.DutyCycle:
		if value < -1 || value > 1 {
			return errors.Errorf("duty cycle must be between -1.0 and 1.0, got %f", value)
		}
		if value == 0 && brake && m.cfg.BrakeCurrent > 0 {
			return m.sendInt32(packetSetCurrentBrake, int32(m.cfg.BrakeCurrent*1000))
		}
		return m.sendInt32(packetSetDuty, int32(value*100000))
	case motor.Velocity:
		return m.sendInt32(packetSetRPM, int32(value*float64(m.cfg.PolePairs)))
	case motor.Current:
		return m.sendInt32(packetSetCurrent, int32(value*1000))
	}
	return motor.ErrUnsupportedMode
}

func (m *Motor) SetControlMode(mode motor.ControlMode) error {
	switch mode {
	case motor.DutyCycle, motor.Velocity, motor.Current:
	default:
		return motor.ErrUnsupportedMode
	}
	m.lock.Lock()
	m.mode = mode
	m.lock.Unlock()
	return nil
}

// SetBrakeMode chooses what a zero duty cycle does: brake with
// cfg.BrakeCurrent, or let the motor coast.
func (m *Motor) SetBrakeMode(brake bool) error {
	m.lock.Lock()
	m.brake = brake
	m.lock.Unlock()
	return nil
}

// SetCurrentLimit configures the controller's motor current limits.  The VESC
// has a single limit with no ramp, so peakAmps is used for both directions
// and rampTime is ignored.  The limits are not stored in flash.
func (m *Motor) SetCurrentLimit(steadyAmps, peakAmps float64, rampTime time.Duration) error {
	limit := peakAmps
	if steadyAmps > limit {
		limit = steadyAmps
	}
	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[0:4], uint32(int32(-limit*1000)))
	binary.BigEndian.PutUint32(data[4:8], uint32(int32(limit*1000)))
	return m.send(packetConfCurrentLimits, data)
}

func (m *Motor) OutputCurrent() (float64, error) {
	s, err := m.freshStatus()
	return s.Current, err
}

func (m *Motor) OutputPercent() (float64, error) {
	s, err := m.freshStatus()
	return s.DutyCycle, err
}

// Speed returns the shaft speed in RPM.
func (m *Motor) Speed() (float64, error) {
	s, err := m.freshStatus()
	return float64(s.ERPM) / float64(m.cfg.PolePairs), err
}

func (m *Motor) freshStatus() (Status, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.now().Sub(m.status.LastUpdate) > StatusTimeout {
		return Status{}, ErrNoStatus
	}
	return m.status, nil
}

// Status returns the latest telemetry, however old.
func (m *Motor) Status() Status {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.status
}

func (m *Motor) Alive() bool {
	_, err := m.freshStatus()
	return err == nil
}

func (m *Motor) Ping() error {
	return m.sendInt32(packetPing, 0)
}

func (m *Motor) Close() error {
	m.cancel()
	err := m.bus.Close()
	<-m.done
	return err
}

func (m *Motor) extendedID(command uint8) uint32 {
	// Bits 15-8 carry the command, bits 7-0 the controller ID.
	return uint32(command)<<8 | uint32(m.cfg.ID)
}

func (m *Motor) sendInt32(command uint8, value int32) error {
	data := make([]byte, 4)
	binary.BigEndian.PutUint32(data, uint32(value))
	return m.send(command, data)
}

func (m *Motor) send(command uint8, data []byte) error {
	_, err := m.bus.Send(canbus.Frame{
		ID:   m.extendedID(command),
		Data: data,
		Kind: canbus.EFF,
	})
	return errors.Wrapf(err, "sending VESC command %d", command)
}

func (m *Motor) listen(ctx context.Context) {
	defer close(m.done)
	for {
		frame, err := m.bus.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.logger.Warnf("Error receiving CAN frame: %v", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(10 * time.Millisecond):
			}
			continue
		}
		if frame.Kind == canbus.EFF {
			m.handleFrame(frame)
		}
	}
}

func (m *Motor) handleFrame(frame canbus.Frame) {
	command := uint8((frame.ID >> 8) & 0xFF)
	sender := uint8(frame.ID & 0xFF)
	if int(sender) != m.cfg.ID {
		return
	}
	if command == packetPong {
		m.logger.Infof("Received PONG from VESC ID %d", sender)
		return
	}

	data := frame.Data
	need := 8
	if command == packetStatus5 {
		need = 6
	}
	if len(data) < need {
		m.logger.Debugf("short VESC frame, command %d", command)
		return
	}

	m.lock.Lock()
	defer m.lock.Unlock()
	s := &m.status
	switch command {
	case packetStatus:
		s.ERPM = int32(binary.BigEndian.Uint32(data[0:4]))
		s.Current = float64(int16(binary.BigEndian.Uint16(data[4:6]))) / 10
		s.DutyCycle = float64(int16(binary.BigEndian.Uint16(data[6:8]))) / 1000
	case packetStatus2:
		s.AmpHours = float64(int32(binary.BigEndian.Uint32(data[0:4]))) / 10000
		s.AmpHoursCharged = float64(int32(binary.BigEndian.Uint32(data[4:8]))) / 10000
	case packetStatus3:
		s.WattHours = float64(int32(binary.BigEndian.Uint32(data[0:4]))) / 10000
		s.WattHoursCharged = float64(int32(binary.BigEndian.Uint32(data[4:8]))) / 10000
	case packetStatus4:
		s.FETTemp = float64(int16(binary.BigEndian.Uint16(data[0:2]))) / 10
		s.MotorTemp = float64(int16(binary.BigEndian.Uint16(data[2:4]))) / 10
		s.CurrentIn = float64(int16(binary.BigEndian.Uint16(data[4:6]))) / 10
		s.PIDPos = float64(int16(binary.BigEndian.Uint16(data[6:8]))) / 50
	case packetStatus5:
		s.Tachometer = int32(binary.BigEndian.Uint32(data[0:4]))
		s.InputVoltage = float64(int16(binary.BigEndian.Uint16(data[4:6]))) / 10
	default:
		return
	}
	s.LastUpdate = m.now()
}
