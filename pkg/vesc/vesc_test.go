package vesc

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/go-daq/canbus"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/motor"
)

type fakeBus struct {
	lock   sync.Mutex
	sent   []canbus.Frame
	rx     chan canbus.Frame
	closed chan struct{}
	once   sync.Once
}

func newFakeBus() *fakeBus {
	return &fakeBus{rx: make(chan canbus.Frame, 16), closed: make(chan struct{})}
}

func (b *fakeBus) Send(f canbus.Frame) (int, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.sent = append(b.sent, f)
	return len(f.Data), nil
}

func (b *fakeBus) Recv() (canbus.Frame, error) {
	select {
	case f := <-b.rx:
		return f, nil
	case <-b.closed:
		return canbus.Frame{}, errors.New("socket closed")
	}
}

func (b *fakeBus) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

func (b *fakeBus) last() canbus.Frame {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.sent[len(b.sent)-1]
}

type clock struct {
	lock sync.Mutex
	t    time.Time
}

func (c *clock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.lock.Lock()
	c.t = c.t.Add(d)
	c.lock.Unlock()
}

func newTestMotor(t *testing.T, cfg Config) (*Motor, *fakeBus, *clock) {
	b := newFakeBus()
	c := &clock{t: time.Unix(100, 0)}
	m := newMotor(b, cfg, logging.NewTestLogger(t), c.Now)
	t.Cleanup(func() { m.Close() })
	return m, b, c
}

func statusFrame(id int, erpm int32, current, duty float64) canbus.Frame {
	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[0:4], uint32(erpm))
	binary.BigEndian.PutUint16(data[4:6], uint16(int16(current*10)))
	binary.BigEndian.PutUint16(data[6:8], uint16(int16(duty*1000)))
	return canbus.Frame{ID: uint32(packetStatus)<<8 | uint32(id), Data: data, Kind: canbus.EFF}
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{Interface: "can0", ID: 300}).Validate())
	assert.NoError(t, (&Config{Interface: "can0", ID: 7}).Validate())
}

func TestSetDuty(t *testing.T) {
	m, b, _ := newTestMotor(t, Config{ID: 7})
	require.NoError(t, m.Set(-0.5))

	f := b.last()
	assert.Equal(t, uint32(packetSetDuty<<8|7), f.ID)
	assert.Equal(t, canbus.EFF, f.Kind)
	assert.Equal(t, int32(-50000), int32(binary.BigEndian.Uint32(f.Data)))

	assert.Error(t, m.Set(1.5))
}

func TestBrakeAtZero(t *testing.T) {
	m, b, _ := newTestMotor(t, Config{ID: 3, BrakeCurrent: 2.5})

	require.NoError(t, m.Set(0))
	assert.Equal(t, uint32(packetSetDuty<<8|3), b.last().ID, "coasts by default")

	require.NoError(t, m.SetBrakeMode(true))
	require.NoError(t, m.Set(0))
	f := b.last()
	assert.Equal(t, uint32(packetSetCurrentBrake<<8|3), f.ID)
	assert.Equal(t, int32(2500), int32(binary.BigEndian.Uint32(f.Data)))
}

func TestOtherModes(t *testing.T) {
	m, b, _ := newTestMotor(t, Config{ID: 1, PolePairs: 7})

	require.NoError(t, m.SetControlMode(motor.Velocity))
	require.NoError(t, m.Set(1000))
	assert.Equal(t, uint32(packetSetRPM<<8|1), b.last().ID)
	assert.Equal(t, int32(7000), int32(binary.BigEndian.Uint32(b.last().Data)))

	require.NoError(t, m.SetControlMode(motor.Current))
	require.NoError(t, m.Set(-3))
	assert.Equal(t, int32(-3000), int32(binary.BigEndian.Uint32(b.last().Data)))

	assert.Equal(t, motor.ErrUnsupportedMode, m.SetControlMode(motor.ControlMode(9)))
}

func TestSetCurrentLimit(t *testing.T) {
	m, b, _ := newTestMotor(t, Config{ID: 9})
	require.NoError(t, m.SetCurrentLimit(40, 40, time.Second))

	f := b.last()
	assert.Equal(t, uint32(packetConfCurrentLimits<<8|9), f.ID)
	require.Len(t, f.Data, 8)
	assert.Equal(t, int32(-40000), int32(binary.BigEndian.Uint32(f.Data[0:4])))
	assert.Equal(t, int32(40000), int32(binary.BigEndian.Uint32(f.Data[4:8])))

	cl, ok := motor.LimiterOf(m)
	require.True(t, ok)
	require.NoError(t, cl.SetCurrentLimit(1, 1, time.Second))
	assert.Equal(t, int32(1000), int32(binary.BigEndian.Uint32(b.last().Data[4:8])))
}

func TestStatusFrames(t *testing.T) {
	m, b, c := newTestMotor(t, Config{ID: 5, PolePairs: 2})

	_, err := m.OutputCurrent()
	assert.Equal(t, ErrNoStatus, err, "nothing heard yet")

	b.rx <- statusFrame(6, 9999, 1, 1) // someone else's
	b.rx <- statusFrame(5, 4000, 12.3, -0.25)
	require.Eventually(t, m.Alive, time.Second, time.Millisecond)

	current, err := m.OutputCurrent()
	require.NoError(t, err)
	assert.InDelta(t, 12.3, current, 1e-9)
	duty, err := m.OutputPercent()
	require.NoError(t, err)
	assert.InDelta(t, -0.25, duty, 1e-9)
	speed, err := m.Speed()
	require.NoError(t, err)
	assert.Equal(t, 2000.0, speed)

	c.advance(StatusTimeout + time.Millisecond)
	_, err = m.Speed()
	assert.Equal(t, ErrNoStatus, err)
	assert.Equal(t, int32(4000), m.Status().ERPM, "stale status is still available")
}

func TestStatus5(t *testing.T) {
	m, b, _ := newTestMotor(t, Config{ID: 2})
	tach := int32(-42)
	data := make([]byte, 6)
	binary.BigEndian.PutUint32(data[0:4], uint32(tach))
	binary.BigEndian.PutUint16(data[4:6], uint16(125))
	b.rx <- canbus.Frame{ID: uint32(packetStatus5)<<8 | 2, Data: data, Kind: canbus.EFF}

	require.Eventually(t, m.Alive, time.Second, time.Millisecond)
	s := m.Status()
	assert.Equal(t, int32(-42), s.Tachometer)
	assert.InDelta(t, 12.5, s.InputVoltage, 1e-9)
}

func TestCloseStopsListener(t *testing.T) {
	b := newFakeBus()
	m := newMotor(b, Config{ID: 1}, logging.NewTestLogger(t), time.Now)
	done := make(chan error)
	go func() { done <- m.Close() }()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
}
