package robot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

type recorder struct {
	calls []string
}

func (r *recorder) Name() string     { return "recorder" }
func (r *recorder) RobotInit()       { r.calls = append(r.calls, "RobotInit") }
func (r *recorder) RobotPeriodic()   { r.calls = append(r.calls, "RobotPeriodic") }
func (r *recorder) AutonomousInit()  { r.calls = append(r.calls, "AutonomousInit") }
func (r *recorder) TeleopInit()      { r.calls = append(r.calls, "TeleopInit") }
func (r *recorder) InitPreferences() { r.calls = append(r.calls, "InitPreferences") }
func (r *recorder) ReadPreferences() { r.calls = append(r.calls, "ReadPreferences") }

type plain struct{ periodic int }

func (p *plain) Name() string   { return "plain" }
func (p *plain) RobotInit()     {}
func (p *plain) RobotPeriodic() { p.periodic++ }

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func TestInitOrder(t *testing.T) {
	r := New(logging.NewTestLogger(t))
	rec := &recorder{}
	r.Register(rec)
	r.Init()
	assert.Equal(t, []string{"InitPreferences", "ReadPreferences", "RobotInit"}, rec.calls)
}

func TestModeChangeAppliedAtStartOfCycle(t *testing.T) {
	r := New(logging.NewTestLogger(t))
	rec := &recorder{}
	other := &plain{}
	r.Register(rec)
	r.Register(other)

	var seen []Mode
	r.OnModeChange(func(m Mode) { seen = append(seen, m) })

	r.RequestMode(Autonomous)
	assert.Equal(t, Disabled, r.Mode(), "not applied until the next cycle")
	r.Step()
	assert.True(t, r.IsAutonomous())
	assert.Equal(t, []string{"ReadPreferences", "AutonomousInit", "RobotPeriodic"}, rec.calls)

	rec.calls = nil
	r.RequestMode(Disabled)
	r.RequestMode(Teleop)
	r.Step()
	assert.Equal(t, Teleop, r.Mode())
	assert.Equal(t, []string{"ReadPreferences", "TeleopInit", "RobotPeriodic"}, rec.calls)
	assert.Equal(t, []Mode{Autonomous, Teleop}, seen)
	assert.Equal(t, 2, other.periodic)
	assert.Equal(t, uint64(2), r.Cycles())
}

func TestPhaseElapsed(t *testing.T) {
	clock := &fakeClock{t: time.Unix(100, 0)}
	r := New(logging.NewTestLogger(t), WithClock(clock.Now))

	clock.t = clock.t.Add(3 * time.Second)
	assert.Equal(t, 3*time.Second, r.PhaseElapsed())

	r.RequestMode(Teleop)
	r.Step()
	assert.Zero(t, r.PhaseElapsed())
	clock.t = clock.t.Add(500 * time.Millisecond)
	assert.Equal(t, 500*time.Millisecond, r.PhaseElapsed())
	assert.Equal(t, clock.t, r.Now())
}

func TestAfterCycleRunsAfterSubsystems(t *testing.T) {
	r := New(logging.NewTestLogger(t))
	p := &plain{}
	r.Register(p)
	var seenPeriodic int
	r.AfterCycle(func() { seenPeriodic = p.periodic })
	r.Step()
	assert.Equal(t, 1, seenPeriodic)
}

func TestDoRunsInlineWhenStopped(t *testing.T) {
	r := New(logging.NewTestLogger(t))
	ran := false
	require.NoError(t, r.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestDoRunsOnLoop(t *testing.T) {
	r := New(logging.NewTestLogger(t), WithPeriod(time.Millisecond))
	p := &plain{}
	r.Register(p)

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan error)
	go func() { loopDone <- r.Loop(ctx) }()

	require.Eventually(t, func() bool { return r.Cycles() > 0 }, time.Second, time.Millisecond)

	var periodicSeen int
	require.NoError(t, r.Do(ctx, func() { periodicSeen = p.periodic }))
	assert.Greater(t, periodicSeen, 0)

	cancel()
	assert.ErrorIs(t, <-loopDone, context.Canceled)
}

func TestDoHonoursContext(t *testing.T) {
	r := New(logging.NewTestLogger(t), WithPeriod(time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan error)
	go func() { loopDone <- r.Loop(ctx) }()

	require.Eventually(t, func() bool {
		r.lock.Lock()
		defer r.lock.Unlock()
		return r.running
	}, time.Second, time.Millisecond)

	callCtx, callCancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer callCancel()
	err := r.Do(callCtx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancel()
	<-loopDone
}

func TestDoAfterLoopExits(t *testing.T) {
	r := New(logging.NewTestLogger(t), WithPeriod(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan error)
	go func() { loopDone <- r.Loop(ctx) }()
	require.Eventually(t, func() bool { return r.Cycles() > 0 }, time.Second, time.Millisecond)

	r.lock.Lock()
	stopped := r.stopped
	r.lock.Unlock()
	cancel()
	<-loopDone

	// A caller that saw the loop running, queued after the loop's final drain.
	ran := false
	cmd := command{fn: func() { ran = true }, done: make(chan struct{})}
	r.commands <- cmd
	r.lock.Lock()
	r.running, r.stopped = true, stopped
	r.lock.Unlock()

	called := false
	done := make(chan error)
	go func() { done <- r.Do(context.Background(), func() { called = true }) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Do blocked after the loop exited")
	}
	assert.True(t, called)
	assert.True(t, ran, "stranded commands are run too")
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "teleop", Teleop.String())
	assert.Equal(t, "unknown", Mode(42).String())
}
