package scripting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"
)

type roller struct {
	cmd          float64
	steady, peak float64
}

func (r *roller) table() Table {
	return Table{
		"rollerIn":          Action(func() { r.cmd = 0.5 }),
		"rollerOff":         Action(func() { r.cmd = 0 }),
		"getRollerVel":      Getter(func() float64 { return 1234 }),
		"initCurrentLimits": Setter2(func(a, b float64) { r.steady, r.peak = a, b }),
	}
}

func TestCallsReachGo(t *testing.T) {
	e := New(logging.NewTestLogger(t), nil)
	r := &roller{}
	e.Register("robonauts", "end_effector", r.table())

	err := e.RunString(context.Background(), `
		robonauts.end_effector.initCurrentLimits(2, 30)
		robonauts.end_effector:rollerIn()
		vel = robonauts.end_effector.getRollerVel()
		if vel ~= 1234 then error("bad velocity " .. vel) end
	`)
	require.NoError(t, err)
	assert.Equal(t, 0.5, r.cmd)
	assert.Equal(t, 2.0, r.steady)
	assert.Equal(t, 30.0, r.peak)
}

func TestMissingArgumentIsAScriptError(t *testing.T) {
	e := New(logging.NewTestLogger(t), nil)
	e.Register("robonauts", "end_effector", (&roller{}).table())
	err := e.RunString(context.Background(), `robonauts.end_effector.initCurrentLimits(2)`)
	assert.Error(t, err)
}

func TestCallsGoThroughDispatcher(t *testing.T) {
	var dispatched int
	dispatch := func(ctx context.Context, fn func()) error {
		dispatched++
		fn()
		return nil
	}
	e := New(logging.NewTestLogger(t), dispatch)
	r := &roller{}
	e.Register("robonauts", "end_effector", r.table())

	require.NoError(t, e.RunString(context.Background(), `
		robonauts.end_effector.rollerIn()
		robonauts.end_effector.rollerOff()
	`))
	assert.Equal(t, 2, dispatched)
	assert.Equal(t, 0.0, r.cmd)
}

func TestDispatcherErrorAbortsScript(t *testing.T) {
	e := New(logging.NewTestLogger(t), func(ctx context.Context, fn func()) error {
		return context.Canceled
	})
	r := &roller{}
	e.Register("robonauts", "end_effector", r.table())
	err := e.RunString(context.Background(), `robonauts.end_effector.rollerIn()`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "end_effector.rollerIn")
	assert.Zero(t, r.cmd)
}

func TestCancelInterruptsSleep(t *testing.T) {
	e := New(logging.NewTestLogger(t), nil)
	e.Register("robonauts", "end_effector", (&roller{}).table())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- e.RunString(ctx, `robonauts.sleep(60)`) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("script did not stop")
	}
}

func TestFunctions(t *testing.T) {
	e := New(logging.NewTestLogger(t), nil)
	e.Register("robonauts", "end_effector", (&roller{}).table())
	assert.Equal(t, []string{
		"robonauts.end_effector.getRollerVel",
		"robonauts.end_effector.initCurrentLimits",
		"robonauts.end_effector.rollerIn",
		"robonauts.end_effector.rollerOff",
	}, e.Functions())
}
