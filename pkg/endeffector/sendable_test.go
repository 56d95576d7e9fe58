package endeffector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/dashboard"
	"github.com/Auyushg/Robonauts-2023/pkg/scripting"
)

type logVars map[string]func() float64

func (l logVars) AddLogVar(name string, get func() float64) {
	l[name] = get
}

func TestLogVars(t *testing.T) {
	f := newFixture(t)
	f.motor.velocity = 1234
	f.ee.RollerIn()
	f.ee.RobotPeriodic()
	f.ee.RobotPeriodic()
	f.ee.RobotPeriodic()

	vars := logVars{}
	f.ee.AddLogVars(vars)
	require.Len(t, vars, 4)
	assert.Equal(t, inCmd, vars["roller_cmd"]())
	assert.Equal(t, 1234.0, vars["roller_vel"]())
}

func TestDashboard(t *testing.T) {
	f := newFixture(t)
	board := dashboard.NewBoard()
	board.Tab("EndEffector").Add("Roller", f.ee).WithSize(2, 4)

	f.ee.RollerOut()
	board.Publish()
	values, _ := board.Latest("EndEffector")
	require.Len(t, values, 4)
	assert.Equal(t, "01. roller_cmd", values[0].Key)
	assert.Equal(t, outCmd, values[0].Double)
	assert.Equal(t, "04. roller_vel", values[3].Key)
}

func TestScriptTable(t *testing.T) {
	f := newFixture(t)
	f.piece.cone = true
	f.motor.velocity = 42
	for i := 0; i < 3; i++ {
		f.ee.RobotPeriodic()
	}

	engine := scripting.New(logging.NewTestLogger(t), nil)
	engine.Register("robonauts", "end_effector", f.ee.ScriptTable())
	assert.Contains(t, engine.Functions(), "robonauts.end_effector.slurpPressed")

	err := engine.RunString(context.Background(), `
		local ee = robonauts.end_effector
		ee.initCurrentLimits(2, 30)
		ee:slurpPressed()
		if ee.getRollerVel() ~= 42 then
			error("unexpected velocity")
		end
	`)
	require.NoError(t, err)
	assert.Equal(t, inCmd, f.ee.RollerCmd())
	assert.Equal(t, 30.0, f.motor.lastLimit())

	require.NoError(t, engine.RunString(context.Background(), "robonauts.end_effector.spitReleased()"))
	assert.Equal(t, offCmd, f.ee.RollerCmd())
	assert.Equal(t, 2.0, f.motor.lastLimit())
}
