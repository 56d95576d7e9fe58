package endeffector

import (
	"github.com/Auyushg/Robonauts-2023/pkg/dashboard"
	"github.com/Auyushg/Robonauts-2023/pkg/scripting"
)

// LogVars is where per-cycle logged variables are registered.
type LogVars interface {
	AddLogVar(name string, get func() float64)
}

func (e *EndEffector) AddLogVars(l LogVars) {
	l.AddLogVar("roller_cmd", e.RollerCmd)
	l.AddLogVar("roller_dc", e.RollerDutyCycle)
	l.AddLogVar("roller_curr", e.RollerCurrent)
	l.AddLogVar("roller_vel", e.RollerVelocity)
}

// InitSendable publishes the roller command and telemetry.  All properties
// are read-only.
func (e *EndEffector) InitSendable(b *dashboard.Builder) {
	b.AddDoubleProperty("01. roller_cmd", e.RollerCmd)
	b.AddDoubleProperty("02. roller_dc", e.RollerDutyCycle)
	b.AddDoubleProperty("03. roller_current", e.RollerCurrent)
	b.AddDoubleProperty("04. roller_vel", e.RollerVelocity)
}

// ScriptTable lists the operations callable from Lua.
func (e *EndEffector) ScriptTable() scripting.Table {
	return scripting.Table{
		"rollerIn":          scripting.Action(e.RollerIn),
		"rollerOut":         scripting.Action(e.RollerOut),
		"rollerOff":         scripting.Action(e.RollerOff),
		"slurpPressed":      scripting.Action(e.SlurpPressed),
		"slurpReleased":     scripting.Action(e.SlurpReleased),
		"spitPressed":       scripting.Action(e.SpitPressed),
		"spitReleased":      scripting.Action(e.SpitReleased),
		"reset":             scripting.Action(e.Reset),
		"initCurrentLimits": scripting.Setter2(e.InitCurrentLimits),
		"getRollerVel":      scripting.Getter(e.RollerVelocity),
	}
}
