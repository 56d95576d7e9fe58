package oi

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Auyushg/Robonauts-2023/pkg/joystick"
)

func buttonEvent(number uint8, value int16) *joystick.Event {
	return &joystick.Event{Type: joystick.EventTypeButton, Number: number, Value: value}
}

func TestEdgesAreLatchedOnce(t *testing.T) {
	p := NewPanel()
	p.MapButton("slurp", joystick.ButtonR1)
	slurp := p.Button("slurp")

	assert.False(t, slurp.Pressed())
	p.OnJoystickEvent(buttonEvent(joystick.ButtonR1, 1))
	assert.True(t, slurp.Down())
	assert.True(t, slurp.Pressed())
	assert.False(t, slurp.Pressed(), "edge must be consumed by the first poll")
	assert.False(t, slurp.Released())

	p.OnJoystickEvent(buttonEvent(joystick.ButtonR1, 0))
	assert.True(t, slurp.Released())
	assert.False(t, slurp.Released())
}

func TestPressAndReleaseBetweenPolls(t *testing.T) {
	p := NewPanel()
	p.MapButton("spit", joystick.ButtonL1)
	spit := p.Button("spit")

	p.OnJoystickEvent(buttonEvent(joystick.ButtonL1, 1))
	p.OnJoystickEvent(buttonEvent(joystick.ButtonL1, 0))

	assert.True(t, spit.Pressed())
	assert.True(t, spit.Released())
	assert.False(t, spit.Down())
}

func TestButtonSetNeedsAllInputsUp(t *testing.T) {
	p := NewPanel()
	p.MapButton("reset", joystick.ButtonShare)
	p.MapButton("reset", joystick.ButtonPS)
	reset := p.Button("reset")

	p.OnJoystickEvent(buttonEvent(joystick.ButtonShare, 1))
	p.OnJoystickEvent(buttonEvent(joystick.ButtonPS, 1))
	assert.True(t, reset.Pressed())

	p.OnJoystickEvent(buttonEvent(joystick.ButtonShare, 0))
	assert.False(t, reset.Released(), "still held through the other input")
	p.OnJoystickEvent(buttonEvent(joystick.ButtonPS, 0))
	assert.True(t, reset.Released())
}

func TestAxisButtons(t *testing.T) {
	p := NewPanel()
	p.MapAxis("up", joystick.AxisDPadY, -1)
	p.MapAxis("down", joystick.AxisDPadY, 1)
	up, down := p.Button("up"), p.Button("down")

	p.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: -32767})
	assert.True(t, up.Pressed())
	assert.False(t, down.Pressed())

	p.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: 0})
	assert.True(t, up.Released())

	p.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: 32767})
	assert.True(t, down.Pressed())
}

func TestUnmappedButtonNeverFires(t *testing.T) {
	p := NewPanel()
	b := p.Button("roller_in")
	p.OnJoystickEvent(buttonEvent(joystick.ButtonCross, 1))
	assert.False(t, b.Pressed())
	assert.Contains(t, p.Names(), "roller_in")
}

func TestSetDrivesButton(t *testing.T) {
	b := NewPanel().Button("roller_out")
	b.Set(true)
	assert.True(t, b.Pressed())
	b.Set(false)
	assert.True(t, b.Released())
}

func TestMapAll(t *testing.T) {
	p := NewPanel()
	err := p.MapAll(map[string][]string{
		"slurp":   {"r2", "cross"},
		"tune_up": {"dpad_up"},
	})
	assert.NoError(t, err)

	p.OnJoystickEvent(buttonEvent(joystick.ButtonCross, 1))
	assert.True(t, p.Button("slurp").Pressed())
	p.OnJoystickEvent(&joystick.Event{Type: joystick.EventTypeAxis, Number: joystick.AxisDPadY, Value: -32767})
	assert.True(t, p.Button("tune_up").Pressed())

	assert.Error(t, p.MapInput("spit", "trigger"))
}
