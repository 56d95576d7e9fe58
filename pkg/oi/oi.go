// Package oi turns raw joystick events into named operator-interface buttons
// with edge-latched Pressed/Released queries.
package oi

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/Auyushg/Robonauts-2023/pkg/joystick"
)

// axisThreshold is how far an axis must move before it counts as a button press.
const axisThreshold = 16384

// Button is a logical button backed by any number of physical inputs.  It is
// down while any of them is down.  Pressed and Released report whether the
// corresponding edge happened since the previous call, so each edge is seen
// exactly once by whoever polls for it.
type Button struct {
	Name string

	lock     sync.Mutex
	inputs   map[input]bool
	down     bool
	pressed  bool
	released bool
}

type input struct {
	kind   joystick.EventType
	number uint8
	sign   int
}

func newButton(name string) *Button {
	return &Button{
		Name:   name,
		inputs: map[input]bool{},
	}
}

func (b *Button) update(in input, down bool) {
	b.lock.Lock()
	defer b.lock.Unlock()

	b.inputs[in] = down
	anyDown := false
	for _, d := range b.inputs {
		if d {
			anyDown = true
			break
		}
	}
	if anyDown == b.down {
		return
	}
	b.down = anyDown
	if anyDown {
		b.pressed = true
	} else {
		b.released = true
	}
}

// Pressed reports whether the button went down since the last call.
func (b *Button) Pressed() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	p := b.pressed
	b.pressed = false
	return p
}

// Released reports whether the button came up since the last call.
func (b *Button) Released() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	r := b.released
	b.released = false
	return r
}

// Down reports the current level of the button.
func (b *Button) Down() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.down
}

// Set drives the button directly, as if a physical input changed.  Used by
// simulators that have no joystick.
func (b *Button) Set(down bool) {
	b.update(input{}, down)
}

// Panel owns the logical buttons and routes joystick events to them.
type Panel struct {
	lock     sync.Mutex
	byName   map[string]*Button
	byButton map[uint8][]*Button
	byAxis   map[uint8][]*Button
	axisSign map[*Button]int
}

func NewPanel() *Panel {
	return &Panel{
		byName:   map[string]*Button{},
		byButton: map[uint8][]*Button{},
		byAxis:   map[uint8][]*Button{},
		axisSign: map[*Button]int{},
	}
}

// Button returns the named logical button, creating it if needed.  A button
// with no mapping never fires, which lets subsystems ask for buttons the
// current controller layout doesn't provide.
func (p *Panel) Button(name string) *Button {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.buttonLocked(name)
}

func (p *Panel) buttonLocked(name string) *Button {
	b, ok := p.byName[name]
	if !ok {
		b = newButton(name)
		p.byName[name] = b
	}
	return b
}

// MapButton adds a physical joystick button to the named logical button.
func (p *Panel) MapButton(name string, number uint8) {
	p.lock.Lock()
	defer p.lock.Unlock()
	b := p.buttonLocked(name)
	p.byButton[number] = append(p.byButton[number], b)
}

// MapAxis makes the named button follow one direction of an axis: sign -1 for
// the negative half (e.g. D-pad up), +1 for the positive half.
func (p *Panel) MapAxis(name string, axis uint8, sign int) {
	p.lock.Lock()
	defer p.lock.Unlock()
	b := p.buttonLocked(name)
	p.byAxis[axis] = append(p.byAxis[axis], b)
	p.axisSign[b] = sign
}

type axisInput struct {
	axis uint8
	sign int
}

var axisInputs = map[string]axisInput{
	"dpad_up":     {joystick.AxisDPadY, -1},
	"dpad_down":   {joystick.AxisDPadY, 1},
	"dpad_left":   {joystick.AxisDPadX, -1},
	"dpad_right":  {joystick.AxisDPadX, 1},
	"lstick_up":   {joystick.AxisLStickY, -1},
	"lstick_down": {joystick.AxisLStickY, 1},
	"rstick_up":   {joystick.AxisRStickY, -1},
	"rstick_down": {joystick.AxisRStickY, 1},
}

// MapInput maps a physical input by name: a button ("r1", "cross", ...) or an
// axis direction ("dpad_up", "lstick_down", ...).
func (p *Panel) MapInput(name, physical string) error {
	if n, ok := joystick.ButtonByName(physical); ok {
		p.MapButton(name, n)
		return nil
	}
	if a, ok := axisInputs[physical]; ok {
		p.MapAxis(name, a.axis, a.sign)
		return nil
	}
	return errors.Errorf("unknown joystick input %q for %s", physical, name)
}

// MapAll applies a name -> inputs mapping, stopping at the first bad input.
func (p *Panel) MapAll(mapping map[string][]string) error {
	for name, inputs := range mapping {
		for _, in := range inputs {
			if err := p.MapInput(name, in); err != nil {
				return err
			}
		}
	}
	return nil
}

// Names returns the names of all known logical buttons.
func (p *Panel) Names() []string {
	p.lock.Lock()
	defer p.lock.Unlock()
	names := make([]string, 0, len(p.byName))
	for n := range p.byName {
		names = append(names, n)
	}
	return names
}

func (p *Panel) OnJoystickEvent(event *joystick.Event) {
	p.lock.Lock()
	var targets []*Button
	var signs []int
	switch event.Type {
	case joystick.EventTypeButton:
		targets = p.byButton[event.Number]
	case joystick.EventTypeAxis:
		targets = p.byAxis[event.Number]
		for _, b := range targets {
			signs = append(signs, p.axisSign[b])
		}
	}
	p.lock.Unlock()

	for i, b := range targets {
		if event.Type == joystick.EventTypeButton {
			b.update(input{kind: event.Type, number: event.Number}, event.Value != 0)
			continue
		}
		sign := signs[i]
		down := int(event.Value)*sign > axisThreshold
		b.update(input{kind: event.Type, number: event.Number, sign: sign}, down)
	}
}
