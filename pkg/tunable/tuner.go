package tunable

// Button is an edge-latched operator input.
type Button interface {
	Pressed() bool
}

type Buttons struct {
	Up, Down, Next, Prev Button
}

// Tuner is a subsystem that steps the selected tunable from the controller.
// It only acts while enabled (teleop), and calls onChange after every
// adjustment so owners can reload their values.
type Tuner struct {
	tunables *Tunables
	buttons  Buttons
	enabled  func() bool
	onChange func()
}

func NewTuner(t *Tunables, buttons Buttons, enabled func() bool, onChange func()) *Tuner {
	return &Tuner{tunables: t, buttons: buttons, enabled: enabled, onChange: onChange}
}

func (t *Tuner) Name() string {
	return "tuner"
}

func (t *Tuner) RobotInit() {}

func (t *Tuner) RobotPeriodic() {
	if t.enabled != nil && !t.enabled() {
		return
	}
	if pressed(t.buttons.Next) {
		t.tunables.SelectNext()
	}
	if pressed(t.buttons.Prev) {
		t.tunables.SelectPrev()
	}
	delta := 0
	if pressed(t.buttons.Up) {
		delta++
	}
	if pressed(t.buttons.Down) {
		delta--
	}
	cur := t.tunables.Current()
	if delta == 0 || cur == nil {
		return
	}
	cur.Add(delta)
	if t.onChange != nil {
		t.onChange()
	}
}

func pressed(b Button) bool {
	return b != nil && b.Pressed()
}
