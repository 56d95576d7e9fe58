package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSubsystem struct {
	cmd  float64
	cone bool
}

func (f *fakeSubsystem) InitSendable(b *Builder) {
	b.AddDoubleProperty("02. second", func() float64 { return f.cmd * 2 })
	b.AddDoubleProperty("01. cmd", func() float64 { return f.cmd })
	b.AddBooleanProperty("03. cone", func() bool { return f.cone })
}

func TestPublishSamplesOnlyOnPublish(t *testing.T) {
	board := NewBoard()
	sub := &fakeSubsystem{cmd: 0.5}
	w := board.Tab("EndEffector").Add("end_effector", sub).WithSize(2, 2).WithPosition(8, 0)
	assert.Equal(t, 2, w.Width)
	assert.Equal(t, 8, w.X)

	values, cycle := board.Latest("EndEffector")
	assert.Empty(t, values)
	assert.Zero(t, cycle)

	board.Publish()
	sub.cmd = -1
	sub.cone = true

	values, cycle = board.Latest("EndEffector")
	assert.Equal(t, uint64(1), cycle)
	require.Len(t, values, 3)
	assert.Equal(t, "01. cmd", values[0].Key)
	assert.Equal(t, 0.5, values[0].Double)
	assert.Equal(t, 1.0, values[1].Double)
	assert.Equal(t, KindBoolean, values[2].Kind)
	assert.False(t, values[2].Boolean)

	board.Publish()
	values, _ = board.Latest("EndEffector")
	assert.Equal(t, -1.0, values[0].Double)
	assert.True(t, values[2].Boolean)
}

func TestTabsAreShared(t *testing.T) {
	board := NewBoard()
	assert.Same(t, board.Tab("Field"), board.Tab("Field"))
	board.Tab("EndEffector")
	assert.Equal(t, []string{"EndEffector", "Field"}, board.TabNames())
}
