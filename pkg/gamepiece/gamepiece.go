// Package gamepiece tracks which kind of game piece the drivers are going
// after.  Cones and cubes are handled differently by the intake, so several
// subsystems consult the selection.
package gamepiece

import (
	"go.viam.com/rdk/logging"

	"github.com/Auyushg/Robonauts-2023/pkg/dashboard"
	"github.com/Auyushg/Robonauts-2023/pkg/scripting"
)

type Piece int

const (
	Cube Piece = iota
	Cone
)

func (p Piece) String() string {
	if p == Cone {
		return "cone"
	}
	return "cube"
}

type button interface {
	Pressed() bool
}

type Selector struct {
	logger logging.Logger
	piece  Piece

	coneBtn, cubeBtn, toggleBtn button
}

// New returns a selector driven by the given buttons; any of them may be nil.
func New(logger logging.Logger, cone, cube, toggle button) *Selector {
	return &Selector{
		logger:    logger,
		piece:     Cone,
		coneBtn:   cone,
		cubeBtn:   cube,
		toggleBtn: toggle,
	}
}

func (s *Selector) Name() string {
	return "GamePiece"
}

func (s *Selector) IsCone() bool {
	return s.piece == Cone
}

func (s *Selector) Piece() Piece {
	return s.piece
}

func (s *Selector) Set(p Piece) {
	if p != s.piece {
		s.logger.Infof("Game piece: %v", p)
	}
	s.piece = p
}

func (s *Selector) Toggle() {
	if s.piece == Cone {
		s.Set(Cube)
	} else {
		s.Set(Cone)
	}
}

func (s *Selector) RobotInit() {}

func (s *Selector) RobotPeriodic() {
	if s.coneBtn != nil && s.coneBtn.Pressed() {
		s.Set(Cone)
	}
	if s.cubeBtn != nil && s.cubeBtn.Pressed() {
		s.Set(Cube)
	}
	if s.toggleBtn != nil && s.toggleBtn.Pressed() {
		s.Toggle()
	}
}

func (s *Selector) InitSendable(b *dashboard.Builder) {
	b.AddBooleanProperty("cone", s.IsCone)
}

// ScriptTable lets autons pick the piece; isCone returns 1 or 0.
func (s *Selector) ScriptTable() scripting.Table {
	return scripting.Table{
		"setCone": scripting.Action(func() { s.Set(Cone) }),
		"setCube": scripting.Action(func() { s.Set(Cube) }),
		"isCone": scripting.Getter(func() float64 {
			if s.IsCone() {
				return 1
			}
			return 0
		}),
	}
}
