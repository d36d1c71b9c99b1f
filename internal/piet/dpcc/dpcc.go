// Package dpcc defines the Direction Pointer / Codel Chooser types of the
// Piet state machine: clockwise rotation, chooser toggling, the
// perpendicular a chooser selects, and one step of the black/edge retry
// sequence. The grid walk itself (exit corners, white slides, retries) is
// driven by package compiler.
//
// Grounded on the teacher's cpu_ie64.go execution-loop shape (decode,
// dispatch, retry-until-trap), with the Piet 8-retry rule standing in for
// the IE64 interrupt/trap retry loop.
package dpcc

import "canvasvm/internal/piet/color"

// Direction is the Direction Pointer: which way the IP moves across the
// grid. It rotates clockwise in the order declared here.
type Direction int

const (
	Right Direction = iota
	Down
	Left
	Up
)

// Clockwise returns the direction reached by rotating d clockwise once.
func (d Direction) Clockwise() Direction { return (d + 1) % 4 }

// Delta returns the (dx, dy) unit step for d.
func (d Direction) Delta() (int, int) {
	switch d {
	case Right:
		return 1, 0
	case Down:
		return 0, 1
	case Left:
		return -1, 0
	case Up:
		return 0, -1
	}
	return 0, 0
}

// Perpendicular returns the direction 90 degrees from d: counter-clockwise
// for Left, clockwise for Right. This is the axis the Codel Chooser picks
// an extreme corner along.
func (d Direction) Perpendicular(cc Chooser) Direction {
	if cc == Left {
		return (d + 3) % 4 // 90 deg counter-clockwise
	}
	return (d + 1) % 4 // 90 deg clockwise
}

func (d Direction) String() string {
	return [4]string{"right", "down", "left", "up"}[d]
}

// Chooser is the Codel Chooser: which extreme of a block's exit edge is
// picked. It toggles between the two values.
type Chooser int

const (
	Left Chooser = iota
	Right
)

// Toggle returns the other Chooser value.
func (c Chooser) Toggle() Chooser { return 1 - c }

func (c Chooser) String() string {
	if c == Left {
		return "left"
	}
	return "right"
}

// State is a full (DP, CC) pair, the 8-valued state spec.md §3 describes.
type State struct {
	DP Direction
	CC Chooser
}

// Retry applies one step of the spec.md §4.4 rule-5 retry sequence: toggle
// CC on even attempts, rotate DP clockwise on odd attempts. attempt is
// 0-based; after 8 attempts (indices 0..7) the caller must halt.
func (s State) Retry(attempt int) State {
	if attempt%2 == 0 {
		return State{DP: s.DP, CC: s.CC.Toggle()}
	}
	return State{DP: s.DP.Clockwise(), CC: s.CC}
}

// MaxRetries is the number of (toggle, rotate) attempts the state machine
// makes before halting on a blocked exit (spec.md §4.4 rules 4 and 5).
const MaxRetries = 8

// Colorer is the minimal grid surface the state machine needs: classify a
// codel and check bounds. internal/piet/grid.Grid satisfies this.
type Colorer interface {
	InBounds(x, y int) bool
	At(x, y int) color.Color
}
