// Package calibration provides the bookkeeping side of interactive
// geometry calibration: stepping quadrants around with direction keys,
// tracking the cumulative offsets (the geometry itself keeps no history),
// assembling frames with the current geometry, and saving the result.
// Everything visual (plotting, ring overlays, widgets) lives outside this
// package and drives it through these calls.
package calibration

import (
	"fmt"

	"geoassembler/pkg/crystfel"
	"geoassembler/pkg/geometry"
)

// Direction is one of the four arrow-key steps a quadrant can be nudged in.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// directionDelta translates a direction into a (y, x) canvas delta of one
// pixel. Up decreases the row index.
var directionDelta = map[Direction][2]int{
	Up:    {-1, 0},
	Down:  {1, 0},
	Left:  {0, -1},
	Right: {0, 1},
}

// ParseDirection maps the single-letter key form (u, d, l, r) to a
// Direction.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "u":
		return Up, nil
	case "d":
		return Down, nil
	case "l":
		return Left, nil
	case "r":
		return Right, nil
	default:
		return 0, fmt.Errorf("unknown direction %q (want u, d, l or r)", s)
	}
}

func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// HeaderText renders the standard experiment header carried at the top of
// saved geometry files: data and mask locations, mask interpretation
// values, gain and the two physical bookkeeping values. The text is opaque
// to the geometry core.
func HeaderText(clen, photonEnergyEV float64) string {
	return fmt.Sprintf(`data = /entry_1/data_1/data
;mask = /entry_1/data_1/mask

mask_good = 0x0
mask_bad = 0xffff

adu_per_eV = 0.0075
clen = %g  ; Camera length, aka detector distance
photon_energy = %g ;`, clen, photonEnergyEV)
}

// Session wraps a detector geometry for one calibration run. It owns the
// geometry for its lifetime; the geometry must not be mutated elsewhere
// while the session is live. Single-threaded use only, like the geometry
// itself.
type Session struct {
	det     *geometry.Detector
	header  string
	step    int
	offsets [geometry.NumQuadrants][2]int
	centre  geometry.Centre
	moves   int
}

// NewSession starts a calibration session over det. header is the
// experiment header written in front of saved geometries.
func NewSession(det *geometry.Detector, header string) *Session {
	s := &Session{det: det, header: header, step: 1}
	_, s.centre = det.CanvasSize()
	return s
}

// Geometry returns the session's detector.
func (s *Session) Geometry() *geometry.Detector { return s.det }

// SetStep sets the pixel step used by Nudge. Steps below 1 are clamped
// to 1.
func (s *Session) SetStep(px int) {
	if px < 1 {
		px = 1
	}
	s.step = px
}

// Nudge moves a quadrant one step in the given direction.
func (s *Session) Nudge(quad int, dir Direction) error {
	d, ok := directionDelta[dir]
	if !ok {
		return fmt.Errorf("unknown direction %v", dir)
	}
	return s.MoveQuad(quad, [2]int{d[0] * s.step, d[1] * s.step})
}

// MoveQuad shifts a quadrant by an explicit (y, x) delta and records it in
// the session's cumulative offsets.
func (s *Session) MoveQuad(quad int, delta [2]int) error {
	if err := s.det.MoveQuad(quad, delta); err != nil {
		return err
	}
	s.offsets[quad-1][0] += delta[0]
	s.offsets[quad-1][1] += delta[1]
	s.moves++
	return nil
}

// Offset returns the cumulative (y, x) shift applied to a quadrant over
// the session.
func (s *Session) Offset(quad int) ([2]int, error) {
	if quad < 1 || quad > geometry.NumQuadrants {
		return [2]int{}, geometry.QuadIDError(quad)
	}
	return s.offsets[quad-1], nil
}

// Moves returns the number of quadrant moves applied in this session.
func (s *Session) Moves() int { return s.moves }

// Assemble positions the raw frames with the session's current geometry
// and remembers the centre for subsequent outline queries.
func (s *Session) Assemble(stack *geometry.FrameStack) (*geometry.Assembled, geometry.Centre, error) {
	out, centre, err := s.det.PositionAllModules(stack)
	if err != nil {
		return nil, geometry.Centre{}, err
	}
	s.centre = centre
	return out, centre, nil
}

// AssembleWithMargin assembles onto a canvas enlarged by margin pixels on
// every side of the detector's bounding box, leaving room around the image
// for overlays. The centre moves to the canvas midpoint.
func (s *Session) AssembleWithMargin(stack *geometry.FrameStack, margin int) (*geometry.Assembled, geometry.Centre, error) {
	size, _ := s.det.CanvasSize()
	out, centre, err := s.det.PositionAllModulesOnCanvas(stack,
		size[0]+2*margin, size[1]+2*margin)
	if err != nil {
		return nil, geometry.Centre{}, err
	}
	s.centre = centre
	return out, centre, nil
}

// QuadOutline returns the overlay rectangle of a quadrant in the canvas
// coordinates of the most recent assembly (or of the initial geometry if
// nothing has been assembled yet).
func (s *Session) QuadOutline(quad int) (corner [2]int, width, height int, err error) {
	return s.det.QuadCorners(quad, s.centre)
}

// Save writes the session's current geometry, with its header, to path.
func (s *Session) Save(path string) error {
	return crystfel.WriteFile(path, s.det, s.header)
}
