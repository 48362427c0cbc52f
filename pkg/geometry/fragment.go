// Package geometry models the layout of a segmented X-ray area detector
// built from 16 modules of 8 asic tiles each, and assembles raw per-module
// pixel buffers into a single detector image according to that layout.
//
// Tile placements exist in two forms: TileFragment holds the continuous
// (x, y) placement used for construction, serialization and calibration
// moves, while GridFragment is the grid-snapped form used for direct array
// indexing during assembly. Snap converts the former into the latter.
package geometry

import (
	"fmt"
	"math"
)

// Fixed layout of the modeled detector. Every geometry handled by this
// package has exactly 16 modules of 8 tiles, and every tile is a
// 64 x 128 (slow-scan x fast-scan) pixel block.
const (
	NumModules     = 16
	TilesPerModule = 8
	NumQuadrants   = 4

	// TileSSPixels and TileFSPixels are the tile extent along the
	// slow-scan and fast-scan readout axes.
	TileSSPixels = 64
	TileFSPixels = 128

	// ModuleSSPixels is the slow-scan extent of a full module buffer:
	// the 8 tiles arrive pre-concatenated along the slow-scan axis.
	ModuleSSPixels = TilesPerModule * TileSSPixels

	// FrameSize is the number of pixels in one raw detector frame.
	FrameSize = NumModules * ModuleSSPixels * TileFSPixels
)

// Transform describes how a raw tile buffer must be reordered to match a
// snapped fragment's orientation on the canvas. It is a value type chosen
// once at snap time; fragments stay comparable and serializable, with no
// captured closures.
type Transform uint8

const (
	TransformIdentity Transform = iota
	TransformFlipRows
	TransformFlipCols
	TransformFlipBoth
	TransformTranspose
	TransformTransposeFlipRows
	TransformTransposeFlipCols
	TransformTransposeFlipBoth
)

const (
	flipRowsBit  Transform = 1
	flipColsBit  Transform = 2
	transposeBit Transform = 4
)

func makeTransform(transpose, flipRows, flipCols bool) Transform {
	t := TransformIdentity
	if flipRows {
		t |= flipRowsBit
	}
	if flipCols {
		t |= flipColsBit
	}
	if transpose {
		t |= transposeBit
	}
	return t
}

// Transposed reports whether the transform swaps the two buffer axes.
func (t Transform) Transposed() bool { return t&transposeBit != 0 }

// FlipRows reports whether the (possibly transposed) buffer is reversed
// along its row axis.
func (t Transform) FlipRows() bool { return t&flipRowsBit != 0 }

// FlipCols reports whether the (possibly transposed) buffer is reversed
// along its column axis.
func (t Transform) FlipCols() bool { return t&flipColsBit != 0 }

func (t Transform) String() string {
	switch t {
	case TransformIdentity:
		return "Identity"
	case TransformFlipRows:
		return "FlipRows"
	case TransformFlipCols:
		return "FlipCols"
	case TransformFlipBoth:
		return "FlipBoth"
	case TransformTranspose:
		return "Transpose"
	case TransformTransposeFlipRows:
		return "TransposeFlipRows"
	case TransformTransposeFlipCols:
		return "TransposeFlipCols"
	case TransformTransposeFlipBoth:
		return "TransposeFlipBoth"
	default:
		return fmt.Sprintf("Transform(%d)", uint8(t))
	}
}

// Dims returns the output (height, width) for a source buffer of the given
// dimensions.
func (t Transform) Dims(h, w int) (int, int) {
	if t.Transposed() {
		return w, h
	}
	return h, w
}

// Apply reorders a raw (h, w) row-major tile buffer into the transform's
// orientation. The source is never modified; the result is a fresh buffer
// of the same length with Dims(h, w) shape.
func (t Transform) Apply(src []float64, h, w int) []float64 {
	oh, ow := t.Dims(h, w)
	dst := make([]float64, len(src))
	for i := 0; i < oh; i++ {
		si := i
		if t.FlipRows() {
			si = oh - 1 - i
		}
		for j := 0; j < ow; j++ {
			sj := j
			if t.FlipCols() {
				sj = ow - 1 - j
			}
			if t.Transposed() {
				// Transposed: output row/col index the source col/row.
				dst[i*ow+j] = src[sj*w+si]
			} else {
				dst[i*ow+j] = src[si*w+sj]
			}
		}
	}
	return dst
}

// TileFragment is the continuous-coordinate placement of one asic tile.
// CornerPos is the (x, y, z) position of the tile's first pixel in pixel
// units; SSVec and FSVec are unit vectors giving the spatial direction of
// the slow-scan and fast-scan readout axes. The two vectors are expected to
// be orthogonal and, for any detector this package models, axis-aligned to
// within numerical error.
type TileFragment struct {
	CornerPos [3]float64
	SSVec     [3]float64
	FSVec     [3]float64
	SSPixels  int
	FSPixels  int
}

// NewTileFragment creates a tile placement with the fixed 64 x 128 extent.
func NewTileFragment(cornerPos, ssVec, fsVec [3]float64) TileFragment {
	return TileFragment{
		CornerPos: cornerPos,
		SSVec:     ssVec,
		FSVec:     fsVec,
		SSPixels:  TileSSPixels,
		FSPixels:  TileFSPixels,
	}
}

// Corners returns the four (x, y) corner points of the tile in continuous
// coordinates, starting at CornerPos and walking the ss then fs extents.
func (f TileFragment) Corners() [4][2]float64 {
	ssx := f.SSVec[0] * float64(f.SSPixels)
	ssy := f.SSVec[1] * float64(f.SSPixels)
	fsx := f.FSVec[0] * float64(f.FSPixels)
	fsy := f.FSVec[1] * float64(f.FSPixels)
	x, y := f.CornerPos[0], f.CornerPos[1]
	return [4][2]float64{
		{x, y},
		{x + ssx, y + ssy},
		{x + ssx + fsx, y + ssy + fsy},
		{x + fsx, y + fsy},
	}
}

// Centre returns the (x, y) centre point of the tile.
func (f TileFragment) Centre() [2]float64 {
	return [2]float64{
		f.CornerPos[0] + 0.5*(f.SSVec[0]*float64(f.SSPixels)+f.FSVec[0]*float64(f.FSPixels)),
		f.CornerPos[1] + 0.5*(f.SSVec[1]*float64(f.SSPixels)+f.FSVec[1]*float64(f.FSPixels)),
	}
}

// GridFragment is a tile placement snapped to the assembly grid.
// CornerIdx is the (y, x) canvas index of the tile's top-left pixel,
// already adjusted for flip-induced corner shifts; SSVec and FSVec are the
// rounded readout axis vectors in (y, x) order, each one of the four axis
// unit vectors; PixelDims is the (height, width) extent after any
// transpose.
type GridFragment struct {
	CornerIdx [2]int
	SSVec     [2]int
	FSVec     [2]int
	PixelDims [2]int
	Transform Transform
}

// roundHalfEven rounds to the nearest integer, ties to even. Geometry files
// in circulation were produced with this rounding (a corner at 542.5 snaps
// to 542), so plain round-half-away would shift some tiles by one pixel.
func roundHalfEven(v float64) int {
	return int(math.RoundToEven(v))
}

// Snap converts the continuous placement into a grid-aligned fragment.
//
// The corner position and both basis vectors are rounded to integers and
// the (x, y) axis order is swapped to the (row, col) order used for canvas
// indexing. The rounded basis vectors must form a permutation of the
// standard basis up to sign; anything else means the tile sits at an angle
// the grid model cannot represent, and Snap fails with a
// *MalformedGeometryError.
func (f TileFragment) Snap() (GridFragment, error) {
	// Swap (x, y) to (y, x) while rounding.
	corner := [2]int{roundHalfEven(f.CornerPos[1]), roundHalfEven(f.CornerPos[0])}
	ss := [2]int{roundHalfEven(f.SSVec[1]), roundHalfEven(f.SSVec[0])}
	fs := [2]int{roundHalfEven(f.FSVec[1]), roundHalfEven(f.FSVec[0])}

	if !validBasisPair(ss, fs) {
		return GridFragment{}, &MalformedGeometryError{
			Module: -1,
			Asic:   -1,
			Reason: fmt.Sprintf("ss/fs vectors (%v, %v) and (%v, %v) do not round to an axis-aligned basis",
				f.SSVec[0], f.SSVec[1], f.FSVec[0], f.FSVec[1]),
		}
	}

	g := GridFragment{SSVec: ss, FSVec: fs}
	if fs[0] == 0 {
		// Fast scan runs along the canvas x axis: the buffer keeps its
		// axes and is only flipped.
		ssOrder, fsOrder := ss[0], fs[1]
		g.Transform = makeTransform(false, ssOrder < 0, fsOrder < 0)
		g.PixelDims = [2]int{f.SSPixels, f.FSPixels}
		g.CornerIdx = [2]int{
			corner[0] + min(ssOrder, 0)*f.SSPixels,
			corner[1] + min(fsOrder, 0)*f.FSPixels,
		}
	} else {
		// Fast scan runs along the canvas y axis: transpose first, then
		// flip the transposed buffer.
		fsOrder, ssOrder := fs[0], ss[1]
		g.Transform = makeTransform(true, fsOrder < 0, ssOrder < 0)
		g.PixelDims = [2]int{f.FSPixels, f.SSPixels}
		g.CornerIdx = [2]int{
			corner[0] + min(fsOrder, 0)*f.FSPixels,
			corner[1] + min(ssOrder, 0)*f.SSPixels,
		}
	}
	return g, nil
}

// validBasisPair reports whether the two rounded vectors are a permutation
// of the standard basis up to sign: one of them purely y, the other purely
// x, both unit length.
func validBasisPair(a, b [2]int) bool {
	absUnit := func(v [2]int) ([2]int, bool) {
		ay, ax := abs(v[0]), abs(v[1])
		if ay+ax != 1 || (ay != 0 && ay != 1) || (ax != 0 && ax != 1) {
			return [2]int{}, false
		}
		return [2]int{ay, ax}, true
	}
	ua, oka := absUnit(a)
	ub, okb := absUnit(b)
	if !oka || !okb {
		return false
	}
	return ua != ub
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
