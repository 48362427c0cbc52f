package geometry

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// FallbackQuadPositions are the default quadrant anchor positions used when
// no geometry file is available as a starting point for calibration.
var FallbackQuadPositions = [NumQuadrants][2]float64{
	{-540, 610},
	{-540, -15},
	{540, -143},
	{540, 482},
}

// Default gaps, in pixels, of the idealized layout.
const (
	DefaultAsicGap  = 2.0
	DefaultPanelGap = 29.0
)

// quadModuleStart maps the 1-based quadrant id used by calibration to the
// first module of its contiguous 4-module block. Quadrants 3 and 4 map to
// the last and second-to-last blocks: the ordering mirrors how the physical
// quadrants are mounted and is baked into every geometry file in
// circulation, so it must never be "simplified" to a monotonic formula.
var quadModuleStart = map[int]int{1: 0, 2: 4, 3: 12, 4: 8}

// Per-quadrant orientation of the idealized layout. Opposing quadrant
// pairs are mounted rotated 180 degrees: quadrants 0 and 1 read out with
// slow scan along +x and fast scan along -y, quadrants 2 and 3 the
// opposite.
var (
	quadXOrientation = [NumQuadrants]float64{1, 1, -1, -1}
	quadYOrientation = [NumQuadrants]float64{-1, -1, 1, 1}
)

// Centre is a (y, x) canvas coordinate treated as the detector-frame
// origin for one assembly.
type Centre struct {
	Y, X int
}

// Detector is the aggregate geometry model: 16 modules of 8 tile
// placements each, kept both in continuous form (for serialization and
// calibration moves) and in snapped form (for assembly). The detector owns
// all of its fragments exclusively; they are never shared or referenced
// independently, so MoveQuad may mutate them in place.
type Detector struct {
	modules [NumModules][TilesPerModule]TileFragment
	snapped [NumModules][TilesPerModule]GridFragment
	quadPos [NumQuadrants][2]float64
}

// New builds a detector from a full set of tile placements, snapping every
// tile. quadPos is kept as round-trip metadata only. A tile that cannot be
// snapped makes the whole construction fail with a
// *MalformedGeometryError naming the tile; no partial detector is ever
// returned.
func New(modules [NumModules][TilesPerModule]TileFragment, quadPos [NumQuadrants][2]float64) (*Detector, error) {
	d := &Detector{modules: modules, quadPos: quadPos}
	for m := 0; m < NumModules; m++ {
		for a := 0; a < TilesPerModule; a++ {
			g, err := modules[m][a].Snap()
			if err != nil {
				if mg, ok := err.(*MalformedGeometryError); ok {
					return nil, &MalformedGeometryError{Module: m, Asic: a, Reason: mg.Reason}
				}
				return nil, err
			}
			d.snapped[m][a] = g
		}
	}
	return d, nil
}

// FromQuadPositions builds an idealized geometry from four quadrant anchor
// positions, assuming all 16 modules are flat and evenly spaced.
//
// Each anchor is the (x, y) position, in pixel units, of the first pixel of
// the quadrant's first module. Within a quadrant, modules are stacked
// downward with a pitch of 128+panelGap pixels and the 8 tiles of a module
// step sideways with a pitch of 64+asicGap pixels along the quadrant's x
// orientation.
func FromQuadPositions(quadPos [NumQuadrants][2]float64, asicGap, panelGap float64) (*Detector, error) {
	var modules [NumModules][TilesPerModule]TileFragment
	for p := 0; p < NumModules; p++ {
		quad := p / 4
		xOrient := quadXOrientation[quad]
		yOrient := quadYOrientation[quad]
		pInQuad := p % 4

		cornerY := quadPos[quad][1] - float64(pInQuad)*(TileFSPixels+panelGap)
		for a := 0; a < TilesPerModule; a++ {
			cornerX := quadPos[quad][0] + xOrient*(TileSSPixels+asicGap)*float64(a)
			modules[p][a] = NewTileFragment(
				[3]float64{cornerX, cornerY, 0},
				[3]float64{xOrient, 0, 0},
				[3]float64{0, yOrient, 0},
			)
		}
	}
	return New(modules, quadPos)
}

// Fragment returns the continuous placement of tile (module, asic).
func (d *Detector) Fragment(module, asic int) TileFragment {
	return d.modules[module][asic]
}

// Grid returns the snapped placement of tile (module, asic).
func (d *Detector) Grid(module, asic int) GridFragment {
	return d.snapped[module][asic]
}

// QuadPos returns the quadrant anchor positions the detector was built
// from. For parsed geometries this is reconstructed from the first tile of
// each quadrant's first module.
func (d *Detector) QuadPos() [NumQuadrants][2]float64 {
	return d.quadPos
}

// CanvasSize computes the minimal (height, width) bounding box of all
// snapped fragments, and the centre such that the extreme fragment sits at
// index 0 on each axis.
func (d *Detector) CanvasSize() ([2]int, Centre) {
	minY, minX := int(^uint(0)>>1), int(^uint(0)>>1)
	maxY, maxX := -minY, -minX
	for m := 0; m < NumModules; m++ {
		for a := 0; a < TilesPerModule; a++ {
			g := &d.snapped[m][a]
			y0, x0 := g.CornerIdx[0], g.CornerIdx[1]
			y1, x1 := y0+g.PixelDims[0], x0+g.PixelDims[1]
			if y0 < minY {
				minY = y0
			}
			if x0 < minX {
				minX = x0
			}
			if y1 > maxY {
				maxY = y1
			}
			if x1 > maxX {
				maxX = x1
			}
		}
	}
	return [2]int{maxY - minY, maxX - minX}, Centre{Y: -minY, X: -minX}
}

// MoveQuad shifts a whole quadrant by an integer (y, x) delta, in pixels.
// It is the sole mutator of a constructed geometry: the corner position and
// corner index of all 32 fragments in the quadrant's 4-module block are
// adjusted in place, vectors and pixel extents unchanged. There is no undo
// history; callers track cumulative offsets themselves.
func (d *Detector) MoveQuad(quad int, delta [2]int) error {
	start, ok := quadModuleStart[quad]
	if !ok {
		return QuadIDError(quad)
	}
	dy, dx := delta[0], delta[1]
	for m := start; m < start+4; m++ {
		for a := 0; a < TilesPerModule; a++ {
			d.modules[m][a].CornerPos[0] += float64(dx)
			d.modules[m][a].CornerPos[1] += float64(dy)
			d.snapped[m][a].CornerIdx[0] += dy
			d.snapped[m][a].CornerIdx[1] += dx
		}
	}
	return nil
}

// QuadCorners returns the bounding rectangle of a quadrant's fragments in
// canvas coordinates: the (x, y) top-left corner plus width and height.
// The rectangle carries a 2-pixel margin on each side so that an overlay
// drawn from it visually clears the tile edges. It is a UI query only and
// plays no part in assembly.
func (d *Detector) QuadCorners(quad int, centre Centre) (corner [2]int, width, height int, err error) {
	start, ok := quadModuleStart[quad]
	if !ok {
		return [2]int{}, 0, 0, QuadIDError(quad)
	}
	minY, minX := int(^uint(0)>>1), int(^uint(0)>>1)
	maxY, maxX := -minY, -minX
	w := 0
	for m := start; m < start+4; m++ {
		for a := 0; a < TilesPerModule; a++ {
			g := &d.snapped[m][a]
			y := g.CornerIdx[0] + centre.Y
			x := g.CornerIdx[1] + centre.X
			h := g.PixelDims[0]
			w = g.PixelDims[1]
			if y < minY {
				minY = y
			}
			if y+h > maxY {
				maxY = y + h
			}
			// The x extent tracks corner positions only; the final
			// tile width is added below. Kept as-is for bit-for-bit
			// compatibility with overlays built on the old behavior.
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
		}
	}
	dy := maxY - minY
	dx := maxX - minX
	return [2]int{minX - 2, minY - 2}, dx + w + 4, dy + 4, nil
}

// QuadPositions derives a per-quadrant anchor summary from the current
// continuous corner positions: quadrants 1 and 2 report (min x, max y) over
// their tiles, quadrants 3 and 4 (max x, max y). This is the summary
// written next to saved geometries, not the construction input.
func (d *Detector) QuadPositions() [NumQuadrants][2]float64 {
	var out [NumQuadrants][2]float64
	for q := 0; q < NumQuadrants; q++ {
		xs := make([]float64, 0, 4*TilesPerModule)
		ys := make([]float64, 0, 4*TilesPerModule)
		for m := q * 4; m < (q+1)*4; m++ {
			for a := 0; a < TilesPerModule; a++ {
				xs = append(xs, d.modules[m][a].CornerPos[0])
				ys = append(ys, d.modules[m][a].CornerPos[1])
			}
		}
		if q < 2 {
			out[q] = [2]float64{floats.Min(xs), floats.Max(ys)}
		} else {
			out[q] = [2]float64{floats.Max(xs), floats.Max(ys)}
		}
	}
	return out
}

// String summarizes the geometry for logging.
func (d *Detector) String() string {
	size, centre := d.CanvasSize()
	return fmt.Sprintf("Detector{16x8 tiles, canvas %dx%d, centre (%d, %d)}",
		size[0], size[1], centre.Y, centre.X)
}
