// Package synth generates synthetic raw detector frames, used by the demo
// binary and tests when no recorded run is at hand.
package synth

import (
	"math"

	"geoassembler/pkg/geometry"
)

// MarkerStack builds frames in which every tile is filled with a unique
// marker value, module*8+asic. Assembling such a stack shows each tile as
// a uniform rectangle, which makes placement mistakes visible at a glance.
func MarkerStack(frames int) *geometry.FrameStack {
	stack := geometry.NewZeroFrameStack(frames)
	tileSize := geometry.TileSSPixels * geometry.TileFSPixels
	for f := 0; f < frames; f++ {
		for m := 0; m < geometry.NumModules; m++ {
			mod := stack.Module(f, m)
			for a := 0; a < geometry.TilesPerModule; a++ {
				marker := float64(m*geometry.TilesPerModule + a)
				tile := mod[a*tileSize : (a+1)*tileSize]
				for i := range tile {
					tile[i] = marker
				}
			}
		}
	}
	return stack
}

// GradientStack builds frames with a smooth per-module intensity ramp
// along both readout axes, useful for eyeballing tile orientation in
// assembled previews: a flipped or transposed tile breaks the ramp.
func GradientStack(frames int) *geometry.FrameStack {
	stack := geometry.NewZeroFrameStack(frames)
	for f := 0; f < frames; f++ {
		for m := 0; m < geometry.NumModules; m++ {
			mod := stack.Module(f, m)
			for ss := 0; ss < geometry.ModuleSSPixels; ss++ {
				for fs := 0; fs < geometry.TileFSPixels; fs++ {
					mod[ss*geometry.TileFSPixels+fs] = float64(ss)/geometry.ModuleSSPixels +
						0.5*float64(fs)/geometry.TileFSPixels
				}
			}
		}
	}
	return stack
}

// RingStack builds frames whose assembled image shows concentric rings of
// the given radii (in pixels) around the detector centre, a stand-in for
// powder diffraction data during calibration rehearsals. Geometry must be
// the detector the frames will be assembled with.
func RingStack(det *geometry.Detector, frames int, radii []float64, ringWidth float64) *geometry.FrameStack {
	_, centre := det.CanvasSize()
	stack := geometry.NewZeroFrameStack(frames)
	tileSize := geometry.TileSSPixels * geometry.TileFSPixels

	for m := 0; m < geometry.NumModules; m++ {
		for a := 0; a < geometry.TilesPerModule; a++ {
			g := det.Grid(m, a)
			h, w := g.PixelDims[0], g.PixelDims[1]

			// Paint in canvas space, then map back through the
			// inverse of the tile transform into the raw buffer.
			placed := make([]float64, h*w)
			for y := 0; y < h; y++ {
				for x := 0; x < w; x++ {
					cy := float64(g.CornerIdx[0] + centre.Y + y)
					cx := float64(g.CornerIdx[1] + centre.X + x)
					r := math.Hypot(cy-float64(centre.Y), cx-float64(centre.X))
					for _, ring := range radii {
						if math.Abs(r-ring) < ringWidth {
							placed[y*w+x] = 1
							break
						}
					}
				}
			}
			raw := invertTransform(g.Transform, placed, h, w)

			for f := 0; f < frames; f++ {
				tile := stack.Module(f, m)[a*tileSize : (a+1)*tileSize]
				copy(tile, raw)
			}
		}
	}
	return stack
}

// invertTransform maps a buffer in placed (canvas) orientation back to raw
// readout order. Pure flips are involutions; transposed transforms need
// their flips undone on the placed buffer before transposing back.
func invertTransform(t geometry.Transform, placed []float64, h, w int) []float64 {
	if !t.Transposed() {
		return t.Apply(placed, h, w)
	}
	raw := make([]float64, len(placed))
	for y := 0; y < w; y++ {
		for x := 0; x < h; x++ {
			sy := x
			if t.FlipRows() {
				sy = h - 1 - x
			}
			sx := y
			if t.FlipCols() {
				sx = w - 1 - y
			}
			raw[y*h+x] = placed[sy*w+sx]
		}
	}
	return raw
}
