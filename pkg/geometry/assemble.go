package geometry

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// FrameStack holds raw detector data: one or more frames, each a block of
// 16 module buffers of 512 x 128 pixels, flattened row-major. It is the
// Go rendition of an array with trailing shape (16, 512, 128) and any
// number of leading repetition axes.
type FrameStack struct {
	data   []float64
	frames int
}

// NewFrameStack wraps raw data as a frame stack. The data length must be a
// positive whole number of (16, 512, 128) frames; anything else fails with
// a *ShapeMismatchError. The data is referenced, not copied.
func NewFrameStack(data []float64) (*FrameStack, error) {
	if len(data) == 0 || len(data)%FrameSize != 0 {
		return nil, &ShapeMismatchError{Len: len(data)}
	}
	return &FrameStack{data: data, frames: len(data) / FrameSize}, nil
}

// NewZeroFrameStack allocates a stack of all-zero frames.
func NewZeroFrameStack(frames int) *FrameStack {
	return &FrameStack{data: make([]float64, frames*FrameSize), frames: frames}
}

// Frames returns the number of frames in the stack.
func (s *FrameStack) Frames() int { return s.frames }

// Data returns the underlying flat buffer.
func (s *FrameStack) Data() []float64 { return s.data }

// Module returns the 512 x 128 raw buffer of one module in one frame, as a
// view into the stack.
func (s *FrameStack) Module(frame, module int) []float64 {
	size := ModuleSSPixels * TileFSPixels
	off := frame*FrameSize + module*size
	return s.data[off : off+size]
}

// Assembled is the output of assembly: one canvas per input frame, flat
// row-major, with NaN marking every pixel not covered by a tile.
type Assembled struct {
	data   []float64
	frames int
	height int
	width  int
}

// Frames returns the number of assembled canvases.
func (a *Assembled) Frames() int { return a.frames }

// Dims returns the canvas (height, width).
func (a *Assembled) Dims() (int, int) { return a.height, a.width }

// Data returns the underlying flat buffer.
func (a *Assembled) Data() []float64 { return a.data }

// At returns the pixel at (y, x) of one frame's canvas.
func (a *Assembled) At(frame, y, x int) float64 {
	return a.data[frame*a.height*a.width+y*a.width+x]
}

// Frame returns one canvas as a gonum dense matrix backed by the assembled
// buffer (no copy).
func (a *Assembled) Frame(frame int) *mat.Dense {
	n := a.height * a.width
	return mat.NewDense(a.height, a.width, a.data[frame*n:(frame+1)*n])
}

// FrameStats summarizes one canvas, skipping the NaN sentinel: the number
// of covered pixels and their min, max and mean. Min, max and mean are NaN
// when no pixel is covered.
func (a *Assembled) FrameStats(frame int) (valid int, minV, maxV, mean float64) {
	n := a.height * a.width
	vals := make([]float64, 0, n)
	for _, v := range a.data[frame*n : (frame+1)*n] {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return 0, math.NaN(), math.NaN(), math.NaN()
	}
	return len(vals), floats.Min(vals), floats.Max(vals), stat.Mean(vals, nil)
}

// PositionAllModules assembles raw frames into detector images using the
// minimal canvas: the bounding box of all fragments, with the centre
// placed so every fragment has non-negative indices.
//
// The function is pure: neither the stack nor the geometry is modified,
// and identical geometry and data produce bit-identical output. Tiles do
// not overlap by construction of any valid geometry; overlap is not
// guarded against.
func (d *Detector) PositionAllModules(stack *FrameStack) (*Assembled, Centre, error) {
	size, centre := d.CanvasSize()
	return d.positionOnto(stack, size, centre)
}

// PositionAllModulesOnCanvas assembles onto an explicit (height, width)
// canvas, with the centre at the canvas midpoint. Fragments falling
// outside the canvas are an error in the supplied size, not a supported
// mode, and will panic on the slice bounds.
func (d *Detector) PositionAllModulesOnCanvas(stack *FrameStack, height, width int) (*Assembled, Centre, error) {
	return d.positionOnto(stack, [2]int{height, width}, Centre{Y: height / 2, X: width / 2})
}

func (d *Detector) positionOnto(stack *FrameStack, size [2]int, centre Centre) (*Assembled, Centre, error) {
	if stack == nil {
		return nil, Centre{}, &ShapeMismatchError{Len: 0}
	}
	h, w := size[0], size[1]
	out := &Assembled{
		data:   make([]float64, stack.frames*h*w),
		frames: stack.frames,
		height: h,
		width:  w,
	}
	for i := range out.data {
		out.data[i] = math.NaN()
	}

	tileSize := TileSSPixels * TileFSPixels
	for f := 0; f < stack.frames; f++ {
		canvas := out.data[f*h*w : (f+1)*h*w]
		for m := 0; m < NumModules; m++ {
			modData := stack.Module(f, m)
			for a := 0; a < TilesPerModule; a++ {
				// Tiles are pre-concatenated along the slow-scan
				// axis: asic a owns rows [a*64, (a+1)*64).
				tile := modData[a*tileSize : (a+1)*tileSize]
				g := &d.snapped[m][a]
				placed := g.Transform.Apply(tile, TileSSPixels, TileFSPixels)
				y0 := g.CornerIdx[0] + centre.Y
				x0 := g.CornerIdx[1] + centre.X
				th, tw := g.PixelDims[0], g.PixelDims[1]
				for ty := 0; ty < th; ty++ {
					copy(canvas[(y0+ty)*w+x0:(y0+ty)*w+x0+tw], placed[ty*tw:(ty+1)*tw])
				}
			}
		}
	}
	return out, centre, nil
}
