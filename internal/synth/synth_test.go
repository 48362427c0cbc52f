package synth

import (
	"math"
	"testing"

	"geoassembler/pkg/geometry"
)

var testQuadPositions = [geometry.NumQuadrants][2]float64{
	{-525, 625},
	{-550, -10},
	{520, -160},
	{542.5, 475},
}

func testDetector(t *testing.T) *geometry.Detector {
	t.Helper()
	det, err := geometry.FromQuadPositions(testQuadPositions,
		geometry.DefaultAsicGap, geometry.DefaultPanelGap)
	if err != nil {
		t.Fatalf("FromQuadPositions failed: %v", err)
	}
	return det
}

// TestMarkerStack checks every tile carries its module*8+asic marker.
func TestMarkerStack(t *testing.T) {
	stack := MarkerStack(2)
	if stack.Frames() != 2 {
		t.Fatalf("got %d frames, expected 2", stack.Frames())
	}
	tileSize := geometry.TileSSPixels * geometry.TileFSPixels
	for f := 0; f < 2; f++ {
		for m := 0; m < geometry.NumModules; m++ {
			mod := stack.Module(f, m)
			for a := 0; a < geometry.TilesPerModule; a++ {
				marker := float64(m*geometry.TilesPerModule + a)
				if mod[a*tileSize] != marker || mod[(a+1)*tileSize-1] != marker {
					t.Errorf("frame %d p%da%d: marker %v and %v, expected %v",
						f, m, a, mod[a*tileSize], mod[(a+1)*tileSize-1], marker)
				}
			}
		}
	}
}

// TestGradientStack checks the ramp formula at known raw positions.
func TestGradientStack(t *testing.T) {
	stack := GradientStack(1)
	mod := stack.Module(0, 3)
	if mod[0] != 0 {
		t.Errorf("ramp origin = %v, expected 0", mod[0])
	}
	want := 100.0/geometry.ModuleSSPixels + 0.5*7.0/geometry.TileFSPixels
	if got := mod[100*geometry.TileFSPixels+7]; got != want {
		t.Errorf("ramp at (100, 7) = %v, expected %v", got, want)
	}
}

// TestRingStackRoundTrip assembles a ring stack and checks the rings come
// out where they were painted: every covered canvas pixel must match the
// ring indicator computed in canvas space. This exercises the inverse tile
// transform for all four quadrant orientations at once.
func TestRingStackRoundTrip(t *testing.T) {
	det := testDetector(t)
	radii := []float64{150, 300, 450}
	const ringWidth = 2.5

	stack := RingStack(det, 1, radii, ringWidth)
	assembled, centre, err := det.PositionAllModules(stack)
	if err != nil {
		t.Fatalf("PositionAllModules failed: %v", err)
	}

	h, w := assembled.Dims()
	onRing := func(y, x int) float64 {
		r := math.Hypot(float64(y-centre.Y), float64(x-centre.X))
		for _, ring := range radii {
			if math.Abs(r-ring) < ringWidth {
				return 1
			}
		}
		return 0
	}

	rings := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			got := assembled.At(0, y, x)
			if math.IsNaN(got) {
				continue
			}
			if want := onRing(y, x); got != want {
				t.Fatalf("pixel (%d, %d) = %v, expected %v", y, x, got, want)
			}
			if got == 1 {
				rings++
			}
		}
	}
	if rings == 0 {
		t.Fatal("no ring pixels landed on the detector")
	}
}
