package geometry

import (
	"math"
	"testing"
)

// TestTransformApply verifies every transform variant against a
// hand-computed 2x3 buffer.
func TestTransformApply(t *testing.T) {
	// 2x3 source:
	//   1 2 3
	//   4 5 6
	src := []float64{1, 2, 3, 4, 5, 6}

	cases := []struct {
		tr       Transform
		h, w     int
		expected []float64
	}{
		{TransformIdentity, 2, 3, []float64{1, 2, 3, 4, 5, 6}},
		{TransformFlipRows, 2, 3, []float64{4, 5, 6, 1, 2, 3}},
		{TransformFlipCols, 2, 3, []float64{3, 2, 1, 6, 5, 4}},
		{TransformFlipBoth, 2, 3, []float64{6, 5, 4, 3, 2, 1}},
		// Transposed source:
		//   1 4
		//   2 5
		//   3 6
		{TransformTranspose, 3, 2, []float64{1, 4, 2, 5, 3, 6}},
		{TransformTransposeFlipRows, 3, 2, []float64{3, 6, 2, 5, 1, 4}},
		{TransformTransposeFlipCols, 3, 2, []float64{4, 1, 5, 2, 6, 3}},
		{TransformTransposeFlipBoth, 3, 2, []float64{6, 3, 5, 2, 4, 1}},
	}

	for _, tc := range cases {
		oh, ow := tc.tr.Dims(2, 3)
		if tc.h != oh || tc.w != ow {
			t.Errorf("%v: expected output dims (%d, %d), got (%d, %d)", tc.tr, tc.h, tc.w, oh, ow)
		}
		got := tc.tr.Apply(src, 2, 3)
		for i := range tc.expected {
			if got[i] != tc.expected[i] {
				t.Errorf("%v: output[%d] = %v, expected %v", tc.tr, i, got[i], tc.expected[i])
			}
		}
	}
}

// TestTransformApplyPure ensures Apply never touches its input.
func TestTransformApplyPure(t *testing.T) {
	src := []float64{1, 2, 3, 4, 5, 6}
	TransformTransposeFlipBoth.Apply(src, 2, 3)
	for i, v := range []float64{1, 2, 3, 4, 5, 6} {
		if src[i] != v {
			t.Fatalf("Apply modified its input at %d: %v", i, src[i])
		}
	}
}

// TestSnapOrientations checks the snapped transform, extent and corner
// shift for each supported tile orientation.
func TestSnapOrientations(t *testing.T) {
	cases := []struct {
		name      string
		ssVec     [3]float64
		fsVec     [3]float64
		transform Transform
		pixelDims [2]int
		cornerIdx [2]int // for a corner at (10, 20)
	}{
		// Fast scan along x: no transpose, dims (ss, fs) = (64, 128).
		{"ss+y fs+x", [3]float64{0, 1, 0}, [3]float64{1, 0, 0},
			TransformIdentity, [2]int{64, 128}, [2]int{20, 10}},
		{"ss-y fs+x", [3]float64{0, -1, 0}, [3]float64{1, 0, 0},
			TransformFlipRows, [2]int{64, 128}, [2]int{20 - 64, 10}},
		{"ss+y fs-x", [3]float64{0, 1, 0}, [3]float64{-1, 0, 0},
			TransformFlipCols, [2]int{64, 128}, [2]int{20, 10 - 128}},
		{"ss-y fs-x", [3]float64{0, -1, 0}, [3]float64{-1, 0, 0},
			TransformFlipBoth, [2]int{64, 128}, [2]int{20 - 64, 10 - 128}},
		// Fast scan along y: transpose, dims swap to (fs, ss) = (128, 64).
		{"ss+x fs+y", [3]float64{1, 0, 0}, [3]float64{0, 1, 0},
			TransformTranspose, [2]int{128, 64}, [2]int{20, 10}},
		{"ss+x fs-y", [3]float64{1, 0, 0}, [3]float64{0, -1, 0},
			TransformTransposeFlipRows, [2]int{128, 64}, [2]int{20 - 128, 10}},
		{"ss-x fs+y", [3]float64{-1, 0, 0}, [3]float64{0, 1, 0},
			TransformTransposeFlipCols, [2]int{128, 64}, [2]int{20, 10 - 64}},
		{"ss-x fs-y", [3]float64{-1, 0, 0}, [3]float64{0, -1, 0},
			TransformTransposeFlipBoth, [2]int{128, 64}, [2]int{20 - 128, 10 - 64}},
	}

	for _, tc := range cases {
		frag := NewTileFragment([3]float64{10, 20, 0}, tc.ssVec, tc.fsVec)
		g, err := frag.Snap()
		if err != nil {
			t.Errorf("%s: unexpected snap error: %v", tc.name, err)
			continue
		}
		if g.Transform != tc.transform {
			t.Errorf("%s: expected transform %v, got %v", tc.name, tc.transform, g.Transform)
		}
		if g.PixelDims != tc.pixelDims {
			t.Errorf("%s: expected pixel dims %v, got %v", tc.name, tc.pixelDims, g.PixelDims)
		}
		if g.CornerIdx != tc.cornerIdx {
			t.Errorf("%s: expected corner idx %v, got %v", tc.name, tc.cornerIdx, g.CornerIdx)
		}
	}
}

// TestSnapToleratesNumericalError verifies that nearly axis-aligned
// vectors snap cleanly.
func TestSnapToleratesNumericalError(t *testing.T) {
	frag := NewTileFragment(
		[3]float64{99.9999999, -0.0000001, 0},
		[3]float64{1.0000000002, -0.0000000001, 0},
		[3]float64{0.0000000001, -0.9999999998, 0},
	)
	g, err := frag.Snap()
	if err != nil {
		t.Fatalf("unexpected snap error: %v", err)
	}
	if g.SSVec != [2]int{0, 1} || g.FSVec != [2]int{-1, 0} {
		t.Errorf("expected snapped vectors (0,1)/(-1,0), got %v/%v", g.SSVec, g.FSVec)
	}
}

// TestSnapRejectsSkewedVectors ensures a tile at an unrepresentable angle
// fails with a MalformedGeometryError rather than snapping silently.
func TestSnapRejectsSkewedVectors(t *testing.T) {
	cases := [][2][3]float64{
		{{0.7, 0.7, 0}, {0.7, -0.7, 0}}, // 45 degrees: rounds to (1,1)
		{{2, 0, 0}, {0, 1, 0}},          // not unit length
		{{1, 0, 0}, {1, 0, 0}},          // both along x
		{{0, 0, 0}, {0, 1, 0}},          // zero vector
	}
	for i, vecs := range cases {
		frag := NewTileFragment([3]float64{0, 0, 0}, vecs[0], vecs[1])
		_, err := frag.Snap()
		if err == nil {
			t.Errorf("case %d: expected snap to fail for vectors %v, %v", i, vecs[0], vecs[1])
			continue
		}
		if _, ok := err.(*MalformedGeometryError); !ok {
			t.Errorf("case %d: expected *MalformedGeometryError, got %T", i, err)
		}
	}
}

// TestSnapRoundsHalfToEven pins the tie-breaking behavior existing
// geometry files were produced with.
func TestSnapRoundsHalfToEven(t *testing.T) {
	frag := NewTileFragment([3]float64{542.5, 475, 0}, [3]float64{-1, 0, 0}, [3]float64{0, 1, 0})
	g, err := frag.Snap()
	if err != nil {
		t.Fatalf("unexpected snap error: %v", err)
	}
	// x rounds to 542, then shifts by -64 for the reversed slow scan.
	if g.CornerIdx != [2]int{475, 542 - 64} {
		t.Errorf("expected corner idx (475, 478), got %v", g.CornerIdx)
	}
}

// TestFragmentCorners verifies the derived corner and centre points.
func TestFragmentCorners(t *testing.T) {
	frag := NewTileFragment([3]float64{0, 0, 0}, [3]float64{1, 0, 0}, [3]float64{0, -1, 0})

	corners := frag.Corners()
	expected := [4][2]float64{{0, 0}, {64, 0}, {64, -128}, {0, -128}}
	if corners != expected {
		t.Errorf("expected corners %v, got %v", expected, corners)
	}

	centre := frag.Centre()
	if centre != [2]float64{32, -64} {
		t.Errorf("expected centre (32, -64), got %v", centre)
	}
}

// TestRoundHalfEven spot-checks the rounding helper against the values
// that matter for geometry snapping.
func TestRoundHalfEven(t *testing.T) {
	cases := []struct {
		in   float64
		want int
	}{
		{542.5, 542},
		{543.5, 544},
		{-0.5, 0},
		{-1.5, -2},
		{0.49999, 0},
		{-525.0, -525},
	}
	for _, tc := range cases {
		if got := roundHalfEven(tc.in); got != tc.want {
			t.Errorf("roundHalfEven(%v) = %d, expected %d", tc.in, got, tc.want)
		}
	}
	if roundHalfEven(math.Copysign(0, -1)) != 0 {
		t.Errorf("roundHalfEven(-0) should be 0")
	}
}
