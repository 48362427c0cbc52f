package geometry

import "fmt"

// MalformedGeometryError reports a geometry description that cannot be
// turned into a valid detector layout: a tile record is missing a required
// key, a value cannot be parsed, or a tile's basis vectors do not round to
// an axis-aligned permutation.
//
// Module and Asic identify the offending tile. They are -1 when the error
// is detected before the tile identity is known.
type MalformedGeometryError struct {
	Module int
	Asic   int
	Reason string
}

func (e *MalformedGeometryError) Error() string {
	if e.Module < 0 || e.Asic < 0 {
		return fmt.Sprintf("malformed geometry: %s", e.Reason)
	}
	return fmt.Sprintf("malformed geometry for tile p%da%d: %s", e.Module, e.Asic, e.Reason)
}

// ShapeMismatchError reports raw detector data whose shape is not a whole
// number of (16, 512, 128) frames.
type ShapeMismatchError struct {
	Len int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("data length %d is not a positive multiple of %d (16 modules x 512 x 128 pixels)",
		e.Len, FrameSize)
}

// QuadIDError reports a quadrant id outside the valid range 1-4.
type QuadIDError int

func (e QuadIDError) Error() string {
	return fmt.Sprintf("quadrant id %d out of range [1, 4]", int(e))
}
