package asm

import "fmt"

const (
	// GridWidth is the side of the square exit-pupil sampling grid.
	GridWidth = 512
	// GridSize is the number of samples of a full-grid map.
	GridSize = GridWidth * GridWidth
	// NSegment is the number of ASM segments.
	NSegment = 7
	// ReferenceNMode is the number of Karhunen-Loeve modes per segment in the
	// reference data.
	ReferenceNMode = 500
)

// Basis is the modal basis material of one segment as it is stored at rest.
//
// Modes holds NMode consecutive columns of n_point samples each (a column-major
// n_point x NMode matrix) and Mask selects, in grid order, the n_point grid
// samples the columns are defined on.
type Basis struct {
	NMode int
	Modes []float64
	Mask  []bool
}

// NPoint returns the number of samples per mode.
func (b Basis) NPoint() int {
	if b.NMode <= 0 {
		return 0
	}
	return len(b.Modes) / b.NMode
}

// NInMask returns the number of true entries of the mask.
func (b Basis) NInMask() int {
	n := 0
	for _, m := range b.Mask {
		if m {
			n++
		}
	}
	return n
}

// Validate checks that the modes and the mask describe the same footprint.
func (b Basis) Validate() error {
	if b.NMode <= 0 {
		return fmt.Errorf("n_mode %d: %w", b.NMode, ErrDataIntegrity)
	}
	if len(b.Modes)%b.NMode != 0 {
		return fmt.Errorf("%d mode samples is not a multiple of n_mode %d: %w", len(b.Modes), b.NMode, ErrDataIntegrity)
	}
	if len(b.Modes) == 0 {
		return fmt.Errorf("empty mode matrix: %w", ErrDataIntegrity)
	}
	if n, m := b.NPoint(), b.NInMask(); n != m {
		return fmt.Errorf("modes have %d points, mask has %d: %w", n, m, ErrDataIntegrity)
	}
	return nil
}

// ModeSubset selects modes by index for a shape reconstruction. A nil subset
// means every mode; a non-nil subset is used in the given order.
type ModeSubset []int

// Modes returns the subset made of the given indices.
func Modes(idx ...int) ModeSubset {
	return append(ModeSubset{}, idx...)
}

// ModeRange returns the subset [from, to).
func ModeRange(from, to int) ModeSubset {
	s := ModeSubset{}
	for i := from; i < to; i++ {
		s = append(s, i)
	}
	return s
}
