package record

import (
	"fmt"
	"math"

	"github.com/banshee-data/wavefront.budget/internal/asm"
)

// Batch is the set of records of one case. Means over an empty batch are NaN.
type Batch []Record

// Validate checks every record and that they share the same mode count.
func (b Batch) Validate() error {
	for i, r := range b {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if r.NMode != b[0].NMode {
			return fmt.Errorf("record %d has %d modes, record 0 has %d: %w", i, r.NMode, b[0].NMode, ErrShape)
		}
	}
	return nil
}

// NMode returns the number of modes per segment, 0 for an empty batch.
func (b Batch) NMode() int {
	if len(b) == 0 {
		return 0
	}
	return b[0].NMode
}

// MeanVar returns the mean variance of the maps.
func (b Batch) MeanVar() float64 {
	if len(b) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, r := range b {
		sum += r.Var
	}
	return sum / float64(len(b))
}

// MeanStd returns sqrt(MeanVar).
func (b Batch) MeanStd() float64 {
	return math.Sqrt(b.MeanVar())
}

// MeanSegmentMeanSquare returns the batch mean of SegmentMeanSquare, per segment.
func (b Batch) MeanSegmentMeanSquare() []float64 {
	out := make([]float64, asm.NSegment)
	for _, r := range b {
		for i, s := range r.SegmentMeanSquare {
			out[i] += s
		}
	}
	return scale(out, len(b))
}

// MeanSegmentRSS returns the square root of MeanSegmentMeanSquare.
func (b Batch) MeanSegmentRSS() []float64 {
	return sqrtAll(b.MeanSegmentMeanSquare())
}

// MeanModalCoefsSquare returns the mean of b² for every coefficient, S1..S7
// with NMode entries each.
func (b Batch) MeanModalCoefsSquare() ([]float64, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	out := make([]float64, asm.NSegment*b.NMode())
	for _, r := range b {
		for i, c := range r.ModalCoefficients {
			out[i] += c * c
		}
	}
	return scale(out, len(b)), nil
}

// MeanSegmentResidualSumSquare returns, for every segment and every mode i,
// the mean over the batch of |sss − Σ_{k≤i} b_k²|: the power left on the
// segment once modes 0..i are removed.
func (b Batch) MeanSegmentResidualSumSquare() ([]float64, error) {
	if err := b.Validate(); err != nil {
		return nil, err
	}
	nMode := b.NMode()
	out := make([]float64, asm.NSegment*nMode)
	for _, r := range b {
		for sid := 1; sid <= asm.NSegment; sid++ {
			sss := r.SegmentMeanSquare[sid-1]
			var cum float64
			for i, c := range r.SegmentCoefficients(sid) {
				cum += c * c
				out[(sid-1)*nMode+i] += math.Abs(sss - cum)
			}
		}
	}
	return scale(out, len(b)), nil
}

// MeanSegmentResidualRSS returns the square root of
// MeanSegmentResidualSumSquare.
func (b Batch) MeanSegmentResidualRSS() ([]float64, error) {
	out, err := b.MeanSegmentResidualSumSquare()
	if err != nil {
		return nil, err
	}
	return sqrtAll(out), nil
}

func scale(x []float64, n int) []float64 {
	for i := range x {
		x[i] /= float64(n)
	}
	return x
}

func sqrtAll(x []float64) []float64 {
	for i, v := range x {
		x[i] = math.Sqrt(v)
	}
	return x
}
