package opd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Field is an OPD map sampled on a fixed grid, row-major.
//
// A Field is immutable once produced: every operation returns a new Field and
// Map exposes the samples read-only.
type Field struct {
	data []float64
	// Max and Min are the extrema recorded alongside the map by its producer.
	// They are carried through for presentation and are not recomputed.
	Max float64
	Min float64
}

// New returns a Field holding a copy of data. Max and Min are taken from the
// non-NaN samples.
func New(data []float64) Field {
	f := Field{data: append([]float64(nil), data...)}
	f.Max, f.Min = f.extrema()
	return f
}

// FromMap returns a Field that takes ownership of data together with the
// extrema recorded by the producer of the map.
func FromMap(data []float64, max, min float64) Field {
	return Field{data: data, Max: max, Min: min}
}

// Len returns the number of grid samples.
func (f Field) Len() int { return len(f.data) }

// Map returns the samples. The slice must not be modified.
func (f Field) Map() []float64 { return f.data }

// At returns sample i.
func (f Field) At(i int) float64 { return f.data[i] }

// Clone returns a deep copy of f.
func (f Field) Clone() Field {
	return Field{data: append([]float64(nil), f.data...), Max: f.Max, Min: f.Min}
}

// NoNaN returns the samples that are not NaN, in grid order.
func (f Field) NoNaN() []float64 {
	out := make([]float64, 0, len(f.data))
	for _, x := range f.data {
		if !math.IsNaN(x) {
			out = append(out, x)
		}
	}
	return out
}

// Count returns the number of samples that are not NaN.
func (f Field) Count() int {
	n := 0
	for _, x := range f.data {
		if !math.IsNaN(x) {
			n++
		}
	}
	return n
}

// Mean returns the mean of the non-NaN samples, or NaN if there are none.
func (f Field) Mean() float64 {
	x := f.NoNaN()
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

// Variance returns the population variance (divide by N) of the non-NaN
// samples, or NaN if there are none.
func (f Field) Variance() float64 {
	return popVariance(f.NoNaN())
}

// Std returns the population standard deviation of the non-NaN samples.
func (f Field) Std() float64 {
	return math.Sqrt(f.Variance())
}

// RMS returns the root mean square of the non-NaN samples.
func (f Field) RMS() float64 {
	x := f.NoNaN()
	if len(x) == 0 {
		return math.NaN()
	}
	return math.Sqrt(floats.Dot(x, x) / float64(len(x)))
}

// MaskedVariance returns the population variance of the samples where mask
// is true. NaN samples inside the mask are kept and make the result NaN.
func (f Field) MaskedVariance(mask []bool) (float64, error) {
	x, err := f.masked(mask)
	if err != nil {
		return math.NaN(), err
	}
	return popVariance(x), nil
}

// MaskedStd is the square root of MaskedVariance.
func (f Field) MaskedStd(mask []bool) (float64, error) {
	v, err := f.MaskedVariance(mask)
	return math.Sqrt(v), err
}

// MaskedRMS returns the root mean square of the samples where mask is true.
// Unlike RMS it does not skip NaN samples.
func (f Field) MaskedRMS(mask []bool) (float64, error) {
	ms, err := f.MaskedMeanSquare(mask)
	return math.Sqrt(ms), err
}

// MaskedSumOfSquares returns Σx² over the samples where mask is true, without
// mean subtraction.
func (f Field) MaskedSumOfSquares(mask []bool) (float64, error) {
	x, err := f.masked(mask)
	if err != nil {
		return math.NaN(), err
	}
	return floats.Dot(x, x), nil
}

// MaskedMeanSquare returns Σx²/n over the n samples where mask is true. This is
// the power under the discretized inner product the modal coefficients are
// normalized against, so it is directly comparable with Σb².
func (f Field) MaskedMeanSquare(mask []bool) (float64, error) {
	x, err := f.masked(mask)
	if err != nil {
		return math.NaN(), err
	}
	if len(x) == 0 {
		return math.NaN(), nil
	}
	return floats.Dot(x, x) / float64(len(x)), nil
}

// MaskedRSS returns the root of MaskedSumOfSquares.
func (f Field) MaskedRSS(mask []bool) (float64, error) {
	ss, err := f.MaskedSumOfSquares(mask)
	return math.Sqrt(ss), err
}

// Scaled returns a new Field with every sample multiplied by 10^(-exponent),
// e.g. Scaled(-9) turns metres into nanometres. It is meant for display only.
func (f Field) Scaled(exponent int) Field {
	s := math.Pow(10, -float64(exponent))
	out := f.Clone()
	floats.Scale(s, out.data)
	out.Max *= s
	out.Min *= s
	return out
}

// MaskWith returns a copy of f where every sample outside mask is NaN.
func (f Field) MaskWith(mask []bool) (Field, error) {
	if len(mask) != len(f.data) {
		return Field{}, fmt.Errorf("mask %d samples, field %d: %w", len(mask), len(f.data), ErrMaskLength)
	}
	out := f.Clone()
	for i, m := range mask {
		if !m {
			out.data[i] = math.NaN()
		}
	}
	return out, nil
}

// ZeroMean returns a copy of f with the NaN-aware mean removed.
func (f Field) ZeroMean() Field {
	mean := f.Mean()
	out := f.Clone()
	if math.IsNaN(mean) {
		return out
	}
	floats.AddConst(-mean, out.data)
	return out
}

// Sub returns the elementwise difference f - g.
func (f Field) Sub(g Field) (Field, error) {
	if len(g.data) != len(f.data) {
		return Field{}, fmt.Errorf("%d vs %d samples: %w", len(f.data), len(g.data), ErrFieldLength)
	}
	out := make([]float64, len(f.data))
	floats.SubTo(out, f.data, g.data)
	return New(out), nil
}

// Reconstructor removes a reconstructed mirror shape from a map.
type Reconstructor interface {
	Residual(f Field) (Field, error)
}

// Residual returns f minus the shape reconstructed by r: NaN outside the
// mirror, f less the shape of every mode inside.
func (f Field) Residual(r Reconstructor) (Field, error) {
	return r.Residual(f.Clone())
}

// Add returns the elementwise sum f + g.
func (f Field) Add(g Field) (Field, error) {
	if len(g.data) != len(f.data) {
		return Field{}, fmt.Errorf("%d vs %d samples: %w", len(f.data), len(g.data), ErrFieldLength)
	}
	out := make([]float64, len(f.data))
	floats.AddTo(out, f.data, g.data)
	return New(out), nil
}

func (f Field) masked(mask []bool) ([]float64, error) {
	if len(mask) != len(f.data) {
		return nil, fmt.Errorf("mask %d samples, field %d: %w", len(mask), len(f.data), ErrMaskLength)
	}
	out := make([]float64, 0, len(f.data))
	for i, m := range mask {
		if m {
			out = append(out, f.data[i])
		}
	}
	return out, nil
}

func (f Field) extrema() (hi, lo float64) {
	x := f.NoNaN()
	if len(x) == 0 {
		return math.NaN(), math.NaN()
	}
	return floats.Max(x), floats.Min(x)
}

func popVariance(x []float64) float64 {
	if len(x) == 0 {
		return math.NaN()
	}
	_, v := stat.PopMeanVariance(x, nil)
	return v
}
