// Package record summarizes the modal decomposition of OPD maps and
// aggregates the summaries of a batch into fitting error statistics.
package record

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/opd"
)

// Record is the summary of one OPD map fitted by the mirror.
type Record struct {
	// File identifies the OPD map, usually its base file name.
	File string
	// Var is the variance of the map over the mirror.
	Var float64
	// SegmentMeanSquare holds, per segment, the mean square Σx²/n_point of the
	// map on the segment footprint, on the same scale as Σb² of its modes.
	SegmentMeanSquare []float64
	// ModalCoefficients holds NMode coefficients per segment, S1..S7.
	ModalCoefficients []float64
	// Ratios holds each segment's share of the mirror area.
	Ratios []float64
	// NMode is the number of modes per segment.
	NMode int
}

// New summarizes field f, already masked to the mirror, and its coefficients
// on assembly a as returned by ProjectOut or LeastSquareOut.
func New(file string, f opd.Field, a *asm.Assembly, coefficients []float64) (Record, error) {
	nMode := a.Segment(1).NMode()
	for _, s := range a.Segments() {
		if s.NMode() != nMode {
			return Record{}, fmt.Errorf("%s has %d modes, %s has %d: %w", s.Tag(), s.NMode(), a.Segment(1).Tag(), nMode, ErrShape)
		}
	}
	if len(coefficients) != a.NMode() {
		return Record{}, fmt.Errorf("%d coefficients, mirror has %d modes: %w", len(coefficients), a.NMode(), ErrShape)
	}

	sss := make([]float64, asm.NSegment)
	for i, s := range a.Segments() {
		ms, err := f.MaskedMeanSquare(s.Mask())
		if err != nil {
			return Record{}, fmt.Errorf("%s: %w", s.Tag(), err)
		}
		sss[i] = ms
	}
	return Record{
		File:              file,
		Var:               f.Variance(),
		SegmentMeanSquare:  sss,
		ModalCoefficients: append([]float64(nil), coefficients...),
		Ratios:            a.AreaRatios(),
		NMode:             nMode,
	}, nil
}

// Validate checks the vector lengths of r.
func (r Record) Validate() error {
	if r.NMode <= 0 {
		return fmt.Errorf("%s: n_mode %d: %w", r.File, r.NMode, ErrShape)
	}
	if len(r.SegmentMeanSquare) != asm.NSegment || len(r.Ratios) != asm.NSegment {
		return fmt.Errorf("%s: %d sums of squares and %d ratios, want %d: %w",
			r.File, len(r.SegmentMeanSquare), len(r.Ratios), asm.NSegment, ErrShape)
	}
	if len(r.ModalCoefficients) != asm.NSegment*r.NMode {
		return fmt.Errorf("%s: %d coefficients, want %d: %w", r.File, len(r.ModalCoefficients), asm.NSegment*r.NMode, ErrShape)
	}
	return nil
}

// SegmentCoefficients returns the coefficients of segment id (1..7).
func (r Record) SegmentCoefficients(id int) []float64 {
	return r.ModalCoefficients[(id-1)*r.NMode : id*r.NMode]
}

// CoefficientSumSquare returns Σb² per segment.
func (r Record) CoefficientSumSquare() []float64 {
	out := make([]float64, asm.NSegment)
	for i := range out {
		b := r.SegmentCoefficients(i + 1)
		out[i] = floats.Dot(b, b)
	}
	return out
}

// CoefficientRSS returns sqrt(Σb²) per segment.
func (r Record) CoefficientRSS() []float64 {
	out := r.CoefficientSumSquare()
	for i, x := range out {
		out[i] = math.Sqrt(x)
	}
	return out
}

// WeightedStd returns the area-weighted wavefront error of the map over the
// mirror, sqrt(Σ sss·ratio).
func (r Record) WeightedStd() float64 {
	return math.Sqrt(floats.Dot(r.SegmentMeanSquare, r.Ratios))
}

// ResidualStd returns the area-weighted wavefront error left after removing
// every fitted mode, sqrt(Σ |sss − Σb²|·ratio).
func (r Record) ResidualStd() float64 {
	var v float64
	for i, b2 := range r.CoefficientSumSquare() {
		v += math.Abs(r.SegmentMeanSquare[i]-b2) * r.Ratios[i]
	}
	return math.Sqrt(v)
}
