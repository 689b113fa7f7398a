package asm

import (
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/wavefront.budget/internal/opd"
)

// Assembly is the seven-segment mirror, segments in order S1..S7.
type Assembly struct {
	segments [NSegment]*Segment
}

// New assembles seven segments. They must be numbered 1..7 in order and share
// the same grid.
func New(segments ...*Segment) (*Assembly, error) {
	if len(segments) != NSegment {
		return nil, fmt.Errorf("%d segments, want %d: %w", len(segments), NSegment, ErrDataIntegrity)
	}
	a := &Assembly{}
	for i, s := range segments {
		if s == nil {
			return nil, fmt.Errorf("segment S%d is nil: %w", i+1, ErrDataIntegrity)
		}
		if s.ID() != i+1 {
			return nil, fmt.Errorf("segment at position %d is S%d: %w", i+1, s.ID(), ErrDataIntegrity)
		}
		if s.GridLen() != segments[0].GridLen() {
			return nil, fmt.Errorf("segment S%d grid %d, S1 grid %d: %w", s.ID(), s.GridLen(), segments[0].GridLen(), ErrDataIntegrity)
		}
		a.segments[i] = s
	}
	return a, nil
}

// Build constructs the seven segments from their basis material concurrently
// and assembles them. bases[i] is the material of segment i+1.
func Build(bases []Basis, opts Options) (*Assembly, error) {
	if len(bases) != NSegment {
		return nil, fmt.Errorf("%d bases, want %d: %w", len(bases), NSegment, ErrDataIntegrity)
	}
	segments := make([]*Segment, NSegment)
	var g errgroup.Group
	for i, b := range bases {
		g.Go(func() error {
			s, err := NewSegment(i+1, b, opts)
			if err != nil {
				return err
			}
			segments[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return New(segments...)
}

// Segments returns the segments in order S1..S7.
func (a *Assembly) Segments() []*Segment {
	return a.segments[:]
}

// Segment returns segment id (1..7), or nil if id is out of range.
func (a *Assembly) Segment(id int) *Segment {
	if id < 1 || id > NSegment {
		return nil
	}
	return a.segments[id-1]
}

// GridLen returns the length of a full-grid map.
func (a *Assembly) GridLen() int {
	return a.segments[0].GridLen()
}

// NMode returns the total number of modes, the length of ProjectOut and
// LeastSquareOut results.
func (a *Assembly) NMode() int {
	n := 0
	for _, s := range a.segments {
		n += s.NMode()
	}
	return n
}

// UnionMask returns the logical OR of the segment masks.
func (a *Assembly) UnionMask() []bool {
	mask := make([]bool, a.GridLen())
	for _, s := range a.segments {
		for i, m := range s.Mask() {
			mask[i] = mask[i] || m
		}
	}
	return mask
}

// AreaRatios returns each segment's share of the total number of points.
func (a *Assembly) AreaRatios() []float64 {
	total := 0
	for _, s := range a.segments {
		total += s.NPoint()
	}
	ratios := make([]float64, NSegment)
	for i, s := range a.segments {
		ratios[i] = float64(s.NPoint()) / float64(total)
	}
	return ratios
}

// Coefficients returns the stored coefficients of every segment, S1..S7.
func (a *Assembly) Coefficients() []float64 {
	out := make([]float64, 0, a.NMode())
	for _, s := range a.segments {
		out = append(out, s.Coefficients()...)
	}
	return out
}

// UnitNorm normalizes the modes of every segment.
func (a *Assembly) UnitNorm() error {
	return a.each(func(s *Segment) error { return s.UnitNorm() })
}

// Project fits f by projection on every segment. If any segment rejects f,
// no segment's coefficients change.
func (a *Assembly) Project(f opd.Field) (*Assembly, error) {
	b, err := a.ProjectOut(f)
	if err != nil {
		return nil, err
	}
	a.commit(b)
	return a, nil
}

// LeastSquare fits f by least squares on every segment. If any segment
// rejects f, no segment's coefficients change.
func (a *Assembly) LeastSquare(f opd.Field) (*Assembly, error) {
	b, err := a.LeastSquareOut(f)
	if err != nil {
		return nil, err
	}
	a.commit(b)
	return a, nil
}

// commit splits b, S1..S7 concatenated, into the segment coefficients.
func (a *Assembly) commit(b []float64) {
	off := 0
	for _, s := range a.segments {
		n := s.NMode()
		s.coefficients = append([]float64(nil), b[off:off+n]...)
		off += n
	}
}

// ProjectOut returns the projection coefficients of f, S1..S7 concatenated,
// without touching the segments.
func (a *Assembly) ProjectOut(f opd.Field) ([]float64, error) {
	return a.gather(f, (*Segment).ProjectOut)
}

// LeastSquareOut returns the least-squares coefficients of f, S1..S7
// concatenated, without touching the segments.
func (a *Assembly) LeastSquareOut(f opd.Field) ([]float64, error) {
	return a.gather(f, (*Segment).LeastSquareOut)
}

// MirrorShape returns the mirror surface on the full grid, NaN outside the
// segments. Segments are written in order S1..S7; where masks overlap the
// later segment wins.
func (a *Assembly) MirrorShape(subset ModeSubset) (opd.Field, error) {
	shape := make([]float64, a.GridLen())
	for i := range shape {
		shape[i] = math.NaN()
	}
	for _, s := range a.segments {
		w, err := s.Shape(subset)
		if err != nil {
			return opd.Field{}, err
		}
		if err := s.ScatterReplace(shape, w); err != nil {
			return opd.Field{}, err
		}
	}
	return opd.New(shape), nil
}

// MirrorShapeSubtract returns f with every sample outside the union mask set
// to NaN and the shape of each segment subtracted on its footprint.
func (a *Assembly) MirrorShapeSubtract(f opd.Field, subset ModeSubset) (opd.Field, error) {
	if f.Len() != a.GridLen() {
		return opd.Field{}, fmt.Errorf("map has %d samples, grid %d: %w", f.Len(), a.GridLen(), ErrDataIntegrity)
	}
	data := append([]float64(nil), f.Map()...)
	for i, m := range a.UnionMask() {
		if !m {
			data[i] = math.NaN()
		}
	}
	for _, s := range a.segments {
		w, err := s.Shape(subset)
		if err != nil {
			return opd.Field{}, err
		}
		if err := s.ScatterSubtract(data, w); err != nil {
			return opd.Field{}, err
		}
	}
	return opd.New(data), nil
}

// Residual returns the part of f the mirror cannot reproduce with its current
// coefficients: f minus the full mirror shape, NaN outside the mirror.
func (a *Assembly) Residual(f opd.Field) (opd.Field, error) {
	return a.MirrorShapeSubtract(f, nil)
}

// each runs fn on every segment concurrently and waits for all of them.
func (a *Assembly) each(fn func(s *Segment) error) error {
	var g errgroup.Group
	for _, s := range a.segments {
		g.Go(func() error { return fn(s) })
	}
	return g.Wait()
}

func (a *Assembly) gather(f opd.Field, fit func(*Segment, []float64) ([]float64, error)) ([]float64, error) {
	data := f.Map()
	var parts [NSegment][]float64
	var g errgroup.Group
	for i, s := range a.segments {
		g.Go(func() error {
			b, err := fit(s, data)
			if err != nil {
				return err
			}
			parts[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make([]float64, 0, a.NMode())
	for _, b := range parts {
		out = append(out, b...)
	}
	return out, nil
}
