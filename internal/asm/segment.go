package asm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Options tune segment construction.
type Options struct {
	// PinvTolerance is the singular value cut-off of the pseudo-inverse.
	// Zero selects max(n_point, n_mode)·eps·σmax.
	PinvTolerance float64
	// UnitNorm normalizes every mode with UnitNorm right after construction.
	UnitNorm bool
}

// Segment is one mirror segment: its modes, its pupil mask, the pseudo-inverse
// of its mode matrix and the coefficients of the last fit.
type Segment struct {
	id           int
	nMode        int
	nPoint       int
	modes        []float64
	mask         []bool
	coefficients []float64
	pinv         *mat.Dense // n_mode x n_point
	tol          float64
}

// NewSegment builds segment id from its basis material and computes the
// pseudo-inverse of the mode matrix. The segment takes ownership of b.Modes
// and b.Mask.
func NewSegment(id int, b Basis, opts Options) (*Segment, error) {
	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("segment %d: %w", id, err)
	}
	s := &Segment{
		id:           id,
		nMode:        b.NMode,
		nPoint:       b.NPoint(),
		modes:        b.Modes,
		mask:         b.Mask,
		coefficients: make([]float64, b.NMode),
		tol:          opts.PinvTolerance,
	}
	if opts.UnitNorm {
		s.normalizeModes()
	}
	if err := s.buildPinv(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Segment) buildPinv() error {
	// Column-major n_point x n_mode is row-major n_mode x n_point.
	at := mat.NewDense(s.nMode, s.nPoint, s.modes)
	pinv, err := pseudoInverse(at.T(), s.tol)
	if err != nil {
		return fmt.Errorf("segment %d: %w", s.id, err)
	}
	s.pinv = pinv
	return nil
}

// ID returns the segment number, 1 to 7.
func (s *Segment) ID() int { return s.id }

// Tag returns the segment label used for basis files and legends.
func (s *Segment) Tag() string { return fmt.Sprintf("M2S%d", s.id) }

// NMode returns the number of modes.
func (s *Segment) NMode() int { return s.nMode }

// NPoint returns the number of samples per mode.
func (s *Segment) NPoint() int { return s.nPoint }

// GridLen returns the length of a full-grid map for this segment.
func (s *Segment) GridLen() int { return len(s.mask) }

// Mask returns the segment pupil mask. The slice must not be modified.
func (s *Segment) Mask() []bool { return s.mask }

// Modes returns the column-major mode matrix. The slice must not be modified.
func (s *Segment) Modes() []float64 { return s.modes }

// Mode returns mode i. The slice must not be modified.
func (s *Segment) Mode(i int) []float64 {
	return s.modes[i*s.nPoint : (i+1)*s.nPoint]
}

// Coefficients returns the coefficients of the last fit.
func (s *Segment) Coefficients() []float64 { return s.coefficients }

// Masked returns the samples of a full-grid map that fall inside the mask,
// in mask order.
func (s *Segment) Masked(data []float64) []float64 {
	out := make([]float64, 0, s.nPoint)
	for i, m := range s.mask {
		if m && i < len(data) {
			out = append(out, data[i])
		}
	}
	return out
}

// UnitNorm rescales every mode m so that sqrt(Σm²·n_point) = 1 and rebuilds
// the pseudo-inverse. Modes that are identically zero are left as they are.
func (s *Segment) UnitNorm() error {
	s.normalizeModes()
	return s.buildPinv()
}

func (s *Segment) normalizeModes() {
	for i := 0; i < s.nMode; i++ {
		m := s.Mode(i)
		norm := math.Sqrt(floats.Dot(m, m) * float64(s.nPoint))
		if norm > 0 {
			floats.Scale(1/norm, m)
		}
	}
}

// samples returns the segment-local view of data.
func (s *Segment) samples(data []float64) ([]float64, error) {
	switch len(data) {
	case len(s.mask):
		return s.Masked(data), nil
	case s.nPoint:
		return data, nil
	default:
		return nil, fmt.Errorf("segment %d: %d samples, want %d or %d: %w",
			s.id, len(data), len(s.mask), s.nPoint, ErrProjectionLength)
	}
}

// ProjectOut returns the projection of data on every mode, each mode being
// normalized on the fly by sqrt(Σm²·n_point). data is either a full-grid map
// or the n_point segment samples. The segment is left unchanged.
func (s *Segment) ProjectOut(data []float64) ([]float64, error) {
	x, err := s.samples(data)
	if err != nil {
		return nil, err
	}
	b := make([]float64, s.nMode)
	n := float64(s.nPoint)
	for i := range b {
		m := s.Mode(i)
		b[i] = floats.Dot(m, x) / math.Sqrt(floats.Dot(m, m)*n)
	}
	return b, nil
}

// LeastSquareOut returns the minimum-norm least-squares coefficients of data,
// pinv·samples. The segment is left unchanged.
func (s *Segment) LeastSquareOut(data []float64) ([]float64, error) {
	x, err := s.samples(data)
	if err != nil {
		return nil, err
	}
	b := make([]float64, s.nMode)
	mat.NewVecDense(s.nMode, b).MulVec(s.pinv, mat.NewVecDense(s.nPoint, x))
	return b, nil
}

// Project stores the ProjectOut coefficients of data.
func (s *Segment) Project(data []float64) (*Segment, error) {
	b, err := s.ProjectOut(data)
	if err != nil {
		return nil, err
	}
	s.coefficients = b
	return s, nil
}

// LeastSquare stores the LeastSquareOut coefficients of data.
func (s *Segment) LeastSquare(data []float64) (*Segment, error) {
	b, err := s.LeastSquareOut(data)
	if err != nil {
		return nil, err
	}
	s.coefficients = b
	return s, nil
}

// Shape returns the segment-local surface Σ b[i]·mode[i] over the modes of
// subset, or over every mode if subset is nil.
func (s *Segment) Shape(subset ModeSubset) ([]float64, error) {
	w := make([]float64, s.nPoint)
	if subset == nil {
		for i, c := range s.coefficients {
			floats.AddScaled(w, c, s.Mode(i))
		}
		return w, nil
	}
	for _, i := range subset {
		if i < 0 || i >= s.nMode {
			return nil, fmt.Errorf("segment %d: mode %d out of [0, %d): %w", s.id, i, s.nMode, ErrDataIntegrity)
		}
		floats.AddScaled(w, s.coefficients[i], s.Mode(i))
	}
	return w, nil
}

// ScatterReplace writes local into global at the mask positions, in mask order.
func (s *Segment) ScatterReplace(global, local []float64) error {
	if err := s.checkScatter(global, local); err != nil {
		return err
	}
	k := 0
	for i, m := range s.mask {
		if m {
			global[i] = local[k]
			k++
		}
	}
	return nil
}

// ScatterSubtract subtracts local from global at the mask positions, in mask
// order.
func (s *Segment) ScatterSubtract(global, local []float64) error {
	if err := s.checkScatter(global, local); err != nil {
		return err
	}
	k := 0
	for i, m := range s.mask {
		if m {
			global[i] -= local[k]
			k++
		}
	}
	return nil
}

func (s *Segment) checkScatter(global, local []float64) error {
	if len(global) != len(s.mask) {
		return fmt.Errorf("segment %d: grid map has %d samples, mask %d: %w", s.id, len(global), len(s.mask), ErrDataIntegrity)
	}
	if len(local) != s.nPoint {
		return fmt.Errorf("segment %d: local map has %d samples, segment %d: %w", s.id, len(local), s.nPoint, ErrDataIntegrity)
	}
	return nil
}
