package asm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/wavefront.budget/internal/testutil"
)

// firstN returns a grid mask whose first n samples are true.
func firstN(gridLen, n int) []bool {
	mask := make([]bool, gridLen)
	for i := 0; i < n; i++ {
		mask[i] = true
	}
	return mask
}

func randomSegment(t *testing.T, id, gridLen, nPoint, nMode int, seed uint64) *Segment {
	t.Helper()
	rng := testutil.NewRand(seed)
	s, err := NewSegment(id, Basis{
		NMode: nMode,
		Modes: testutil.RandomModes(rng, nPoint, nMode),
		Mask:  firstN(gridLen, nPoint),
	}, Options{})
	require.NoError(t, err)
	return s
}

func TestNewSegment_Preconditions(t *testing.T) {
	t.Parallel()

	t.Run("point count differs from mask", func(t *testing.T) {
		_, err := NewSegment(1, Basis{NMode: 1, Modes: []float64{1, 2, 3}, Mask: firstN(6, 2)}, Options{})
		assert.ErrorIs(t, err, ErrDataIntegrity)
	})

	t.Run("modes not a multiple of n_mode", func(t *testing.T) {
		_, err := NewSegment(1, Basis{NMode: 2, Modes: []float64{1, 2, 3}, Mask: firstN(6, 3)}, Options{})
		assert.ErrorIs(t, err, ErrDataIntegrity)
	})

	t.Run("non positive n_mode", func(t *testing.T) {
		_, err := NewSegment(1, Basis{NMode: 0, Modes: []float64{1}, Mask: firstN(6, 1)}, Options{})
		assert.ErrorIs(t, err, ErrDataIntegrity)
	})

	t.Run("empty segment", func(t *testing.T) {
		_, err := NewSegment(1, Basis{NMode: 2, Mask: make([]bool, 6)}, Options{})
		assert.ErrorIs(t, err, ErrDataIntegrity)
	})

	t.Run("zero mode matrix", func(t *testing.T) {
		_, err := NewSegment(1, Basis{NMode: 2, Modes: make([]float64, 8), Mask: firstN(6, 4)}, Options{})
		assert.ErrorIs(t, err, ErrBasisConstruction)
	})
}

func TestSegment_Accessors(t *testing.T) {
	t.Parallel()
	s := randomSegment(t, 3, 20, 8, 2, 1)

	assert.Equal(t, 3, s.ID())
	assert.Equal(t, "M2S3", s.Tag())
	assert.Equal(t, 8, s.NPoint())
	assert.Equal(t, 2, s.NMode())
	assert.Equal(t, 20, s.GridLen())
	assert.Len(t, s.Mode(1), 8)
	assert.Equal(t, []float64{0, 0}, s.Coefficients())
}

func TestSegment_UnitNorm(t *testing.T) {
	t.Parallel()
	s := randomSegment(t, 1, 40, 25, 5, 7)
	require.NoError(t, s.UnitNorm())

	n := float64(s.NPoint())
	for i := 0; i < s.NMode(); i++ {
		m := s.Mode(i)
		assert.InDelta(t, 1.0, floats.Dot(m, m)*n, 1e-12, "mode %d", i)
	}
}

func TestSegment_UnitNormOption(t *testing.T) {
	t.Parallel()
	rng := testutil.NewRand(11)
	s, err := NewSegment(2, Basis{NMode: 3, Modes: testutil.RandomModes(rng, 10, 3), Mask: firstN(12, 10)}, Options{UnitNorm: true})
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		m := s.Mode(i)
		assert.InDelta(t, 1.0, floats.Dot(m, m)*10, 1e-12)
	}
}

func TestSegment_SingleModeClosedForm(t *testing.T) {
	t.Parallel()
	s, err := NewSegment(1, Basis{NMode: 1, Modes: []float64{1, 2, 3}, Mask: firstN(GridSize, 3)}, Options{})
	require.NoError(t, err)
	require.NoError(t, s.UnitNorm())

	// mode = [1 2 3]/sqrt(42), so <x, mode> = 14/sqrt(42).
	want := 14 / math.Sqrt(42)

	_, err = s.Project([]float64{1, 2, 3})
	require.NoError(t, err)
	require.Len(t, s.Coefficients(), 1)
	assert.InDelta(t, want, s.Coefficients()[0], 1e-12)

	full := make([]float64, GridSize)
	copy(full, []float64{1, 2, 3})
	b, err := s.ProjectOut(full)
	require.NoError(t, err)
	assert.InDelta(t, want, b[0], 1e-12)

	// Least squares recovers the map exactly: b = sqrt(42).
	_, err = s.LeastSquare([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(42), s.Coefficients()[0], 1e-9)
	w, err := s.Shape(nil)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 2, 3}, w, 1e-9)
}

func TestSegment_ProjectionLengthMismatch(t *testing.T) {
	t.Parallel()
	s := randomSegment(t, 1, 30, 10, 3, 5)
	_, err := s.Project(make([]float64, 10))
	require.NoError(t, err)
	before := append([]float64(nil), s.Coefficients()...)

	bad := []float64{1, 2, 3, 4, 5}
	_, err = s.Project(bad)
	assert.ErrorIs(t, err, ErrProjectionLength)
	_, err = s.LeastSquare(bad)
	assert.ErrorIs(t, err, ErrProjectionLength)
	_, err = s.ProjectOut(bad)
	assert.ErrorIs(t, err, ErrProjectionLength)
	_, err = s.LeastSquareOut(bad)
	assert.ErrorIs(t, err, ErrProjectionLength)

	assert.Equal(t, before, s.Coefficients())
}

func TestSegment_FullGridAndLocalAgree(t *testing.T) {
	t.Parallel()
	rng := testutil.NewRand(9)
	mask := make([]bool, 30)
	for _, i := range []int{1, 4, 5, 9, 12, 17, 20, 21, 28} {
		mask[i] = true
	}
	s, err := NewSegment(4, Basis{NMode: 3, Modes: testutil.RandomModes(rng, 9, 3), Mask: mask}, Options{})
	require.NoError(t, err)

	full := testutil.RandomMap(rng, 30)
	local := s.Masked(full)
	require.Len(t, local, 9)
	assert.Equal(t, full[1], local[0])
	assert.Equal(t, full[28], local[8])

	p1, err := s.ProjectOut(full)
	require.NoError(t, err)
	p2, err := s.ProjectOut(local)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)

	l1, err := s.LeastSquareOut(full)
	require.NoError(t, err)
	l2, err := s.LeastSquareOut(local)
	require.NoError(t, err)
	assert.InDeltaSlice(t, l1, l2, 1e-12)
}

func TestSegment_OutVariantsArePure(t *testing.T) {
	t.Parallel()
	s := randomSegment(t, 1, 16, 12, 4, 3)
	x := testutil.RandomMap(testutil.NewRand(4), 12)
	xCopy := append([]float64(nil), x...)

	p, err := s.ProjectOut(x)
	require.NoError(t, err)
	l, err := s.LeastSquareOut(x)
	require.NoError(t, err)
	assert.Equal(t, make([]float64, 4), s.Coefficients())
	assert.Equal(t, xCopy, x)

	_, err = s.Project(x)
	require.NoError(t, err)
	assert.Equal(t, p, s.Coefficients())
	_, err = s.LeastSquare(x)
	require.NoError(t, err)
	assert.Equal(t, l, s.Coefficients())
}

func segmentResidualSS(t *testing.T, s *Segment, x []float64) float64 {
	t.Helper()
	w, err := s.Shape(nil)
	require.NoError(t, err)
	r := make([]float64, len(x))
	floats.SubTo(r, x, w)
	return floats.Dot(r, r)
}

func TestSegment_LeastSquareBeatsProjection(t *testing.T) {
	t.Parallel()
	for seed := uint64(1); seed <= 5; seed++ {
		s := randomSegment(t, 1, 60, 50, 6, seed)
		x := testutil.RandomMap(testutil.NewRand(seed+100), 50)

		_, err := s.LeastSquare(x)
		require.NoError(t, err)
		ls := segmentResidualSS(t, s, x)

		_, err = s.Project(x)
		require.NoError(t, err)
		pr := segmentResidualSS(t, s, x)

		assert.LessOrEqual(t, ls, pr+1e-9, "seed %d", seed)
	}
}

func TestSegment_Shape(t *testing.T) {
	t.Parallel()
	s, err := NewSegment(1, Basis{
		NMode: 3,
		Modes: []float64{1, 0, 0, 1, 1, 1, 0, 2},
		Mask:  firstN(5, 2),
	}, Options{})
	// 8 samples over 3 modes is not a matrix
	require.ErrorIs(t, err, ErrDataIntegrity)
	require.Nil(t, s)

	s, err = NewSegment(1, Basis{
		NMode: 3,
		Modes: []float64{1, 0, 0, 1, 1, 1},
		Mask:  firstN(5, 2),
	}, Options{})
	require.NoError(t, err)
	s.coefficients = []float64{2, 3, 5}

	all, err := s.Shape(nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 8}, all)

	noPiston, err := s.Shape(ModeRange(1, 3))
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 8}, noPiston)

	one, err := s.Shape(Modes(2))
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 5}, one)

	none, err := s.Shape(Modes())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, none)

	_, err = s.Shape(Modes(0, 3))
	assert.ErrorIs(t, err, ErrDataIntegrity)
	_, err = s.Shape(Modes(-1))
	assert.ErrorIs(t, err, ErrDataIntegrity)
}

func TestSegment_Scatter(t *testing.T) {
	t.Parallel()
	mask := []bool{false, true, false, true, true}
	s, err := NewSegment(1, Basis{NMode: 1, Modes: []float64{1, 2, 3}, Mask: mask}, Options{})
	require.NoError(t, err)

	global := []float64{10, 10, 10, 10, 10}
	require.NoError(t, s.ScatterReplace(global, []float64{1, 2, 3}))
	assert.Equal(t, []float64{10, 1, 10, 2, 3}, global)

	require.NoError(t, s.ScatterSubtract(global, []float64{1, 1, 1}))
	assert.Equal(t, []float64{10, 0, 10, 1, 2}, global)

	assert.ErrorIs(t, s.ScatterReplace(global, []float64{1, 2}), ErrDataIntegrity)
	assert.ErrorIs(t, s.ScatterSubtract(global[:4], []float64{1, 2, 3}), ErrDataIntegrity)
	// nothing was written on failure
	assert.Equal(t, []float64{10, 0, 10, 1, 2}, global)
}
