package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/store"
	"github.com/banshee-data/wavefront.budget/internal/testutil"
)

func TestMasksDisjoint(t *testing.T) {
	t.Parallel()
	masks := Masks(48)
	require.Len(t, masks, asm.NSegment)
	cover := make([]int, 48*48)
	for _, m := range masks {
		assert.Positive(t, testutil.CountTrue(m))
		for i, v := range m {
			if v {
				cover[i]++
			}
		}
	}
	for _, c := range cover {
		assert.LessOrEqual(t, c, 1)
	}
}

func TestBasesBuildAssembly(t *testing.T) {
	t.Parallel()
	bases := Bases(48, 6, testutil.NewRand(1))
	for _, b := range bases {
		require.NoError(t, b.Validate())
		n := float64(b.NPoint())
		var ss float64
		for _, v := range b.Modes[:b.NPoint()] {
			ss += v * v
		}
		assert.InDelta(t, n, ss, 1e-9)
	}
	a, err := asm.Build(bases, asm.Options{})
	require.NoError(t, err)
	assert.Equal(t, 48*48, a.GridLen())
}

func TestField(t *testing.T) {
	t.Parallel()
	f := Field(32, 1e-7, testutil.NewRand(2))
	assert.Equal(t, 32*32, f.Len())
	assert.Less(t, f.Count(), f.Len())
	assert.True(t, math.IsNaN(f.At(0)))
	assert.Greater(t, f.Std(), 1e-9)
	assert.Less(t, f.Std(), 1e-6)
}

func TestWriteBasesAndFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, WriteBases(dir, 24, 3, testutil.NewRand(3)))
	a, err := store.LoadAssembly(dir, asm.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, a.Segment(1).NMode())

	paths, err := WriteFields(dir, 24, 2, testutil.NewRand(4))
	require.NoError(t, err)
	require.Len(t, paths, 2)
	f, err := store.LoadField(paths[1])
	require.NoError(t, err)
	assert.Equal(t, 24*24, f.Len())
}
