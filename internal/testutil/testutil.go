// Package testutil provides deterministic synthetic fixtures for tests.
//
// Fixtures are plain slices so that any package, including the ones the
// fixtures are fed to, can use them from its internal tests without an import
// cycle.
package testutil

import (
	"math"
	"math/rand/v2"
)

// NewRand returns a deterministic generator for fixtures.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// StripeMasks partitions the first gridLen-gap samples of a grid into n
// interleaved masks (sample i belongs to mask i%n). The last gap samples are
// left out of every mask.
func StripeMasks(gridLen, n, gap int) [][]bool {
	masks := make([][]bool, n)
	for k := range masks {
		masks[k] = make([]bool, gridLen)
	}
	for i := 0; i < gridLen-gap; i++ {
		masks[i%n][i] = true
	}
	return masks
}

// CountTrue returns the number of true entries of mask.
func CountTrue(mask []bool) int {
	n := 0
	for _, m := range mask {
		if m {
			n++
		}
	}
	return n
}

// RandomModes returns a column-major nPoint x nMode matrix of standard normal
// samples. The columns are linearly independent but not orthogonal.
func RandomModes(rng *rand.Rand, nPoint, nMode int) []float64 {
	modes := make([]float64, nPoint*nMode)
	for i := range modes {
		modes[i] = rng.NormFloat64()
	}
	return modes
}

// RandomMap returns n standard normal samples.
func RandomMap(rng *rand.Rand, n int) []float64 {
	data := make([]float64, n)
	for i := range data {
		data[i] = rng.NormFloat64()
	}
	return data
}

// NaNOutside returns a copy of data with NaN wherever mask is false.
func NaNOutside(data []float64, mask []bool) []float64 {
	out := append([]float64(nil), data...)
	for i, m := range mask {
		if !m {
			out[i] = math.NaN()
		}
	}
	return out
}
