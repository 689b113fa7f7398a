// Package synth generates small synthetic mirrors and OPD maps for demos and
// end-to-end tests.
package synth

import (
	"math"
	"math/rand/v2"

	"github.com/banshee-data/wavefront.budget/internal/asm"
	"github.com/banshee-data/wavefront.budget/internal/opd"
)

// Masks returns seven disjoint circular segment footprints on a width x width
// grid: S1..S6 around the center, S7 in the middle.
func Masks(width int) [][]bool {
	c := float64(width-1) / 2
	ring := float64(width) / 3
	radius := float64(width)/6 - 0.5

	centers := make([][2]float64, asm.NSegment)
	for i := 0; i < asm.NSegment-1; i++ {
		a := float64(i) * math.Pi / 3
		centers[i] = [2]float64{c + ring*math.Cos(a), c + ring*math.Sin(a)}
	}
	centers[asm.NSegment-1] = [2]float64{c, c}

	masks := make([][]bool, asm.NSegment)
	for k, ctr := range centers {
		masks[k] = make([]bool, width*width)
		for i := 0; i < width; i++ {
			for j := 0; j < width; j++ {
				if math.Hypot(float64(i)-ctr[0], float64(j)-ctr[1]) <= radius {
					masks[k][i*width+j] = true
				}
			}
		}
	}
	return masks
}

// Bases returns one basis per segment of Masks(width): a piston followed by
// nMode-1 low-order polynomial and random modes, each with Σm² = n_point.
func Bases(width, nMode int, rng *rand.Rand) []asm.Basis {
	masks := Masks(width)
	bases := make([]asm.Basis, asm.NSegment)
	for k, mask := range masks {
		var xs, ys []float64
		for idx, m := range mask {
			if m {
				xs = append(xs, float64(idx/width))
				ys = append(ys, float64(idx%width))
			}
		}
		n := len(xs)
		modes := make([]float64, n*nMode)
		for i := 0; i < nMode; i++ {
			col := modes[i*n : (i+1)*n]
			for p := range col {
				switch i {
				case 0:
					col[p] = 1
				case 1:
					col[p] = xs[p] - xs[0]
				case 2:
					col[p] = ys[p] - ys[0]
				default:
					col[p] = rng.NormFloat64()
				}
			}
			var ss float64
			for _, v := range col {
				ss += v * v
			}
			s := math.Sqrt(float64(n) / ss)
			for p := range col {
				col[p] *= s
			}
		}
		bases[k] = asm.Basis{NMode: nMode, Modes: modes, Mask: mask}
	}
	return bases
}

// Field returns a smooth random OPD map of rms about scale on a width x width
// grid, NaN outside the circle inscribed in the grid.
func Field(width int, scale float64, rng *rand.Rand) opd.Field {
	type wave struct{ kx, ky, phase, amp float64 }
	waves := make([]wave, 12)
	for i := range waves {
		k := float64(i+1) * 2 * math.Pi / float64(width)
		a := rng.Float64() * 2 * math.Pi
		waves[i] = wave{
			kx:    k * math.Cos(a),
			ky:    k * math.Sin(a),
			phase: rng.Float64() * 2 * math.Pi,
			amp:   scale / float64(i+1),
		}
	}
	c := float64(width-1) / 2
	data := make([]float64, width*width)
	for i := 0; i < width; i++ {
		for j := 0; j < width; j++ {
			x, y := float64(i)-c, float64(j)-c
			if math.Hypot(x, y) > float64(width)/2 {
				data[i*width+j] = math.NaN()
				continue
			}
			var v float64
			for _, w := range waves {
				v += w.amp * math.Sin(w.kx*x+w.ky*y+w.phase)
			}
			data[i*width+j] = v
		}
	}
	return opd.New(data)
}
