package record

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/wavefront.budget/internal/asm"
)

// SpectrumSlope fits, for every segment, a line to ln(mean b²) against
// ln(mode number) and returns the slopes. meanCoefsSquare holds nMode values
// per segment, S1..S7, as returned by MeanModalCoefsSquare.
func SpectrumSlope(meanCoefsSquare []float64, nMode int) ([]float64, error) {
	if nMode < 2 {
		return nil, fmt.Errorf("%d modes, need at least 2: %w", nMode, ErrSpectrum)
	}
	if len(meanCoefsSquare) != asm.NSegment*nMode {
		return nil, fmt.Errorf("%d values for %d modes: %w", len(meanCoefsSquare), nMode, ErrShape)
	}
	u := make([]float64, nMode)
	for i := range u {
		u[i] = math.Log(float64(i + 1))
	}
	eta := make([]float64, asm.NSegment)
	y := make([]float64, nMode)
	for sid := 0; sid < asm.NSegment; sid++ {
		for i, c := range meanCoefsSquare[sid*nMode : (sid+1)*nMode] {
			if !(c > 0) || math.IsInf(c, 1) {
				return nil, fmt.Errorf("S%d mode %d: mean square %g: %w", sid+1, i, c, ErrSpectrum)
			}
			y[i] = math.Log(c)
		}
		p, err := polyfit(u, y, 1)
		if err != nil {
			return nil, fmt.Errorf("S%d: %w", sid+1, err)
		}
		eta[sid] = p[1]
	}
	return eta, nil
}

// polyfit returns the coefficients, lowest degree first, of the least-squares
// polynomial of the given degree through (x, y).
func polyfit(x, y []float64, degree int) ([]float64, error) {
	a := vandermonde(x, degree)
	b := mat.NewVecDense(len(y), y)
	c := mat.NewVecDense(degree+1, nil)

	var qr mat.QR
	qr.Factorize(a)
	if err := qr.SolveVecTo(c, false, b); err != nil {
		return nil, fmt.Errorf("could not solve QR: %v: %w", err, ErrSpectrum)
	}
	return c.RawVector().Data, nil
}

func vandermonde(x []float64, degree int) *mat.Dense {
	v := mat.NewDense(len(x), degree+1, nil)
	for i := range x {
		for j, p := 0, 1.0; j <= degree; j, p = j+1, p*x[i] {
			v.Set(i, j, p)
		}
	}
	return v
}
