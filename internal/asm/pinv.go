package asm

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const machEps = 0x1p-52

// pseudoInverse returns the Moore-Penrose pseudo-inverse of a through its thin
// SVD. Singular values at or below tol are dropped; tol <= 0 selects
// max(rows, cols)·eps·σmax.
func pseudoInverse(a mat.Matrix, tol float64) (*mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, fmt.Errorf("svd did not converge: %w", ErrBasisConstruction)
	}
	s := svd.Values(nil)
	if len(s) == 0 || math.IsNaN(s[0]) || math.IsInf(s[0], 0) {
		return nil, fmt.Errorf("singular values not finite: %w", ErrBasisConstruction)
	}
	if tol <= 0 {
		r, c := a.Dims()
		tol = float64(max(r, c)) * machEps * s[0]
	}

	inv := make([]float64, len(s))
	rank := 0
	for i, sv := range s {
		if sv > tol {
			inv[i] = 1 / sv
			rank++
		}
	}
	if rank == 0 {
		return nil, fmt.Errorf("no singular value above %g: %w", tol, ErrBasisConstruction)
	}

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	var vs mat.Dense
	vs.Mul(&v, mat.NewDiagDense(len(inv), inv))
	var pinv mat.Dense
	pinv.Mul(&vs, u.T())
	return &pinv, nil
}
