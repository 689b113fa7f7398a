// Package asm models the adaptive secondary mirror (ASM): seven segments, each
// carrying a modal basis defined on its own footprint of the exit-pupil grid.
//
// A Segment fits an OPD map either by projection on its modes (a fast
// correlation that is only exact for orthonormal modes) or by least squares
// through the pseudo-inverse of its mode matrix, built once when the segment
// is constructed. An Assembly holds the seven segments in order S1..S7 and
// reconstructs or removes the mirror shape on the full grid.
//
// Concurrency: fits on an Assembly fan out one goroutine per segment. Each
// segment only writes its own coefficients, so the fan-out needs a join and no
// lock. The *Out variants never write and are safe to call concurrently on a
// shared Assembly; the mutating Project and LeastSquare are not, callers must
// serialize them per Assembly.
package asm
