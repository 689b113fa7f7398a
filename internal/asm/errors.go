package asm

import "errors"

var (
	// ErrProjectionLength is returned when a map handed to a fit is neither
	// full-grid nor segment-local in length.
	ErrProjectionLength = errors.New("asm: map length is neither grid size nor segment point count")

	// ErrBasisConstruction is returned when a mode matrix has no usable
	// pseudo-inverse.
	ErrBasisConstruction = errors.New("asm: pseudo-inverse of the mode matrix failed")

	// ErrDataIntegrity is returned for inconsistent array lengths, mode indices
	// out of range and malformed assemblies.
	ErrDataIntegrity = errors.New("asm: data integrity violation")
)
