package opd

import "errors"

var (
	// ErrMaskLength is returned when a mask does not cover the field sample for sample.
	ErrMaskLength = errors.New("opd: mask length does not match field length")

	// ErrFieldLength is returned when two fields of different lengths are combined.
	ErrFieldLength = errors.New("opd: field lengths differ")
)
