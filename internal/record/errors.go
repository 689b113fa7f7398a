package record

import "errors"

var (
	// ErrShape is returned when a record's vectors do not have the lengths its
	// segment and mode counts imply, or when records of a batch disagree.
	ErrShape = errors.New("record: inconsistent vector lengths")

	// ErrSpectrum is returned when a modal spectrum cannot be fitted in log-log
	// space.
	ErrSpectrum = errors.New("record: modal spectrum fit failed")
)
