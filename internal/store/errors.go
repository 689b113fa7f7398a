package store

import "errors"

// ErrFormat is returned when a file does not hold what its format promises.
var ErrFormat = errors.New("store: malformed file")
