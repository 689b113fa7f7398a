// Package monitoring holds the diagnostic logger shared by the loaders,
// the batch pipeline and the command-line tools.
package monitoring

import (
	"log"
	"time"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests mute it with SetLogger(nil).
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Timed logs "<label> ..." immediately and returns a function that logs the
// elapsed time when called, e.g. `defer monitoring.Timed("assembling segments")()`.
func Timed(label string) func() {
	Logf("%s ...", label)
	start := time.Now()
	return func() {
		Logf("%s done in %s", label, time.Since(start).Round(time.Millisecond))
	}
}
