// Package monitoring holds the diagnostic logger shared by the viewer
// packages.
package monitoring

import (
	"fmt"
	"log"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger so tests can capture or mute output.
var Logf func(format string, v ...any) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...any)) {
	if f == nil {
		Logf = func(string, ...any) {}
		return
	}
	Logf = f
}

// Component returns a logger that tags every line with "[name] ". The
// returned function resolves Logf at call time, so a later SetLogger still
// takes effect.
func Component(name string) func(format string, v ...any) {
	prefix := fmt.Sprintf("[%s] ", name)
	return func(format string, v ...any) {
		Logf(prefix+format, v...)
	}
}
