// Package monitoring holds the diagnostic logger shared by the measurement packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced with SetLogger so tests can capture or mute warnings.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a warning-level message through Logf.
func Warnf(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}
