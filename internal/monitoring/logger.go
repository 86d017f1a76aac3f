package monitoring

import "log"

// Logf is the package-level diagnostic logger used by the command-line
// driver and the sinks. It defaults to log.Printf and may be replaced by
// SetLogger. The estimator and monitor packages never log.
var Logf func(format string, v ...interface{}) = log.Printf

// debug gates Debugf output.
var debug bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug enables or disables Debugf output.
func SetDebug(enabled bool) {
	debug = enabled
}

// Debugf logs through Logf only when debug output is enabled. Use it for
// per-observation traces that would flood a long stream.
func Debugf(format string, v ...interface{}) {
	if debug {
		Logf(format, v...)
	}
}
