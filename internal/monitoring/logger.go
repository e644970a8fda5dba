// Package monitoring carries the process-wide diagnostic logger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but
// may be replaced by SetLogger. Tests or production code can redirect or mute
// it.
var Logf func(format string, v ...interface{}) = log.Printf

// Warnf logs degraded-path events: fallbacks applied, optional inputs
// missing, unit assumptions. It shares the sink with Logf so a single
// SetLogger call redirects everything.
var Warnf = func(format string, v ...interface{}) {
	Logf("warning: "+format, v...)
}

// Debugf is for high-volume diagnostics. No-op unless enabled with SetDebug.
var Debugf func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetDebug routes Debugf through the main logger when enabled.
func SetDebug(enabled bool) {
	if enabled {
		Debugf = func(format string, v ...interface{}) {
			Logf("debug: "+format, v...)
		}
		return
	}
	Debugf = func(string, ...interface{}) {}
}
