// Package model contains the data models shared by the selective-repeat
// endpoints and the networks they run over.
package model

// Logger is the generic logger definition. It is compatible with
// github.com/apex/log, whose log.Log is the default.
type Logger interface {
	// Debug emits a debug message.
	Debug(msg string)

	// Debugf formats and emits a debug message.
	Debugf(format string, v ...any)

	// Info emits an informational message.
	Info(msg string)

	// Infof formats and emits an informational message.
	Infof(format string, v ...any)

	// Warn emits a warning message.
	Warn(msg string)

	// Warnf formats and emits a warning message.
	Warnf(format string, v ...any)
}
