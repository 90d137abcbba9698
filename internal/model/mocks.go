package model

import (
	"fmt"
	"strings"
)

// TestLogger is a [Logger] that keeps every line in memory.
type TestLogger struct {
	Lines []string
}

func (tl *TestLogger) append(msg string) {
	tl.Lines = append(tl.Lines, msg)
}

func (tl *TestLogger) Debug(msg string) {
	tl.append(msg)
}
func (tl *TestLogger) Debugf(format string, v ...any) {
	tl.append(fmt.Sprintf(format, v...))
}
func (tl *TestLogger) Info(msg string) {
	tl.append(msg)
}
func (tl *TestLogger) Infof(format string, v ...any) {
	tl.append(fmt.Sprintf(format, v...))
}
func (tl *TestLogger) Warn(msg string) {
	tl.append(msg)
}
func (tl *TestLogger) Warnf(format string, v ...any) {
	tl.append(fmt.Sprintf(format, v...))
}

// Contains returns true if any logged line contains substr.
func (tl *TestLogger) Contains(substr string) bool {
	for _, line := range tl.Lines {
		if strings.Contains(line, substr) {
			return true
		}
	}
	return false
}

func NewTestLogger() *TestLogger {
	return &TestLogger{
		Lines: make([]string, 0),
	}
}
