// Package clilog configures apex/log for the command line tools.
package clilog

import (
	"fmt"
	"io"
	"time"

	"github.com/apex/log"
)

// LevelFromVerbosity maps a verbosity from 1 (lowest) to 5 to a log level.
func LevelFromVerbosity(verbosity uint16) log.Level {
	switch verbosity {
	case 1:
		return log.FatalLevel
	case 2:
		return log.ErrorLevel
	case 3:
		return log.WarnLevel
	case 4:
		return log.InfoLevel
	default:
		return log.DebugLevel
	}
}

// NewLogger returns a logger writing to w with the given verbosity. Times are
// relative to the creation of the logger.
func NewLogger(w io.Writer, verbosity uint16) *log.Logger {
	return &log.Logger{
		Level:   LevelFromVerbosity(verbosity),
		Handler: &Handler{Writer: w, start: time.Now()},
	}
}

// Handler is a log.Handler printing one line per entry.
type Handler struct {
	io.Writer
	start time.Time
}

var _ log.Handler = &Handler{}

// HandleLog implements log.Handler.
func (h *Handler) HandleLog(e *log.Entry) (err error) {
	var s string
	elapsed := e.Timestamp.Sub(h.start).Seconds()
	if e.Level == log.DebugLevel {
		s = e.Message
	} else if e.Level == log.ErrorLevel {
		s = fmt.Sprintf("[%14.6f] <!err> %s", elapsed, e.Message)
	} else {
		s = fmt.Sprintf("[%14.6f] <%s> %s", elapsed, e.Level, e.Message)
	}
	if len(e.Fields) > 0 {
		s += fmt.Sprintf(": %+v", e.Fields)
	}
	s += "\n"
	_, err = h.Writer.Write([]byte(s))
	return
}
