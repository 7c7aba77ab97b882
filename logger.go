package mtprotosender

import (
	"fmt"
	"os"

	"github.com/fatih/color"
)

// LogHandler is the injected logging capability. Implementations
// receive already-formatted messages; Error additionally carries the
// triggering error value.
type LogHandler interface {
	Error(err error, format string, args ...interface{})
	Warn(format string, args ...interface{})
	Info(format string, args ...interface{})
	Debug(format string, args ...interface{})
}

// Logger wraps an optional LogHandler so call sites never need a nil
// check.
type Logger struct {
	hnd LogHandler
}

func (l Logger) Error(err error, format string, args ...interface{}) {
	if l.hnd != nil {
		l.hnd.Error(err, format, args...)
	}
}

func (l Logger) Warn(format string, args ...interface{}) {
	if l.hnd != nil {
		l.hnd.Warn(format, args...)
	}
}

func (l Logger) Info(format string, args ...interface{}) {
	if l.hnd != nil {
		l.hnd.Info(format, args...)
	}
}

func (l Logger) Debug(format string, args ...interface{}) {
	if l.hnd != nil {
		l.hnd.Debug(format, args...)
	}
}

// SimpleLogHandler prints level-tagged, colorized lines to stderr. It is
// not installed by default: a Sender built with a nil LogHandler
// discards every message.
type SimpleLogHandler struct {
	Verbose bool // if false, Debug() calls are discarded
}

var (
	colErr  = color.New(color.FgRed, color.Bold)
	colWarn = color.New(color.FgYellow)
	colInfo = color.New(color.FgCyan)
	colDbg  = color.New(color.FgWhite)
)

func (h *SimpleLogHandler) Error(err error, format string, args ...interface{}) {
	colErr.Fprintf(os.Stderr, "[ERROR] %s: %s\n", fmt.Sprintf(format, args...), err)
}

func (h *SimpleLogHandler) Warn(format string, args ...interface{}) {
	colWarn.Fprintf(os.Stderr, "[WARN] %s\n", fmt.Sprintf(format, args...))
}

func (h *SimpleLogHandler) Info(format string, args ...interface{}) {
	colInfo.Fprintf(os.Stderr, "[INFO] %s\n", fmt.Sprintf(format, args...))
}

func (h *SimpleLogHandler) Debug(format string, args ...interface{}) {
	if !h.Verbose {
		return
	}
	colDbg.Fprintf(os.Stderr, "[DEBUG] %s\n", fmt.Sprintf(format, args...))
}
