// Package logger provides the leveled, field-carrying logger used
// throughout docvault.
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync/atomic"

	"github.com/docvault-db/docvault/internal/metrics"
)

// Level is a logging severity.
type Level int32

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return fmt.Sprintf("LEVEL(%d)", int32(l))
	}
}

// Logger emits leveled lines through two stdlib log.Logger streams:
// Debug and Info go to the primary stream, Warn and Error to the error
// stream, so a daemon can keep chatty traffic out of its error output.
// Timestamping and write locking are the stdlib logger's job; this
// type only adds the level gate, the routing, and bound context
// fields. The minimum level is shared across every logger derived via
// With, so SetLevel on any of them takes effect everywhere at once.
type Logger struct {
	min    *atomic.Int32
	out    *log.Logger
	errOut *log.Logger
	fields string
}

const stdFlags = log.Ldate | log.Ltime | log.Lmicroseconds | log.LUTC | log.Lmsgprefix

// New creates a Logger writing every level to out.
func New(out io.Writer, level Level, prefix string) *Logger {
	return NewRouted(out, out, level, prefix)
}

// NewRouted creates a Logger that writes Debug/Info to out and
// Warn/Error to errOut.
func NewRouted(out, errOut io.Writer, level Level, prefix string) *Logger {
	min := &atomic.Int32{}
	min.Store(int32(level))
	return &Logger{
		min:    min,
		out:    log.New(out, prefix+" ", stdFlags),
		errOut: log.New(errOut, prefix+" ", stdFlags),
	}
}

// Default returns a Logger writing to stderr at LevelInfo.
func Default() *Logger {
	return New(os.Stderr, LevelInfo, "[docvault]")
}

// SetLevel changes the minimum level that is emitted, for this logger
// and every logger derived from it.
func (l *Logger) SetLevel(level Level) {
	l.min.Store(int32(level))
}

// With returns a derived Logger whose lines carry key=value in
// addition to any fields already bound.
func (l *Logger) With(key string, value interface{}) *Logger {
	field := fmt.Sprintf("%s=%v", key, value)
	derived := *l
	if derived.fields == "" {
		derived.fields = field
	} else {
		derived.fields += " " + field
	}
	return &derived
}

func (l *Logger) log(level Level, format string, args ...interface{}) {
	if int32(level) < l.min.Load() {
		return
	}
	metrics.LogMessages.WithLabelValues(level.String()).Inc()

	dst := l.out
	if level >= LevelWarn {
		dst = l.errOut
	}
	msg := fmt.Sprintf(format, args...)
	if l.fields != "" {
		msg += " " + l.fields
	}
	dst.Printf("%s %s", level, msg)
}

func (l *Logger) Debug(format string, args ...interface{}) { l.log(LevelDebug, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(LevelInfo, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(LevelWarn, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(LevelError, format, args...) }
