/**
 * Logging for the verifier worker.
 *
 * Two line shapes are used across the tree: component loggers with a fixed
 * name prefix, and session loggers whose prefix carries the session ID so one
 * verification can be followed from the queue handler through every pipeline
 * stage. Both tag each line with a level and append key=value context.
 */

package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

// Logger writes level-tagged, prefixed lines with key=value context.
type Logger struct {
	out *log.Logger
}

// NewLogger returns a logger for a named worker component.
func NewLogger(component string) *Logger {
	return &Logger{out: log.New(os.Stdout, fmt.Sprintf("[%s] ", component), log.LstdFlags)}
}

// ForSession returns a logger whose lines carry the session marker used by
// all per-frame progress output.
func ForSession(sessionID string) *Logger {
	return &Logger{out: log.New(os.Stdout, fmt.Sprintf("[Session %s] ", sessionID), log.LstdFlags)}
}

// SetOutput redirects the logger's writer.
func (l *Logger) SetOutput(w io.Writer) {
	l.out.SetOutput(w)
}

// Info logs routine progress.
func (l *Logger) Info(msg string, keysAndValues ...interface{}) {
	l.emit("INFO", msg, keysAndValues...)
}

// Warn logs a degraded but non-fatal condition.
func (l *Logger) Warn(msg string, keysAndValues ...interface{}) {
	l.emit("WARN", msg, keysAndValues...)
}

// Error logs a failure that ends the current operation.
func (l *Logger) Error(msg string, keysAndValues ...interface{}) {
	l.emit("ERROR", msg, keysAndValues...)
}

// Debug logs detail useful only when tracing a single frame.
func (l *Logger) Debug(msg string, keysAndValues ...interface{}) {
	l.emit("DEBUG", msg, keysAndValues...)
}

// emit writes one line; a trailing key without a value is dropped.
func (l *Logger) emit(level, msg string, keysAndValues ...interface{}) {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", level, msg)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keysAndValues[i], keysAndValues[i+1])
	}
	l.out.Print(b.String())
}
