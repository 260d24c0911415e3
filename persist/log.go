// Package persist supplies the ambient logging and config-file persistence
// used throughout contractcore: a timestamped file logger and a
// checksummed JSON save/load pair. Adapted from the teacher's persist
// package, which this pack retained only as test files — the source here
// is written fresh in the same idiom (persist/log_test.go, persist/json_test.go)
// rather than copied.
package persist

import (
	"fmt"
	"log"
	"os"
)

// Logger is a thin wrapper over the standard library logger that writes
// timestamped lines to a file, matching the STARTUP/SHUTDOWN bracketing
// persist/log_test.go exercises.
type Logger struct {
	*log.Logger
	file *os.File
}

// NewLogger opens (or creates) filename and returns a Logger that appends
// to it, writing a STARTUP line immediately.
func NewLogger(filename string) (*Logger, error) {
	file, err := os.OpenFile(filename, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil, err
	}
	l := &Logger{
		Logger: log.New(file, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile|log.LUTC),
		file:   file,
	}
	l.Println("STARTUP: contractcore logger has started logging")
	return l, nil
}

// Debugln logs a line at debug severity. contractcore does not distinguish
// build-time debug/release logging the way the teacher's build.DEBUG flag
// does; this is always enabled.
func (l *Logger) Debugln(v ...interface{}) {
	l.Output(2, fmt.Sprintln(v...))
}

// Severe logs a line that should draw operator attention but is not fatal.
func (l *Logger) Severe(v ...interface{}) {
	l.Output(2, "SEVERE: "+fmt.Sprintln(v...))
}

// Critical logs a line describing a bug or unrecoverable invariant
// violation, matching the severity the teacher's build.Critical reports.
func (l *Logger) Critical(v ...interface{}) {
	l.Output(2, "CRITICAL: "+fmt.Sprintln(v...))
}

// Close writes a SHUTDOWN line and closes the underlying file.
func (l *Logger) Close() error {
	l.Println("SHUTDOWN: contractcore logger is closing")
	return l.file.Close()
}
