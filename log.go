// log.go - injectable log sink

package svrcore

import (
	"log"
	"os"
)

// Logger is the minimal sink the core writes diagnostics to. Hosts that embed
// svrcore wire their own implementation in at NewCore; nothing in this
// package reaches for a global logger.
type Logger interface {
	Errorf(format string, args ...any)
	Infof(format string, args ...any)
}

// stdLogger backs Logger with the standard library logger, matching the
// teacher's own bare fmt.Printf/log.Printf call sites rather than pulling in
// a structured logging library that nothing else in the corpus uses.
type stdLogger struct {
	l *log.Logger
}

// NewStdLogger returns a Logger that writes to stderr with a "svrcore: " prefix.
func NewStdLogger() Logger {
	return &stdLogger{l: log.New(os.Stderr, "svrcore: ", log.LstdFlags)}
}

func (s *stdLogger) Errorf(format string, args ...any) { s.l.Printf("ERROR: "+format, args...) }
func (s *stdLogger) Infof(format string, args ...any)  { s.l.Printf(format, args...) }

// nopLogger discards everything; used when a caller omits a logger.
type nopLogger struct{}

func (nopLogger) Errorf(string, ...any) {}
func (nopLogger) Infof(string, ...any)  {}
