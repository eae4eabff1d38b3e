// Package dlog is a thin wrapper around the standard log package.
//
// The data layer never pulls in a structured logging library: every repo
// surveyed for this project logs with plain fmt/log calls, so we match that
// rather than introduce a dependency nothing else in the stack uses.
package dlog

import (
	"log"
	"os"
)

// Logger prefixes every line with a store name, mirroring the one-line
// progress messages the storage layer prints during shard rebuilds.
type Logger struct {
	l *log.Logger
}

// New creates a Logger that prefixes messages with name.
func New(name string) *Logger {
	return &Logger{l: log.New(os.Stderr, "[daf:"+name+"] ", log.LstdFlags)}
}

// Printf logs a formatted line.
func (lg *Logger) Printf(format string, args ...any) {
	if lg == nil {
		return
	}
	lg.l.Printf(format, args...)
}

// Println logs a line.
func (lg *Logger) Println(args ...any) {
	if lg == nil {
		return
	}
	lg.l.Println(args...)
}
