// Package errorlog collects human readable diagnostics produced during a single scrape call.
package errorlog

import (
	"fmt"

	"github.com/cenkalti/trackerscrape/internal/logger"
)

// Log is an append-only list of messages.
// It is not safe for concurrent use; every call owns its own Log.
type Log struct {
	entries []string
	log     logger.Logger
}

// New returns an empty Log. Appended messages are also written to l at warning level if l is not nil.
func New(l logger.Logger) *Log {
	return &Log{log: l}
}

// Add appends a message built from the arguments in the manner of fmt.Sprint.
func (e *Log) Add(v ...any) {
	e.add(fmt.Sprint(v...))
}

// Addf appends a message built in the manner of fmt.Sprintf.
func (e *Log) Addf(format string, v ...any) {
	e.add(fmt.Sprintf(format, v...))
}

func (e *Log) add(msg string) {
	e.entries = append(e.entries, msg)
	if e.log != nil {
		e.log.Warning(msg)
	}
}

// Len returns the number of messages.
func (e *Log) Len() int { return len(e.entries) }

// HasErrors returns true if at least one message was added.
func (e *Log) HasErrors() bool { return len(e.entries) > 0 }

// Entries returns a copy of the messages in the order they were added.
func (e *Log) Entries() []string {
	out := make([]string, len(e.entries))
	copy(out, e.entries)
	return out
}
