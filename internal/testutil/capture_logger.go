package testutil

import (
	"strings"
	"sync"
)

// Entry is one record captured by CaptureLogger.
type Entry struct {
	Level string
	Msg   string
	Args  []any
}

// CaptureLogger records log calls for assertions. Safe for concurrent use.
type CaptureLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func (c *CaptureLogger) add(level, msg string, args []any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = append(c.entries, Entry{Level: level, Msg: msg, Args: args})
}

// Debug records a debug entry.
func (c *CaptureLogger) Debug(msg string, args ...any) { c.add("debug", msg, args) }

// Info records an info entry.
func (c *CaptureLogger) Info(msg string, args ...any) { c.add("info", msg, args) }

// Warn records a warn entry.
func (c *CaptureLogger) Warn(msg string, args ...any) { c.add("warn", msg, args) }

// Error records an error entry.
func (c *CaptureLogger) Error(msg string, args ...any) { c.add("error", msg, args) }

// Entries returns a copy of everything recorded.
func (c *CaptureLogger) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Contains reports whether an entry at level has a message containing substr.
func (c *CaptureLogger) Contains(level, substr string) bool {
	for _, e := range c.Entries() {
		if e.Level == level && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}
