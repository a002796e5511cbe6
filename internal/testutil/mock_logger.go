// Package testutil provides common test doubles: a recording logger and an
// in-memory dictionary store.
package testutil

import (
	"sync"

	"github.com/biosustain/lifelike-annotator/internal/infrastructure/monitoring/logging"
)

// Entry is one captured log call.
type Entry struct {
	Level   string
	Message string
	Fields  []logging.Field
}

// MockLogger is a logging.Logger that records every call so tests can assert
// on what was logged.  Safe for concurrent use.
type MockLogger struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMockLogger() *MockLogger { return &MockLogger{} }

func (m *MockLogger) record(level, msg string, fields []logging.Field) {
	m.mu.Lock()
	m.entries = append(m.entries, Entry{Level: level, Message: msg, Fields: fields})
	m.mu.Unlock()
}

func (m *MockLogger) Debug(msg string, fields ...logging.Field) { m.record("debug", msg, fields) }
func (m *MockLogger) Info(msg string, fields ...logging.Field)  { m.record("info", msg, fields) }
func (m *MockLogger) Warn(msg string, fields ...logging.Field)  { m.record("warn", msg, fields) }
func (m *MockLogger) Error(msg string, fields ...logging.Field) { m.record("error", msg, fields) }
func (m *MockLogger) Fatal(msg string, fields ...logging.Field) { m.record("fatal", msg, fields) }

// With and Named return the same recorder; child-logger structure is not
// tracked, only the calls themselves.
func (m *MockLogger) With(fields ...logging.Field) logging.Logger { return m }
func (m *MockLogger) Named(name string) logging.Logger            { return m }

// Entries returns a snapshot of everything logged so far.
func (m *MockLogger) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Reset discards all recorded entries.
func (m *MockLogger) Reset() {
	m.mu.Lock()
	m.entries = nil
	m.mu.Unlock()
}

// Logged reports whether a call with the given level and message was made.
func (m *MockLogger) Logged(level, msg string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

var _ logging.Logger = (*MockLogger)(nil)
