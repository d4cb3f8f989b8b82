package logging

import (
	"context"
	"maps"
	"sync"
)

// Entry is a single record captured by MemoryLogger.
type Entry struct {
	Level   Level
	Message string
	Err     error
	Fields  Fields
}

// MemoryLogger keeps every entry at or above its level in memory. Loggers
// derived with WithFields share the same entry buffer.
type MemoryLogger struct {
	store  *entryStore
	fields Fields
	level  *Level
}

type entryStore struct {
	mu      sync.Mutex
	entries []Entry
}

// NewMemoryLogger creates a memory logger that captures every level.
func NewMemoryLogger() *MemoryLogger {
	level := DebugLevel
	return &MemoryLogger{
		store:  &entryStore{},
		fields: make(Fields),
		level:  &level,
	}
}

func (m *MemoryLogger) record(level Level, err error, msg string, fields ...Fields) {
	if level < *m.level {
		return
	}
	all := make(Fields, len(m.fields))
	maps.Copy(all, m.fields)
	for _, f := range fields {
		maps.Copy(all, f)
	}

	m.store.mu.Lock()
	m.store.entries = append(m.store.entries, Entry{Level: level, Message: msg, Err: err, Fields: all})
	m.store.mu.Unlock()
}

func (m *MemoryLogger) Debug(msg string, fields ...Fields) { m.record(DebugLevel, nil, msg, fields...) }
func (m *MemoryLogger) Info(msg string, fields ...Fields)  { m.record(InfoLevel, nil, msg, fields...) }
func (m *MemoryLogger) Warn(msg string, fields ...Fields)  { m.record(WarnLevel, nil, msg, fields...) }

func (m *MemoryLogger) Error(err error, msg string, fields ...Fields) {
	m.record(ErrorLevel, err, msg, fields...)
}

// Fatal records the entry but never exits the process.
func (m *MemoryLogger) Fatal(err error, msg string, fields ...Fields) {
	m.record(FatalLevel, err, msg, fields...)
}

func (m *MemoryLogger) WithFields(fields Fields) Logger {
	merged := make(Fields, len(m.fields)+len(fields))
	maps.Copy(merged, m.fields)
	maps.Copy(merged, fields)
	return &MemoryLogger{store: m.store, fields: merged, level: m.level}
}

func (m *MemoryLogger) WithContext(ctx context.Context) Logger {
	if fields, ok := FieldsFromContext(ctx); ok {
		return m.WithFields(fields)
	}
	return m
}

func (m *MemoryLogger) SetLevel(level Level) {
	*m.level = level
}

// Entries returns a copy of the captured entries in order.
func (m *MemoryLogger) Entries() []Entry {
	m.store.mu.Lock()
	defer m.store.mu.Unlock()
	out := make([]Entry, len(m.store.entries))
	copy(out, m.store.entries)
	return out
}

// EntriesAt returns the captured entries with exactly the given level.
func (m *MemoryLogger) EntriesAt(level Level) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// Reset drops all captured entries.
func (m *MemoryLogger) Reset() {
	m.store.mu.Lock()
	m.store.entries = nil
	m.store.mu.Unlock()
}
