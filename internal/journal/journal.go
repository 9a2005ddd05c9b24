// Package journal keeps the bounded, append-only activity log the operator
// console polls. It is deliberately tiny: a fixed-capacity ring of the most
// recent entries, safe for concurrent appenders and readers.
package journal

import (
	"fmt"
	"sync"
	"time"

	"github.com/hparsa/relaycast/internal/core/domain"
)

// Capacity is the number of entries retained; older entries are dropped
// silently on overflow.
const Capacity = 50

// Journal is an append-only bounded log of pipeline outcomes.
type Journal struct {
	mu      sync.Mutex
	nextID  int64
	entries []domain.LogEntry
	now     func() time.Time
}

// New creates an empty journal.
func New() *Journal {
	return &Journal{
		entries: make([]domain.LogEntry, 0, Capacity),
		now:     time.Now,
	}
}

// Append adds one entry, evicting the oldest when the ring is full.
func (j *Journal) Append(level domain.LogLevel, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.nextID++

	if len(j.entries) == Capacity {
		copy(j.entries, j.entries[1:])
		j.entries = j.entries[:Capacity-1]
	}

	j.entries = append(j.entries, domain.LogEntry{
		ID:        j.nextID,
		Timestamp: j.now(),
		Level:     level,
		Message:   message,
	})
}

// Infof appends a formatted INFO entry.
func (j *Journal) Infof(format string, args ...interface{}) {
	j.Append(domain.LevelInfo, fmt.Sprintf(format, args...))
}

// Successf appends a formatted SUCCESS entry.
func (j *Journal) Successf(format string, args ...interface{}) {
	j.Append(domain.LevelSuccess, fmt.Sprintf(format, args...))
}

// Warnf appends a formatted WARN entry.
func (j *Journal) Warnf(format string, args ...interface{}) {
	j.Append(domain.LevelWarn, fmt.Sprintf(format, args...))
}

// Errorf appends a formatted ERROR entry.
func (j *Journal) Errorf(format string, args ...interface{}) {
	j.Append(domain.LevelError, fmt.Sprintf(format, args...))
}

// Snapshot returns a copy of the retained entries, oldest first. Callers may
// hold onto the slice; it is never mutated by the journal.
func (j *Journal) Snapshot() []domain.LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()

	out := make([]domain.LogEntry, len(j.entries))
	copy(out, j.entries)

	return out
}
