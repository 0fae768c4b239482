package bot

import (
	"fmt"
	"sync"
	"time"
)

// ActivityLog is an append-only list of short event descriptions, drained
// by the daily summary. No cap: the drain is the bound.
type ActivityLog struct {
	entries []string
	mu      sync.Mutex
}

// NewActivityLog creates an empty log.
func NewActivityLog() *ActivityLog {
	return &ActivityLog{}
}

// Record appends a timestamped entry.
func (l *ActivityLog) Record(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries,
		fmt.Sprintf("%s %s", time.Now().Format("15:04"), fmt.Sprintf(format, args...)))
}

// Len returns the number of pending entries.
func (l *ActivityLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Last returns the most recent entry, or empty string.
func (l *ActivityLog) Last() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return ""
	}
	return l.entries[len(l.entries)-1]
}

// Drain returns all entries and resets the log to empty.
func (l *ActivityLog) Drain() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.entries
	l.entries = nil
	return out
}
