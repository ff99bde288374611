// Package logbuf aggregates console/log events from every attached
// session into one ordered buffer with cursor-based incremental reads.
package logbuf

import (
	"strings"
	"sync"
	"time"
)

// DefaultCapacity bounds the buffer; the oldest entries are evicted
// once it is exceeded. Eviction never reuses sequence numbers.
const DefaultCapacity = 5000

// Entry is one captured log event. Entries are append-only and never
// mutated after ingestion.
type Entry struct {
	Sequence uint64    `json:"sequence"`
	Time     time.Time `json:"time"`
	Level    string    `json:"level"` // "debug", "info", "warning", "error"
	TargetID string    `json:"targetId"`
	Text     string    `json:"text"`
	Source   string    `json:"source,omitempty"` // "console", "log", "exception"
}

// Filter narrows a query. Zero values mean "no constraint". Since is a
// cursor: only entries with a strictly greater sequence are returned.
type Filter struct {
	Levels   []string
	TargetID string
	Search   string
	Since    uint64
}

// Buffer holds captured entries. Sequence numbers are monotonic across
// the buffer's whole lifetime: Clear drops entries but never rewinds
// the counter, so cursors taken before a clear stay comparable and
// never resurface old entries.
type Buffer struct {
	mu       sync.Mutex
	entries  []Entry
	nextSeq  uint64
	capacity int
}

// New returns a buffer with the default capacity.
func New() *Buffer {
	return NewWithCapacity(DefaultCapacity)
}

// NewWithCapacity returns a buffer evicting oldest entries past cap.
func NewWithCapacity(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity}
}

// Append ingests one event and returns its assigned sequence.
func (b *Buffer) Append(e Entry) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSeq++
	e.Sequence = b.nextSeq
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	b.entries = append(b.entries, e)

	if len(b.entries) > b.capacity {
		drop := len(b.entries) - b.capacity
		b.entries = append(b.entries[:0], b.entries[drop:]...)
	}

	return e.Sequence
}

// Query returns entries satisfying every given predicate, ascending by
// sequence, plus the cursor to pass on the next call. When nothing
// matches, the caller's own cursor comes back so polling loops can
// always thread the returned value through.
func (b *Buffer) Query(f Filter) ([]Entry, uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Entry
	for _, e := range b.entries {
		if e.Sequence <= f.Since {
			continue
		}
		if f.TargetID != "" && e.TargetID != f.TargetID {
			continue
		}
		if len(f.Levels) > 0 && !levelMatch(f.Levels, e.Level) {
			continue
		}
		if f.Search != "" && !strings.Contains(e.Text, f.Search) {
			continue
		}
		out = append(out, e)
	}

	cursor := f.Since
	if len(out) > 0 {
		cursor = out[len(out)-1].Sequence
	}
	return out, cursor
}

// Len reports the number of retained entries.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Clear empties the buffer. Entries appended afterward continue the
// same sequence counter.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = nil
}

func levelMatch(levels []string, level string) bool {
	for _, l := range levels {
		if strings.EqualFold(l, level) {
			return true
		}
	}
	return false
}
