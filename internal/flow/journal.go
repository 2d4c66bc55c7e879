package flow

import (
	"fmt"
	"sync"
	"time"

	"github.com/seenimoa/stackswap/pkg/models"
)

// JournalEntry is one recorded state change.
type JournalEntry struct {
	ID      string           `json:"id"`
	Time    time.Time        `json:"time"`
	Attempt string           `json:"attempt"`
	From    models.FlowState `json:"from"`
	To      models.FlowState `json:"to"`
	Reason  string           `json:"reason,omitempty"`
}

// Journal keeps an in-memory audit trail of transitions.
type Journal struct {
	mu      sync.Mutex
	entries []JournalEntry
}

// NewJournal creates an empty journal.
func NewJournal() *Journal {
	return &Journal{
		entries: make([]JournalEntry, 0, 64),
	}
}

// Log records an entry.
func (j *Journal) Log(e JournalEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("FJ-%d", len(j.entries)+1)
	}
	j.entries = append(j.entries, e)
}

// Entries returns all entries.
func (j *Journal) Entries() []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]JournalEntry, len(j.entries))
	copy(out, j.entries)
	return out
}

// Recent returns the last n entries.
func (j *Journal) Recent(n int) []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	if n >= len(j.entries) {
		out := make([]JournalEntry, len(j.entries))
		copy(out, j.entries)
		return out
	}
	out := make([]JournalEntry, n)
	copy(out, j.entries[len(j.entries)-n:])
	return out
}

// Count returns the number of entries.
func (j *Journal) Count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.entries)
}

// ForAttempt returns the entries of one attempt in order.
func (j *Journal) ForAttempt(attempt string) []JournalEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []JournalEntry
	for _, e := range j.entries {
		if e.Attempt == attempt {
			out = append(out, e)
		}
	}
	return out
}
