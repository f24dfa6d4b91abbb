package main

import (
	"context"
	"sync"
	"time"
)

type InMemoryJournal struct {
	mu      sync.RWMutex
	entries map[string]JournalEntry // keyed by run id + message id
}

func NewInMemoryJournal() *InMemoryJournal {
	return &InMemoryJournal{
		entries: make(map[string]JournalEntry),
	}
}

func (j *InMemoryJournal) Record(ctx context.Context, entries []JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, entry := range entries {
		j.entries[entry.RunID+"/"+entry.MessageID] = entry
	}
	return nil
}

func (j *InMemoryJournal) Cleanup(ctx context.Context, olderThan time.Duration) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	for key, entry := range j.entries {
		if entry.RelayedAt.Before(cutoff) {
			delete(j.entries, key)
		}
	}
	return nil
}

func (j *InMemoryJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = nil
	return nil
}

// Len reports the number of recorded entries.
func (j *InMemoryJournal) Len() int {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return len(j.entries)
}
