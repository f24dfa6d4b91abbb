package main

import (
	"context"
	"time"
)

// one successfully relayed message, as recorded in the audit journal
type JournalEntry struct {
	MessageID   string
	RunID       string
	SourceQueue string
	Mode        RelayMode
	RelayedAt   time.Time
}

// audit trail of relayed messages
type RelayJournal interface {
	// records one round's worth of relayed messages
	Record(ctx context.Context, entries []JournalEntry) error

	// removes old entries to prevent unbounded growth
	Cleanup(ctx context.Context, olderThan time.Duration) error

	// releases any resources, could be a noop if not required
	Close() error
}
