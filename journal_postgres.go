package main

import (
	"context"
	"database/sql"
	"time"
)

type PostgresJournal struct {
	db *sql.DB
}

func NewPostgresJournal(db *sql.DB) *PostgresJournal {
	return &PostgresJournal{db: db}
}

func (p *PostgresJournal) Record(ctx context.Context, entries []JournalEntry) error {
	for _, entry := range entries {
		_, err := p.db.ExecContext(ctx,
			`INSERT INTO relay_journal (message_id, run_id, source_queue, mode, relayed_at)
             VALUES ($1, $2, $3, $4, $5)
             ON CONFLICT (run_id, message_id) DO NOTHING`,
			entry.MessageID, entry.RunID, entry.SourceQueue, string(entry.Mode), entry.RelayedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgresJournal) Cleanup(ctx context.Context, olderThan time.Duration) error {
	_, err := p.db.ExecContext(ctx,
		"DELETE FROM relay_journal WHERE relayed_at < $1",
		time.Now().Add(-olderThan),
	)
	return err
}

func (p *PostgresJournal) Close() error {
	// DB connection is managed elsewhere, nothing to close here
	return nil
}
