package database

import (
	"context"
	"fmt"
)

// Migrate creates the leads, deliveries and examples tables if missing.
func (db *DB) Migrate(ctx context.Context) error {
	ts := db.Dialect.timestampType()
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS leads (
			id                    TEXT PRIMARY KEY,
			identity_key          TEXT NOT NULL UNIQUE,
			profile_url           TEXT,
			first_name            TEXT,
			last_name             TEXT,
			email                 TEXT,
			phone                 TEXT,
			company               TEXT,
			title                 TEXT,
			location              TEXT,
			status                TEXT NOT NULL,
			verification_status   TEXT,
			draft_email_subject   TEXT,
			draft_email_body      TEXT,
			draft_connection_note TEXT,
			draft_chat_nudge      TEXT,
			attachment            TEXT,
			created_at            %[1]s NOT NULL,
			updated_at            %[1]s NOT NULL
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_leads_status ON leads (status)`,
		`CREATE INDEX IF NOT EXISTS idx_leads_email ON leads (LOWER(email))`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS deliveries (
			lead_id       TEXT NOT NULL REFERENCES leads (id) ON DELETE CASCADE,
			channel       TEXT NOT NULL,
			status        TEXT NOT NULL,
			external_id   TEXT,
			error         TEXT,
			claimed_at_ms BIGINT NOT NULL,
			completed_at  %s,
			PRIMARY KEY (lead_id, channel)
		)`, ts),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS examples (
			id         TEXT PRIMARY KEY,
			channel    TEXT NOT NULL,
			content    TEXT NOT NULL,
			context    TEXT,
			created_at %s NOT NULL
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_examples_channel ON examples (channel)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("database: migrate: %w", err)
		}
	}
	return nil
}
