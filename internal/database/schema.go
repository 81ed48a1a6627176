package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/enroll/queue-server-go/internal/model"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS queue (
		phone TEXT PRIMARY KEY,
		timestamp BIGINT NOT NULL,
		type TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_queue_type_timestamp ON queue (type, timestamp)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`,
}

// EnsureSchema creates the tables if they are missing and seeds the sms
// threshold. Safe to call on every start. When the SMS transport is not
// configured the threshold is forced back to 0.
func EnsureSchema(ctx context.Context, db *DB, smsEnabled bool) error {
	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range schema {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create schema: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT (key) DO NOTHING
		`), model.SettingSMS, "0"); err != nil {
			return fmt.Errorf("seed sms setting: %w", err)
		}

		if !smsEnabled {
			if _, err := tx.ExecContext(ctx, tx.Rebind(`
				UPDATE settings SET value = ? WHERE key = ?
			`), "0", model.SettingSMS); err != nil {
				return fmt.Errorf("reset sms setting: %w", err)
			}
		}

		return nil
	})
}
