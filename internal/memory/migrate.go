package memory

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// migration is one schema step. Its statements run in a single transaction
// and the version is recorded in the same transaction.
type migration struct {
	version int
	name    string
	stmts   []string
}

var migrations = []migration{
	{1, "threads and messages", []string{
		`CREATE TABLE IF NOT EXISTS threads (
			id         TEXT PRIMARY KEY,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			thread_id  TEXT NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			content    TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, id)`,
	}},
	{2, "assistant model and latency", []string{
		`ALTER TABLE messages ADD COLUMN model TEXT DEFAULT ''`,
		`ALTER TABLE messages ADD COLUMN latency_ms INTEGER DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS idx_threads_updated ON threads(updated_at)`,
	}},
}

// schemaVersion is the version a fully migrated database reports.
var schemaVersion = migrations[len(migrations)-1].version

// RunMigrations brings db up to schemaVersion. Columns that already exist
// (a half-applied upgrade) are accepted as applied.
func RunMigrations(db *sql.DB, logger *slog.Logger) error {
	ctx := context.Background()
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (
		version     INTEGER PRIMARY KEY,
		description TEXT,
		applied_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("create schema_version: %w", err)
	}

	current, err := SchemaVersion(db)
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if err := apply(ctx, db, m, logger); err != nil {
			return err
		}
		logger.Info("schema migrated", "version", m.version, "name", m.name)
	}
	return nil
}

func apply(ctx context.Context, db *sql.DB, m migration, logger *slog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("migration %d: begin: %w", m.version, err)
	}
	defer tx.Rollback()

	for i, stmt := range m.stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			if alreadyApplied(err) {
				logger.Warn("migration statement already applied", "version", m.version, "stmt", i)
				continue
			}
			return fmt.Errorf("migration %d statement %d: %w", m.version, i, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO schema_version (version, description) VALUES (?, ?)",
		m.version, m.name,
	); err != nil {
		return fmt.Errorf("migration %d: record: %w", m.version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migration %d: commit: %w", m.version, err)
	}
	return nil
}

func alreadyApplied(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

// SchemaVersion returns the highest applied migration, 0 for a database that
// has never been migrated.
func SchemaVersion(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow(
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("query schema table: %w", err)
	}
	if n == 0 {
		return 0, nil
	}

	var version int
	if err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("query schema version: %w", err)
	}
	return version, nil
}
