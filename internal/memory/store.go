package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"laureate/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.ThreadStore using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := RunMigrations(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return &SQLiteStore{db: db, logger: logger}, nil
}

// EnsureThread creates the thread if it does not exist yet.
func (s *SQLiteStore) EnsureThread(ctx context.Context, id string) error {
	now := time.Now()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO threads (id, created_at, updated_at) VALUES (?, ?, ?)`,
		id, now, now,
	)
	return err
}

// GetThread returns nil, nil when the thread is unknown.
func (s *SQLiteStore) GetThread(ctx context.Context, id string) (*domain.Thread, error) {
	var th domain.Thread
	err := s.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at FROM threads WHERE id = ?`, id,
	).Scan(&th.ID, &th.CreatedAt, &th.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &th, nil
}

func (s *SQLiteStore) DeleteThread(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE thread_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// AddMessage appends msg and bumps the thread's updated_at in one transaction.
func (s *SQLiteStore) AddMessage(ctx context.Context, threadID string, msg domain.MessageRecord) error {
	now := time.Now()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (thread_id, role, content, model, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		threadID, msg.Role, msg.Content, msg.Model, msg.LatencyMs, msg.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert %s message: %w", msg.Role, err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE threads SET updated_at = ? WHERE id = ?`, now, threadID,
	); err != nil {
		return fmt.Errorf("touch thread %s: %w", threadID, err)
	}
	return tx.Commit()
}

// GetMessages returns the last limit messages of a thread, oldest first.
// A non-positive limit falls back to 100.
func (s *SQLiteStore) GetMessages(ctx context.Context, threadID string, limit int) ([]domain.MessageRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, thread_id, role, content, model, latency_ms, created_at
		 FROM messages WHERE thread_id = ?
		 ORDER BY id DESC LIMIT ?`, threadID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query thread %s: %w", threadID, err)
	}
	defer rows.Close()

	var msgs []domain.MessageRecord
	for rows.Next() {
		var (
			m              domain.MessageRecord
			content, model sql.NullString
		)
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &content, &model, &m.LatencyMs, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Content, m.Model = content.String, model.String
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(msgs)
	return msgs, nil
}

// PruneIdle deletes threads (and their messages) not updated since cutoff.
func (s *SQLiteStore) PruneIdle(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE thread_id IN (SELECT id FROM threads WHERE updated_at < ?)`, cutoff,
	); err != nil {
		return 0, err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM threads WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("pruned idle threads", "count", n)
	}
	return n, nil
}

// Snapshot writes a consistent copy of the database to dest, which must not
// exist. It is safe to call while the gateway is serving.
func (s *SQLiteStore) Snapshot(ctx context.Context, dest string) error {
	if _, err := os.Stat(dest); err == nil {
		return fmt.Errorf("snapshot %s: %w", dest, os.ErrExist)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", dest); err != nil {
		return fmt.Errorf("snapshot %s: %w", dest, err)
	}
	return nil
}

// SchemaVersion reports the applied schema version.
func (s *SQLiteStore) SchemaVersion() (int, error) {
	return SchemaVersion(s.db)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
