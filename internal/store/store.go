// Package store keeps a local SQLite ledger of completed repository builds
// (SPEC_FULL.md §4.8), grounded on the Store pattern in
// mattcburns-shoal-provision's internal/provisioner/store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no row matched the query.
var ErrNotFound = errors.New("not found")

// Build is one row of the ledger: a completed Repository.Build result.
type Build struct {
	ID   int64
	Time uint64
	Hash []byte
	Blob []byte
}

// Store wraps a SQLite connection holding the build-history table.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database at path and ensures its schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS builds (
  id   INTEGER PRIMARY KEY AUTOINCREMENT,
  time INTEGER NOT NULL,
  hash BLOB NOT NULL,
  blob BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_builds_time ON builds(time);`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// RecordBuild appends a completed build to the ledger.
func (s *Store) RecordBuild(ctx context.Context, buildTime uint64, hash, blob []byte) (int64, error) {
	const ins = `INSERT INTO builds(time, hash, blob) VALUES (?, ?, ?)`
	res, err := s.db.ExecContext(ctx, ins, buildTime, hash, blob)
	if err != nil {
		return 0, fmt.Errorf("record build: %w", err)
	}
	return res.LastInsertId()
}

// Latest returns the most recently recorded build, or ErrNotFound if the
// ledger is empty.
func (s *Store) Latest(ctx context.Context) (*Build, error) {
	const q = `SELECT id, time, hash, blob FROM builds ORDER BY time DESC LIMIT 1`
	return s.scanOne(ctx, q)
}

// ByID returns a specific build by its ledger id.
func (s *Store) ByID(ctx context.Context, id int64) (*Build, error) {
	const q = `SELECT id, time, hash, blob FROM builds WHERE id=?`
	return s.scanOne(ctx, q, id)
}

func (s *Store) scanOne(ctx context.Context, query string, args ...any) (*Build, error) {
	var b Build
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&b.ID, &b.Time, &b.Hash, &b.Blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan build: %w", err)
	}
	return &b, nil
}

// History returns up to limit most recent builds, newest first. limit <= 0
// returns every recorded build.
func (s *Store) History(ctx context.Context, limit int) ([]Build, error) {
	q := `SELECT id, time, hash, blob FROM builds ORDER BY time DESC`
	var args []any
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Build
	for rows.Next() {
		var b Build
		if err := rows.Scan(&b.ID, &b.Time, &b.Hash, &b.Blob); err != nil {
			return nil, fmt.Errorf("scan build: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return out, nil
}
