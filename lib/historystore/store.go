// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package historystore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/tuiman/tuiman/lib/clock"
	"github.com/tuiman/tuiman/lib/schema"
	"github.com/tuiman/tuiman/lib/sqlitepool"
)

const createRunsTable = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL,
	request_name TEXT NOT NULL,
	method TEXT NOT NULL,
	url TEXT NOT NULL,
	status_code INTEGER NOT NULL DEFAULT 0,
	duration_ms INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_request ON runs(request_id, id);
`

// addedColumns are the columns introduced after the first schema, in
// the order they were added.
var addedColumns = []struct {
	name       string
	definition string
}{
	{"request_snapshot", "TEXT NOT NULL DEFAULT ''"},
	{"response_body", "BLOB"},
	{"response_encoding", "TEXT NOT NULL DEFAULT ''"},
	{"response_size", "INTEGER NOT NULL DEFAULT 0"},
}

const selectRecent = `
SELECT id, request_id, request_name, method, url, status_code,
	duration_ms, error, created_at, request_snapshot,
	response_body, response_encoding, response_size
FROM runs
ORDER BY id DESC
LIMIT ?`

const insertRun = `
INSERT INTO runs (
	request_id, request_name, method, url, status_code, duration_ms,
	error, created_at, request_snapshot, response_body,
	response_encoding, response_size
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Config holds the parameters for opening a Store.
type Config struct {
	// Path is the database file. Missing directories are created on
	// first use.
	Path string

	// Compression is the body codec for new rows: EncodingZstd,
	// EncodingLZ4 or EncodingNone. Empty means zstd.
	Compression string

	// Clock stamps created_at on runs that arrive without one. Nil
	// uses the real clock.
	Clock clock.Clock

	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
}

// Store is the run history. It is safe for concurrent use.
type Store struct {
	path        string
	compression string
	clock       clock.Clock
	logger      *slog.Logger

	mu   sync.Mutex
	pool *sqlitepool.Pool
}

// Open checks cfg and returns a Store. The database itself is opened
// and migrated by the first read or write, so a damaged or locked file
// fails those calls and not Open.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("historystore: Path is required")
	}
	compression := cfg.Compression
	if compression == "" {
		compression = EncodingZstd
	}
	switch compression {
	case EncodingZstd, EncodingLZ4, EncodingNone:
	default:
		return nil, fmt.Errorf("historystore: unsupported compression %q", compression)
	}

	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Store{
		path:        cfg.Path,
		compression: compression,
		clock:       clk,
		logger:      logger,
	}, nil
}

// Close closes the database if it was opened.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pool == nil {
		return nil
	}
	err := s.pool.Close()
	s.pool = nil
	return err
}

// take borrows a connection, opening the pool on first use. A failed
// open is not remembered; the next call tries again.
func (s *Store) take(ctx context.Context) (*sqlitepool.Pool, *sqlite.Conn, error) {
	s.mu.Lock()
	if s.pool == nil {
		pool, err := sqlitepool.Open(sqlitepool.Config{
			Path:      s.path,
			Logger:    s.logger,
			OnConnect: migrate,
		})
		if err != nil {
			s.mu.Unlock()
			return nil, nil, err
		}
		s.pool = pool
	}
	pool := s.pool
	s.mu.Unlock()

	conn, err := pool.Take(ctx)
	if err != nil {
		return nil, nil, err
	}
	return pool, conn, nil
}

// RecentRuns returns up to limit runs, most recent first. A limit of
// zero or less returns an empty slice.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]schema.RunEntry, error) {
	runs := []schema.RunEntry{}
	if limit <= 0 {
		return runs, nil
	}

	pool, conn, err := s.take(ctx)
	if err != nil {
		return nil, fmt.Errorf("historystore: recent runs: %w", err)
	}
	defer pool.Put(conn)

	err = sqlitex.Execute(conn, selectRecent, &sqlitex.ExecOptions{
		Args: []any{int64(limit)},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			run, err := scanRun(stmt)
			if err != nil {
				return err
			}
			runs = append(runs, run)
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("historystore: recent runs: %w", err)
	}
	return runs, nil
}

// RecordRun inserts run and returns its new id. run.ID is ignored on
// input and set on success; an empty CreatedAt is stamped from the
// store's clock.
func (s *Store) RecordRun(ctx context.Context, run *schema.RunEntry) (int64, error) {
	if run.CreatedAt == "" {
		run.CreatedAt = schema.FormatTimestamp(s.clock.Now())
	}

	body, encoding, err := encodeBody([]byte(run.ResponseBody), s.compression)
	if err != nil {
		return 0, fmt.Errorf("historystore: record run: %w", err)
	}

	pool, conn, err := s.take(ctx)
	if err != nil {
		return 0, fmt.Errorf("historystore: record run: %w", err)
	}
	defer pool.Put(conn)

	err = sqlitex.Execute(conn, insertRun, &sqlitex.ExecOptions{
		Args: []any{
			run.RequestID,
			run.RequestName,
			run.Method,
			run.URL,
			run.StatusCode,
			run.DurationMS,
			run.Error,
			run.CreatedAt,
			run.RequestSnapshot,
			body,
			encoding,
			int64(len(run.ResponseBody)),
		},
	})
	if err != nil {
		return 0, fmt.Errorf("historystore: record run: %w", err)
	}

	run.ID = conn.LastInsertRowID()
	s.logger.Debug("recorded run",
		"id", run.ID,
		"request_id", run.RequestID,
		"status_code", run.StatusCode,
		"body_bytes", len(run.ResponseBody),
		"stored_bytes", len(body),
		"encoding", encoding,
	)
	return run.ID, nil
}

func scanRun(stmt *sqlite.Stmt) (schema.RunEntry, error) {
	run := schema.RunEntry{
		ID:              stmt.ColumnInt64(0),
		RequestID:       stmt.ColumnText(1),
		RequestName:     stmt.ColumnText(2),
		Method:          stmt.ColumnText(3),
		URL:             stmt.ColumnText(4),
		StatusCode:      stmt.ColumnInt64(5),
		DurationMS:      stmt.ColumnInt64(6),
		Error:           stmt.ColumnText(7),
		CreatedAt:       stmt.ColumnText(8),
		RequestSnapshot: stmt.ColumnText(9),
	}

	if !stmt.ColumnIsNull(10) {
		stored := make([]byte, stmt.ColumnLen(10))
		stmt.ColumnBytes(10, stored)
		body, err := decodeBody(stored, stmt.ColumnText(11), stmt.ColumnInt(12))
		if err != nil {
			return schema.RunEntry{}, fmt.Errorf("run %d: %w", run.ID, err)
		}
		run.ResponseBody = string(body)
	}
	return run, nil
}

// migrate creates the runs table and adds any columns an older
// database is missing. It runs on every new connection and is
// idempotent.
func migrate(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, createRunsTable, nil); err != nil {
		return fmt.Errorf("creating runs table: %w", err)
	}

	existing := make(map[string]bool)
	err := sqlitex.ExecuteTransient(conn, "PRAGMA table_info(runs)", &sqlitex.ExecOptions{
		ResultFunc: func(stmt *sqlite.Stmt) error {
			existing[stmt.ColumnText(1)] = true
			return nil
		},
	})
	if err != nil {
		return fmt.Errorf("reading runs columns: %w", err)
	}

	for _, column := range addedColumns {
		if existing[column.name] {
			continue
		}
		statement := fmt.Sprintf("ALTER TABLE runs ADD COLUMN %s %s", column.name, column.definition)
		err := sqlitex.ExecuteTransient(conn, statement, nil)
		// Another connection may have added it between the check and now.
		if err != nil && !strings.Contains(err.Error(), "duplicate column name") {
			return fmt.Errorf("adding column %s: %w", column.name, err)
		}
	}
	return nil
}
