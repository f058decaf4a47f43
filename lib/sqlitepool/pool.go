// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package sqlitepool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// defaultPoolSize is one connection for the dispatch loop and one for
// anything that reads while a run is being recorded.
const defaultPoolSize = 2

// connectionPragmas run on every new connection, in order.
var connectionPragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

// Config describes the database to open.
type Config struct {
	// Path is the database file. Missing parent directories are created
	// with mode 0700.
	Path string

	// PoolSize is the number of connections. Zero means 2.
	PoolSize int

	// Logger receives debug messages on open and close. Nil discards.
	Logger *slog.Logger

	// OnConnect runs on each new connection after the pragmas. Its
	// error is returned from the Take that created the connection.
	OnConnect func(conn *sqlite.Conn) error
}

// Pool hands out connections to one database file. Its methods are
// safe for concurrent use.
type Pool struct {
	conns  *sqlitex.Pool
	path   string
	logger *slog.Logger
}

// Open prepares a pool. No connection is made until the first Take.
func Open(cfg Config) (*Pool, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlitepool: Path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = defaultPoolSize
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o700); err != nil {
		return nil, fmt.Errorf("sqlitepool: creating directory for %s: %w", cfg.Path, err)
	}

	onConnect := cfg.OnConnect
	conns, err := sqlitex.NewPool(cfg.Path, sqlitex.PoolOptions{
		PoolSize: size,
		PrepareConn: func(conn *sqlite.Conn) error {
			for _, pragma := range connectionPragmas {
				if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
					return fmt.Errorf("%s: %w", pragma, err)
				}
			}
			if onConnect == nil {
				return nil
			}
			if err := onConnect(conn); err != nil {
				return fmt.Errorf("preparing connection: %w", err)
			}
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: opening %s: %w", cfg.Path, err)
	}

	logger.Debug("database opened", "path", cfg.Path, "connections", size)
	return &Pool{conns: conns, path: cfg.Path, logger: logger}, nil
}

// Take borrows a connection, waiting until one is free or ctx ends.
// Every successful Take must be paired with a Put.
func (p *Pool) Take(ctx context.Context) (*sqlite.Conn, error) {
	conn, err := p.conns.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlitepool: %s: %w", p.path, err)
	}
	return conn, nil
}

// Put returns conn to the pool. A nil conn is ignored.
func (p *Pool) Put(conn *sqlite.Conn) {
	if conn != nil {
		p.conns.Put(conn)
	}
}

// Close waits for borrowed connections and closes them all.
func (p *Pool) Close() error {
	if err := p.conns.Close(); err != nil {
		return fmt.Errorf("sqlitepool: closing %s: %w", p.path, err)
	}
	p.logger.Debug("database closed", "path", p.path)
	return nil
}
