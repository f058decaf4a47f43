// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool opens the run history database as a small pool of
// zombiezen.com/go/sqlite connections.
//
// Every connection is configured for a single-user local database that
// the frontend may also read: write-ahead logging, NORMAL synchronous
// commits, and a five second busy timeout. Schema setup belongs to the
// caller and runs through [Config.OnConnect] on each new connection.
//
//	pool, err := sqlitepool.Open(sqlitepool.Config{
//	    Path:      paths.HistoryDB,
//	    OnConnect: migrate,
//	})
//	...
//	conn, err := pool.Take(ctx)
//	if err != nil {
//	    return err
//	}
//	defer pool.Put(conn)
//
// A borrowed *sqlite.Conn belongs to one goroutine until it is Put back.
// Queries use sqlitex.Execute directly; this package does not wrap them.
package sqlitepool
