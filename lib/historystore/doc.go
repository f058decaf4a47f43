// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package historystore records executed requests in a SQLite database
// and reads them back most recent first.
//
// Each run is one row in the runs table. Rows are never updated. The
// row id is the ordering key: [Store.RecentRuns] returns rows by
// descending id, which is insertion order reversed and does not depend
// on created_at formatting or clock skew.
//
// Response bodies at or above 4 KiB are stored compressed with the
// configured codec (zstd by default, or lz4) when compression actually
// shrinks them. The codec is recorded per row, so changing the setting
// never makes older rows unreadable.
//
// Databases written by earlier versions lack the snapshot and body
// columns. They are added in place when a connection is prepared.
package historystore
