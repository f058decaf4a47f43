// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package requeststore persists saved requests as one JSON file per
// request in a directory.
//
// File names are "<id>.json". Loading a directory considers only
// regular files whose names end in ".json"; subdirectories, symlinks,
// hidden temporary files and other suffixes are ignored. A directory
// that does not exist holds no requests. Request files may be edited by
// hand, so they are parsed as JSONC: // and /* */ comments and trailing
// commas are accepted. Fields missing from a file take the defaults of
// [schema.NewRequest]; a missing id falls back to the file name stem.
//
// A file that cannot be read or parsed fails the whole load with the
// file's path in the error. Partial results are never returned.
//
// Writes are atomic (temp file, fsync, rename) so a concurrent load
// never observes a half-written file.
package requeststore
