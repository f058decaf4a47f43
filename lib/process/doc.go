// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides entrypoint helpers for the backend binary.
// It covers the raw I/O that happens before the structured logger
// exists: reporting a startup-fatal error to stderr and exiting.
//
// Stdout belongs to the JSON-RPC stream, so nothing in this package
// ever writes there.
package process
