// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the JSON shapes exchanged between the frontend and
// the backend over stdio: one [Envelope] per input line and one
// [Response] per output line, plus the typed results of the built-in
// methods. [OK] and [Fail] are the only ways the backend constructs a
// Response, which keeps the invariant that exactly one of result and
// error is present.
package ipc
