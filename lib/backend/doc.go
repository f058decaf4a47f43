// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package backend implements the stdio JSON-RPC loop that serves the
// tuiman frontend.
//
// The frontend writes one JSON envelope per line and blocks reading one
// response line per envelope. [Server.Run] keeps that contract:
//
//   - Lines are handled strictly in order. Line N's response is written
//     and flushed before line N+1 is read.
//   - Every non-blank line gets exactly one response line. Blank and
//     whitespace-only lines get none.
//   - A line that does not decode as an envelope gets a failure with id
//     0 and an "invalid request: " message.
//   - An unknown method gets "unknown method: <name>".
//   - A handler failure is rendered as "<method> failed: " followed by
//     its cause chain, most specific cause last, on one line.
//
// Nothing that goes wrong while serving one line ends the loop. Run
// returns only when input reaches EOF (nil), the context is cancelled,
// reading fails, or a response cannot be written, since a frontend that
// cannot receive responses cannot make progress either.
//
// The bootstrap method assembles the frontend's initial view: every
// saved request sorted by name case-insensitively (stable), plus the
// most recent runs, newest first. Both sources are re-read on every
// call, and a failure of either fails the whole call; there is no
// partial payload.
package backend
