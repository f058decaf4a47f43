// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts wall-clock reads for testability.
//
// Production code injects [Real]; tests inject [Fake] and move time
// explicitly with [FakeClock.Advance] or [FakeClock.Set]. Components
// that stamp records (request updated_at, run created_at, export
// directory names) or measure durations take a Clock instead of calling
// time.Now directly.
package clock
