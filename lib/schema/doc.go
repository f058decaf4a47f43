// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the record types shared by every part of the
// backend: [Request], a saved HTTP call template, and [RunEntry], one
// historical execution of a request.
//
// The JSON field names are the contract with the frontend and with the
// on-disk request files, so they use snake_case and every field is
// always present (no omitempty). Records carry no behavior beyond
// defaulting and rendering helpers.
package schema
