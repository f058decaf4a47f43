// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which backend build is running. Release
// builds inject the commit and build time through -ldflags; development
// builds and tests see "unknown".
package version
