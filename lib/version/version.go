// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package version

import "fmt"

// Set with -ldflags "-X github.com/tuiman/tuiman/lib/version.GitCommit=...".
var (
	// Version is the release version. The frontend compares it against
	// its own at startup, so it changes only with a release.
	Version = "0.1.0"

	// GitCommit is the short commit hash of the build.
	GitCommit = "unknown"

	// GitDirty is "true" when the build tree had local changes.
	GitDirty = "false"

	// BuildTime is the UTC build timestamp.
	BuildTime = "unknown"
)

// Short returns Version alone. It is the ping result's version and the
// --version output.
func Short() string {
	return Version
}

// Info returns Version with the commit and build time, as in
// "0.1.0 (abc1234-dirty, 2026-10-01T00:00:00Z)".
func Info() string {
	commit := GitCommit
	if GitDirty == "true" {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, BuildTime)
}
