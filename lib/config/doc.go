// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package config resolves the backend's process-wide configuration.
//
// [AppPaths] is derived once at startup from $HOME and is not otherwise
// configurable: the config, state and cache directories follow the XDG
// layout under the home directory, requests live in a subdirectory of
// the config directory, and run history is a single SQLite file in the
// state directory. The value is immutable after construction and is
// passed by pointer to every handler that needs it.
//
// [Settings] carries the few tunables (HTTP timeout and redirect
// policy, the history bound used by bootstrap, log level). They are
// loaded from an optional YAML file, backend.yaml in the config
// directory. A missing file yields [DefaultSettings]; a present but
// invalid file is an error. Unknown keys are rejected so typos do not
// silently fall back to defaults. No environment variable overrides a
// settings value.
//
// This package depends on no other tuiman packages.
package config
