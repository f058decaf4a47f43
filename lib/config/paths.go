// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// appName is the directory name used under each XDG base.
const appName = "tuiman"

// ErrHomeNotSet is returned when $HOME is unset or empty.
var ErrHomeNotSet = errors.New("$HOME is not set")

// AppPaths holds the filesystem locations the backend reads and writes.
type AppPaths struct {
	ConfigDir   string `json:"config_dir"`
	StateDir    string `json:"state_dir"`
	CacheDir    string `json:"cache_dir"`
	RequestsDir string `json:"requests_dir"`
	HistoryDB   string `json:"history_db"`
}

// PathsFromLookup derives AppPaths using lookup (os.LookupEnv in the
// backend) to read $HOME.
func PathsFromLookup(lookup func(string) (string, bool)) (*AppPaths, error) {
	home, ok := lookup("HOME")
	if !ok || home == "" {
		return nil, ErrHomeNotSet
	}
	return PathsForHome(home), nil
}

// PathsForHome returns the layout rooted at the given home directory.
func PathsForHome(home string) *AppPaths {
	configDir := filepath.Join(home, ".config", appName)
	stateDir := filepath.Join(home, ".local", "state", appName)
	return &AppPaths{
		ConfigDir:   configDir,
		StateDir:    stateDir,
		CacheDir:    filepath.Join(home, ".cache", appName),
		RequestsDir: filepath.Join(configDir, "requests"),
		HistoryDB:   filepath.Join(stateDir, "history.db"),
	}
}

// SettingsFile returns the path of the optional settings file.
func (p *AppPaths) SettingsFile() string {
	return filepath.Join(p.ConfigDir, "backend.yaml")
}

// ExportsDir returns the default parent directory for exports.
func (p *AppPaths) ExportsDir() string {
	return filepath.Join(p.CacheDir, "exports")
}

// Ensure creates the config, state, cache and requests directories
// (mode 0700) if they do not exist.
func (p *AppPaths) Ensure() error {
	for _, dir := range []string{p.ConfigDir, p.StateDir, p.CacheDir, p.RequestsDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}
