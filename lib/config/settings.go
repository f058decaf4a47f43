// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds the tunable backend behavior.
type Settings struct {
	// HTTP configures the HTTP collaborator.
	HTTP HTTPSettings `yaml:"http"`

	// History configures run history reads.
	History HistorySettings `yaml:"history"`

	// Log configures the stderr logger.
	Log LogSettings `yaml:"log"`
}

// HTTPSettings configures outgoing requests.
type HTTPSettings struct {
	// Timeout bounds a whole request including reading the body, as a
	// Go duration string. Default: 30s
	Timeout string `yaml:"timeout"`

	// FollowRedirects controls whether 3xx responses are followed.
	// Default: true
	FollowRedirects *bool `yaml:"follow_redirects"`
}

// HistorySettings configures history reads.
type HistorySettings struct {
	// Limit is the number of most recent runs returned by bootstrap and
	// by runs.list without an explicit limit. Default: 200
	Limit int `yaml:"limit"`

	// Compression is the codec for large stored response bodies:
	// "zstd", "lz4", or "none". Default: zstd
	Compression string `yaml:"compression"`
}

// LogSettings configures logging.
type LogSettings struct {
	// Level is "info" or "debug". Default: info
	Level string `yaml:"level"`
}

// DefaultSettings returns the settings used when no file is present.
func DefaultSettings() *Settings {
	follow := true
	return &Settings{
		HTTP: HTTPSettings{
			Timeout:         "30s",
			FollowRedirects: &follow,
		},
		History: HistorySettings{Limit: 200, Compression: "zstd"},
		Log:     LogSettings{Level: "info"},
	}
}

// LoadSettings reads path over DefaultSettings. A missing file is not
// an error. The result is validated before it is returned.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return settings, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(settings); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	// An explicit "follow_redirects:" with no value decodes to nil.
	if settings.HTTP.FollowRedirects == nil {
		follow := true
		settings.HTTP.FollowRedirects = &follow
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Validate checks field values.
func (s *Settings) Validate() error {
	timeout, err := time.ParseDuration(s.HTTP.Timeout)
	if err != nil {
		return fmt.Errorf("http.timeout: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive, got %s", s.HTTP.Timeout)
	}
	if s.History.Limit <= 0 {
		return fmt.Errorf("history.limit must be positive, got %d", s.History.Limit)
	}
	switch s.History.Compression {
	case "zstd", "lz4", "none":
	default:
		return fmt.Errorf("history.compression must be \"zstd\", \"lz4\" or \"none\", got %q", s.History.Compression)
	}
	switch s.Log.Level {
	case "info", "debug":
	default:
		return fmt.Errorf("log.level must be \"info\" or \"debug\", got %q", s.Log.Level)
	}
	return nil
}

// HTTPTimeout returns the parsed HTTP timeout. Settings returned by
// LoadSettings always parse; an invalid value yields 30s.
func (s *Settings) HTTPTimeout() time.Duration {
	timeout, err := time.ParseDuration(s.HTTP.Timeout)
	if err != nil || timeout <= 0 {
		return 30 * time.Second
	}
	return timeout
}

// FollowRedirects reports whether redirects are followed.
func (s *Settings) FollowRedirects() bool {
	return s.HTTP.FollowRedirects == nil || *s.HTTP.FollowRedirects
}

// LogLevel maps Log.Level to a slog level.
func (s *Settings) LogLevel() slog.Level {
	if s.Log.Level == "debug" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
