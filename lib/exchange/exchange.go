// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package exchange moves request collections between machines as a
// directory of request files plus a manifest:
//
//	<dir>/manifest.json
//	<dir>/requests/<id>.json
//
// Exports never carry credentials. Secrets live in the keychain and are
// never read here; the auth_secret_ref naming them is cleared as well,
// since a reference is meaningless on another machine's keychain. The
// manifest records how many references were cleared so the user knows
// which requests need auth reattached.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tuiman/tuiman/lib/requeststore"
	"github.com/tuiman/tuiman/lib/schema"
)

// FormatVersion is written to every manifest.
const FormatVersion = 1

const (
	manifestName    = "manifest.json"
	requestsDirName = "requests"
)

// Manifest describes an export directory.
type Manifest struct {
	Format                 int    `json:"format"`
	ExportedAt             string `json:"exported_at"`
	RequestCount           int    `json:"request_count"`
	ScrubbedSecretRefCount int    `json:"scrubbed_secret_ref_count"`
	SecretsIncluded        bool   `json:"secrets_included"`
}

// Report summarizes a completed export.
type Report struct {
	Directory string `json:"directory"`
	Count     int    `json:"count"`
	Scrubbed  int    `json:"scrubbed"`
}

// SaveFunc persists one imported request.
type SaveFunc func(ctx context.Context, request schema.Request) (schema.Request, error)

// DefaultDir returns the timestamped export directory under base.
func DefaultDir(base string, now time.Time) string {
	return filepath.Join(base, "tuiman-export-"+now.Format("20060102-150405"))
}

// Export writes requests to dir with secret references cleared. dir is
// created if needed; existing files with the same names are replaced.
func Export(ctx context.Context, requests []schema.Request, dir string, now time.Time) (Report, error) {
	if dir == "" {
		return Report{}, errors.New("exchange: export directory is required")
	}
	requestsDir := filepath.Join(dir, requestsDirName)
	if err := os.MkdirAll(requestsDir, 0o700); err != nil {
		return Report{}, fmt.Errorf("exchange: creating %s: %w", requestsDir, err)
	}

	report := Report{Directory: dir}
	for _, request := range requests {
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
		if err := requeststore.ValidateID(request.ID); err != nil {
			return Report{}, fmt.Errorf("exchange: exporting %q: %w", request.Name, err)
		}
		if request.AuthSecretRef != "" {
			request.AuthSecretRef = ""
			report.Scrubbed++
		}
		path := filepath.Join(requestsDir, request.ID+".json")
		if err := writeJSON(path, request); err != nil {
			return Report{}, fmt.Errorf("exchange: %w", err)
		}
		report.Count++
	}

	manifest := Manifest{
		Format:                 FormatVersion,
		ExportedAt:             schema.FormatTimestamp(now),
		RequestCount:           report.Count,
		ScrubbedSecretRefCount: report.Scrubbed,
	}
	if err := writeJSON(filepath.Join(dir, manifestName), manifest); err != nil {
		return Report{}, fmt.Errorf("exchange: %w", err)
	}
	return report, nil
}

// Import reads every request file under dir/requests and passes each
// to save. All files are parsed before any is saved, so a malformed
// file imports nothing. Returns the number of requests saved.
func Import(ctx context.Context, dir string, save SaveFunc) (int, error) {
	if dir == "" {
		return 0, errors.New("exchange: import directory is required")
	}
	requestsDir := filepath.Join(dir, requestsDirName)
	entries, err := os.ReadDir(requestsDir)
	if err != nil {
		return 0, fmt.Errorf("exchange: reading %s: %w", requestsDir, err)
	}

	var requests []schema.Request
	for _, entry := range entries {
		if !requeststore.IsRequestEntry(requestsDir, entry) {
			continue
		}
		path := filepath.Join(requestsDir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return 0, fmt.Errorf("exchange: reading %s: %w", path, err)
		}
		// An empty id gets a fresh one on save rather than the file
		// name, which may collide with a local request.
		request, err := requeststore.ParseRequest(data, "")
		if err != nil {
			return 0, fmt.Errorf("exchange: invalid request file %s: %w", path, err)
		}
		requests = append(requests, request)
	}

	imported := 0
	for _, request := range requests {
		if err := ctx.Err(); err != nil {
			return imported, err
		}
		if _, err := save(ctx, request); err != nil {
			return imported, fmt.Errorf("exchange: saving %q: %w", request.Name, err)
		}
		imported++
	}
	return imported, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
