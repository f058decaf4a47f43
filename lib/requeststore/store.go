// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package requeststore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/tuiman/tuiman/lib/clock"
	"github.com/tuiman/tuiman/lib/schema"
)

const (
	fileSuffix     = ".json"
	filePermission = 0o600
	dirPermission  = 0o700
)

var (
	// ErrNotFound is returned by Get when no file exists for the id.
	ErrNotFound = errors.New("request not found")

	// ErrInvalidID is returned when an id cannot be used as a file name.
	ErrInvalidID = errors.New("invalid request id")
)

// Store reads and writes request files. It holds no directory of its
// own; every call names the directory, so the caller's path
// configuration stays the single source of truth.
type Store struct {
	clock  clock.Clock
	logger *slog.Logger
}

// New creates a Store. A nil clock uses the real clock; a nil logger
// discards.
func New(clk clock.Clock, logger *slog.Logger) *Store {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{clock: clk, logger: logger}
}

// LoadRequests returns every request in dir in file name order. A
// missing dir yields an empty, non-nil slice.
func (s *Store) LoadRequests(ctx context.Context, dir string) ([]schema.Request, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("requests directory does not exist", "dir", dir)
		return []schema.Request{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("requeststore: reading %s: %w", dir, err)
	}

	requests := make([]schema.Request, 0, len(entries))
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !IsRequestEntry(dir, entry) {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		request, err := readFile(path)
		if err != nil {
			return nil, fmt.Errorf("requeststore: %w", err)
		}
		requests = append(requests, request)
	}

	s.logger.Debug("loaded requests", "dir", dir, "count", len(requests))
	return requests, nil
}

// GetRequest loads the request with the given id from dir.
func (s *Store) GetRequest(ctx context.Context, dir, id string) (*schema.Request, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	request, err := readFile(filePath(dir, id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("requeststore: %w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("requeststore: %w", err)
	}
	return &request, nil
}

// SaveRequest writes request to dir and returns what was written. A
// blank id is replaced with a new UUID, blank defaulted fields are
// filled, and updated_at is stamped with the current time. The
// directory is created if needed.
func (s *Store) SaveRequest(ctx context.Context, dir string, request schema.Request) (schema.Request, error) {
	if request.ID == "" {
		request.ID = uuid.NewString()
	} else if err := ValidateID(request.ID); err != nil {
		return schema.Request{}, err
	}
	request.ApplyDefaults()
	request.UpdatedAt = schema.FormatTimestamp(s.clock.Now())

	data, err := json.MarshalIndent(request, "", "  ")
	if err != nil {
		return schema.Request{}, fmt.Errorf("requeststore: encoding %s: %w", request.ID, err)
	}
	data = append(data, '\n')

	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return schema.Request{}, fmt.Errorf("requeststore: creating %s: %w", dir, err)
	}
	path := filePath(dir, request.ID)
	if err := atomicWriteFile(path, data, filePermission); err != nil {
		return schema.Request{}, fmt.Errorf("requeststore: writing %s: %w", path, err)
	}

	s.logger.Debug("saved request", "id", request.ID, "path", path)
	return request, nil
}

// DeleteRequest removes the request file for id. Deleting a request
// that does not exist is not an error.
func (s *Store) DeleteRequest(ctx context.Context, dir, id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	path := filePath(dir, id)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("requeststore: deleting %s: %w", path, err)
	}
	s.logger.Debug("deleted request", "id", id, "path", path)
	return nil
}

// ParseRequest decodes one request file body. fallbackID is used when
// the file carries no id. A non-empty id must pass ValidateID.
func ParseRequest(data []byte, fallbackID string) (schema.Request, error) {
	request := schema.NewRequest()
	if err := json.Unmarshal(jsonc.ToJSON(data), &request); err != nil {
		return schema.Request{}, err
	}
	if request.ID == "" {
		request.ID = fallbackID
	}
	if request.ID != "" {
		if err := ValidateID(request.ID); err != nil {
			return schema.Request{}, err
		}
	}
	return request, nil
}

// IsRequestFileName reports whether name is a request file name.
func IsRequestFileName(name string) bool {
	return len(name) > len(fileSuffix) && strings.HasSuffix(name, fileSuffix)
}

// IsRequestEntry reports whether entry, read from dir, is a request
// file. Symlinks count when they resolve to a regular file.
func IsRequestEntry(dir string, entry os.DirEntry) bool {
	if !IsRequestFileName(entry.Name()) {
		return false
	}
	mode := entry.Type()
	if mode&os.ModeSymlink != 0 {
		info, err := os.Stat(filepath.Join(dir, entry.Name()))
		if err != nil {
			return false
		}
		mode = info.Mode()
	}
	return mode.IsRegular()
}

func readFile(path string) (schema.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.Request{}, fmt.Errorf("reading request file %s: %w", path, err)
	}
	stem := strings.TrimSuffix(filepath.Base(path), fileSuffix)
	request, err := ParseRequest(data, stem)
	if err != nil {
		return schema.Request{}, fmt.Errorf("invalid request file %s: %w", path, err)
	}
	return request, nil
}

func filePath(dir, id string) string {
	return filepath.Join(dir, id+fileSuffix)
}

// ValidateID checks that id is safe to use as a file name stem.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: must not be empty", ErrInvalidID)
	case id == "." || strings.Contains(id, ".."):
		return fmt.Errorf("%w: %q must not contain %q", ErrInvalidID, id, "..")
	case strings.ContainsAny(id, `/\`):
		return fmt.Errorf("%w: %q must not contain path separators", ErrInvalidID, id)
	case strings.ContainsRune(id, 0):
		return fmt.Errorf("%w: must not contain null bytes", ErrInvalidID)
	}
	return nil
}

// atomicWriteFile writes data to a hidden temp file in the target's
// directory and renames it into place. The temp name never ends in
// ".json", so an interrupted write is invisible to LoadRequests.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	file, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := file.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	success = true
	return nil
}
