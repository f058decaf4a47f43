// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package keychain stores and fetches credentials by reference. Request
// files carry only the reference (auth_secret_ref); the secret itself
// lives in the platform credential store.
//
// [Security] drives the macOS security(1) tool against generic
// passwords under one service name, with the reference as the account.
// [Static] is an in-memory source for tests and for platforms without a
// keychain.
package keychain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// ErrNotFound is returned when no secret exists for a reference.
var ErrNotFound = errors.New("keychain secret not found")

// ErrEmptyRef is returned for a blank reference.
var ErrEmptyRef = errors.New("secret ref is required")

// Source fetches secrets by reference.
type Source interface {
	Secret(ctx context.Context, ref string) (string, error)
}

// Store is a Source that can also write and remove secrets.
type Store interface {
	Source
	SetSecret(ctx context.Context, ref, value string) error
	DeleteSecret(ctx context.Context, ref string) error
}

const (
	// DefaultService is the keychain service name secrets are filed under.
	DefaultService = "tuiman"

	// DefaultBinary is the security(1) executable.
	DefaultBinary = "/usr/bin/security"

	// itemNotFoundStatus is security(1)'s exit status for a missing item.
	itemNotFoundStatus = 44
)

// Security is a Store backed by the macOS login keychain.
type Security struct {
	// Binary is the security(1) path. Empty means DefaultBinary.
	Binary string

	// Service is the generic password service. Empty means
	// DefaultService.
	Service string
}

// Secret returns the password stored for ref, with surrounding
// whitespace trimmed.
func (s *Security) Secret(ctx context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", ErrEmptyRef
	}
	stdout, err := s.run(ctx, "find-generic-password", "-a", ref, "-s", s.service(), "-w")
	if err != nil {
		return "", fmt.Errorf("keychain: reading %s: %w", ref, err)
	}
	return strings.TrimSpace(stdout), nil
}

// SetSecret creates or replaces the password for ref.
func (s *Security) SetSecret(ctx context.Context, ref, value string) error {
	if strings.TrimSpace(ref) == "" {
		return ErrEmptyRef
	}
	if _, err := s.run(ctx, "add-generic-password", "-a", ref, "-s", s.service(), "-w", value, "-U"); err != nil {
		return fmt.Errorf("keychain: storing %s: %w", ref, err)
	}
	return nil
}

// DeleteSecret removes the password for ref. A missing item is not an
// error.
func (s *Security) DeleteSecret(ctx context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return ErrEmptyRef
	}
	_, err := s.run(ctx, "delete-generic-password", "-a", ref, "-s", s.service())
	if err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("keychain: deleting %s: %w", ref, err)
	}
	return nil
}

func (s *Security) service() string {
	if s.Service == "" {
		return DefaultService
	}
	return s.Service
}

// run executes security(1) and returns stdout. Exit status 44 maps to
// ErrNotFound. Argument values are never included in errors because
// add-generic-password carries the secret on its command line.
func (s *Security) run(ctx context.Context, args ...string) (string, error) {
	binary := s.Binary
	if binary == "" {
		binary = DefaultBinary
	}

	var stdout, stderr bytes.Buffer
	command := exec.CommandContext(ctx, binary, args...)
	command.Stdout = &stdout
	command.Stderr = &stderr

	if err := command.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == itemNotFoundStatus {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("security %s: %w (stderr: %s)",
			args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Static is an in-memory Store. The zero value is empty and ready to
// use.
type Static struct {
	mu      sync.Mutex
	secrets map[string]string
}

// NewStatic returns a Static holding a copy of secrets.
func NewStatic(secrets map[string]string) *Static {
	static := &Static{secrets: make(map[string]string, len(secrets))}
	for ref, value := range secrets {
		static.secrets[ref] = value
	}
	return static
}

func (s *Static) Secret(_ context.Context, ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", ErrEmptyRef
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.secrets[ref]
	if !ok {
		return "", fmt.Errorf("keychain: reading %s: %w", ref, ErrNotFound)
	}
	return value, nil
}

func (s *Static) SetSecret(_ context.Context, ref, value string) error {
	if strings.TrimSpace(ref) == "" {
		return ErrEmptyRef
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.secrets == nil {
		s.secrets = make(map[string]string)
	}
	s.secrets[ref] = value
	return nil
}

func (s *Static) DeleteSecret(_ context.Context, ref string) error {
	if strings.TrimSpace(ref) == "" {
		return ErrEmptyRef
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, ref)
	return nil
}
