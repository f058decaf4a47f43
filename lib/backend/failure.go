// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tuiman/tuiman/lib/keychain"
	"github.com/tuiman/tuiman/lib/requeststore"
)

// Kind classifies a handler failure. It is logged alongside the failure
// but not sent on the wire; the frontend sees only the message.
type Kind string

const (
	// KindInvalidParams means the caller sent params the method cannot
	// use. Resending the same envelope will fail the same way.
	KindInvalidParams Kind = "invalid_params"

	// KindNotFound means a referenced request does not exist.
	KindNotFound Kind = "not_found"

	// KindStorage means a collaborator failed reading or writing
	// persisted state.
	KindStorage Kind = "storage"

	// KindInternal means a failure with no better classification.
	KindInternal Kind = "internal"
)

// Failure is a classified handler error. It wraps the cause so that
// errors.Is and errors.As see through it.
type Failure struct {
	Kind Kind
	Err  error
}

func (f *Failure) Error() string { return f.Err.Error() }

func (f *Failure) Unwrap() error { return f.Err }

func invalidParams(method string, err error) *Failure {
	return &Failure{Kind: KindInvalidParams, Err: fmt.Errorf("invalid params for %s: %w", method, err)}
}

func internal(format string, args ...any) *Failure {
	return &Failure{Kind: KindInternal, Err: fmt.Errorf(format, args...)}
}

// classify wraps err in a Failure, deriving the kind from the sentinel
// errors of the collaborators. An existing Failure is returned as-is.
func classify(err error) *Failure {
	var failure *Failure
	if errors.As(err, &failure) {
		return failure
	}
	switch {
	case errors.Is(err, requeststore.ErrNotFound):
		return &Failure{Kind: KindNotFound, Err: err}
	case errors.Is(err, requeststore.ErrInvalidID), errors.Is(err, keychain.ErrEmptyRef):
		return &Failure{Kind: KindInvalidParams, Err: err}
	default:
		return &Failure{Kind: KindStorage, Err: err}
	}
}

// renderCause flattens an error chain into one line. Wrapped errors
// already read "outer: inner"; independent causes joined with
// errors.Join are separated by "; " instead of newlines.
func renderCause(err error) string {
	lines := strings.Split(strings.TrimSpace(err.Error()), "\n")
	parts := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, "; ")
}
