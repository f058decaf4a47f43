// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/tuiman/tuiman/lib/clock"
	"github.com/tuiman/tuiman/lib/config"
	"github.com/tuiman/tuiman/lib/httpclient"
	"github.com/tuiman/tuiman/lib/ipc"
	"github.com/tuiman/tuiman/lib/schema"
)

// maxLineSize bounds one input line. Request bodies travel inline in
// requests.save and requests.send params, so this is well above what a
// hand-typed request needs.
const maxLineSize = 16 << 20

// RequestStore is the storage collaborator for saved requests. Every
// call names the directory.
type RequestStore interface {
	LoadRequests(ctx context.Context, dir string) ([]schema.Request, error)
	GetRequest(ctx context.Context, dir, id string) (*schema.Request, error)
	SaveRequest(ctx context.Context, dir string, request schema.Request) (schema.Request, error)
	DeleteRequest(ctx context.Context, dir, id string) error
}

// HistoryStore is the storage collaborator for run history.
// RecentRuns returns most recent first.
type HistoryStore interface {
	RecentRuns(ctx context.Context, limit int) ([]schema.RunEntry, error)
	RecordRun(ctx context.Context, run *schema.RunEntry) (int64, error)
}

// Sender is the HTTP collaborator. Send never fails; failures are
// reported in the Outcome.
type Sender interface {
	Send(ctx context.Context, request *schema.Request) httpclient.Outcome
}

// SecretWriter stores credentials referenced by auth_secret_ref.
type SecretWriter interface {
	SetSecret(ctx context.Context, ref, value string) error
}

// Config holds a Server's collaborators. Paths, Requests and History
// are required.
type Config struct {
	// Paths is resolved once at startup and never modified.
	Paths *config.AppPaths

	// Settings supplies the history limit. Nil uses the defaults.
	Settings *config.Settings

	Requests RequestStore
	History  HistoryStore

	// HTTP sends requests for requests.send and requests.run. Nil makes
	// those methods fail.
	HTTP Sender

	// Secrets backs secrets.set. Nil makes it fail.
	Secrets SecretWriter

	// Clock stamps runs and export directory names. Nil uses the real
	// clock.
	Clock clock.Clock

	// Logger receives per-request diagnostics. It must not write to the
	// protocol output. Nil discards.
	Logger *slog.Logger
}

// Server dispatches envelopes to handlers. A Server handles one
// envelope at a time.
type Server struct {
	paths    *config.AppPaths
	settings *config.Settings
	requests RequestStore
	history  HistoryStore
	http     Sender
	secrets  SecretWriter
	clock    clock.Clock
	logger   *slog.Logger
}

// New creates a Server from cfg.
func New(cfg Config) (*Server, error) {
	if cfg.Paths == nil {
		return nil, errors.New("backend: Paths is required")
	}
	if cfg.Requests == nil {
		return nil, errors.New("backend: Requests is required")
	}
	if cfg.History == nil {
		return nil, errors.New("backend: History is required")
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.DefaultSettings()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Server{
		paths:    cfg.Paths,
		settings: settings,
		requests: cfg.Requests,
		history:  cfg.History,
		http:     cfg.HTTP,
		secrets:  cfg.Secrets,
		clock:    clk,
		logger:   logger,
	}, nil
}

// Run reads envelopes from input and writes one response line per
// non-blank input line to output, in order, until input reaches EOF.
// If output has a Flush() error method it is called after every
// response.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		if err := writeResponse(output, s.handleLine(ctx, line)); err != nil {
			return fmt.Errorf("backend: writing response: %w", err)
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			// The rest of the oversized line cannot be skipped with a
			// Scanner, so the caller gets an answer and the loop ends.
			message := fmt.Sprintf("invalid request: line exceeds %d bytes", maxLineSize)
			if writeErr := writeResponse(output, ipc.Fail(0, message)); writeErr != nil {
				return fmt.Errorf("backend: writing response: %w", writeErr)
			}
		}
		return fmt.Errorf("backend: reading input: %w", err)
	}
	return nil
}

// handleLine decodes and dispatches one non-blank line.
func (s *Server) handleLine(ctx context.Context, line []byte) ipc.Response {
	envelope, err := ipc.DecodeEnvelope(line)
	if err != nil {
		s.logger.Warn("invalid request line", "error", err, "bytes", len(line))
		return ipc.Fail(0, "invalid request: "+renderCause(err))
	}

	started := s.clock.Now()
	response := s.dispatch(ctx, envelope)
	s.logger.Debug("handled request",
		"id", envelope.ID,
		"method", envelope.Method,
		"ok", response.OK,
		"duration", s.clock.Since(started),
	)
	return response
}

// dispatch routes an envelope to its handler and converts the outcome
// into a response.
func (s *Server) dispatch(ctx context.Context, envelope *ipc.Envelope) ipc.Response {
	handler, ok := s.handlerFor(envelope.Method)
	if !ok {
		s.logger.Info("unknown method", "id", envelope.ID, "method", envelope.Method)
		return ipc.Fail(envelope.ID, "unknown method: "+envelope.Method)
	}

	result, err := handler(ctx, envelope)
	if err != nil {
		failure := classify(err)
		level := slog.LevelWarn
		if failure.Kind == KindInvalidParams || failure.Kind == KindNotFound {
			level = slog.LevelInfo
		}
		s.logger.Log(ctx, level, "request failed",
			"id", envelope.ID,
			"method", envelope.Method,
			"kind", failure.Kind,
			"error", failure.Err,
		)
		return ipc.Fail(envelope.ID, envelope.Method+" failed: "+renderCause(failure))
	}
	return ipc.OK(envelope.ID, result)
}

type flusher interface {
	Flush() error
}

// writeResponse writes response and its terminating newline in a single
// Write, then flushes output if it buffers.
func writeResponse(output io.Writer, response ipc.Response) error {
	data, err := json.Marshal(response)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := output.Write(data); err != nil {
		return err
	}
	if f, ok := output.(flusher); ok {
		return f.Flush()
	}
	return nil
}
