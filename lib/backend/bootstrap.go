// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/tuiman/tuiman/lib/ipc"
	"github.com/tuiman/tuiman/lib/schema"
)

// Bootstrap assembles the frontend's initial view from the request and
// history stores. Both stores are always consulted; if either fails the
// call fails with every cause, and no payload is returned.
func (s *Server) Bootstrap(ctx context.Context) (*ipc.BootstrapPayload, error) {
	requests, requestsErr := s.loadSortedRequests(ctx)
	runs, runsErr := s.history.RecentRuns(ctx, s.settings.History.Limit)
	if runsErr != nil {
		runsErr = fmt.Errorf("loading runs from %s: %w", s.paths.HistoryDB, runsErr)
	}

	if err := errors.Join(requestsErr, runsErr); err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []schema.RunEntry{}
	}
	return &ipc.BootstrapPayload{Requests: requests, Runs: runs}, nil
}

// loadSortedRequests loads every saved request and sorts it for display.
func (s *Server) loadSortedRequests(ctx context.Context) ([]schema.Request, error) {
	requests, err := s.requests.LoadRequests(ctx, s.paths.RequestsDir)
	if err != nil {
		return nil, fmt.Errorf("loading requests from %s: %w", s.paths.RequestsDir, err)
	}
	if requests == nil {
		requests = []schema.Request{}
	}
	SortRequests(requests)
	return requests, nil
}

// SortRequests orders requests by name, ignoring case. Requests whose
// names differ only in case keep their relative order.
func SortRequests(requests []schema.Request) {
	slices.SortStableFunc(requests, func(a, b schema.Request) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
}
