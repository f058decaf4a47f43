// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"os"
	"sync"
	"testing"

	"github.com/tuiman/tuiman/lib/httpclient"
	"github.com/tuiman/tuiman/lib/requeststore"
	"github.com/tuiman/tuiman/lib/schema"
)

// fakeRequests is an in-memory RequestStore that preserves insertion
// order, like a directory listing would preserve file name order.
type fakeRequests struct {
	mu       sync.Mutex
	requests []schema.Request
	loadErr  error
	loads    int
	dirs     []string
}

func (f *fakeRequests) LoadRequests(_ context.Context, dir string) ([]schema.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	f.dirs = append(f.dirs, dir)
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return append([]schema.Request(nil), f.requests...), nil
}

func (f *fakeRequests) GetRequest(_ context.Context, _ string, id string) (*schema.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, request := range f.requests {
		if request.ID == id {
			return &request, nil
		}
	}
	return nil, requeststore.ErrNotFound
}

func (f *fakeRequests) SaveRequest(_ context.Context, _ string, request schema.Request) (schema.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	request.ApplyDefaults()
	for i := range f.requests {
		if f.requests[i].ID == request.ID {
			f.requests[i] = request
			return request, nil
		}
	}
	f.requests = append(f.requests, request)
	return request, nil
}

func (f *fakeRequests) DeleteRequest(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.requests {
		if f.requests[i].ID == id {
			f.requests = append(f.requests[:i], f.requests[i+1:]...)
			break
		}
	}
	return nil
}

// fakeHistory is an in-memory HistoryStore returning runs newest first.
type fakeHistory struct {
	mu        sync.Mutex
	runs      []schema.RunEntry
	recentErr error
	recordErr error
	limits    []int
}

func (f *fakeHistory) RecentRuns(_ context.Context, limit int) ([]schema.RunEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.recentErr != nil {
		return nil, f.recentErr
	}
	var recent []schema.RunEntry
	for i := len(f.runs) - 1; i >= 0 && len(recent) < limit; i-- {
		recent = append(recent, f.runs[i])
	}
	return recent, nil
}

func (f *fakeHistory) RecordRun(_ context.Context, run *schema.RunEntry) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.recordErr != nil {
		return 0, f.recordErr
	}
	run.ID = int64(len(f.runs) + 1)
	f.runs = append(f.runs, *run)
	return run.ID, nil
}

// fakeSender returns a fixed outcome and records what it was asked to
// send.
type fakeSender struct {
	mu      sync.Mutex
	outcome httpclient.Outcome
	sent    []schema.Request
}

func (f *fakeSender) Send(_ context.Context, request *schema.Request) httpclient.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, *request)
	return f.outcome
}

func writeBroken(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(`{"id": "broken", "name": `), 0o600); err != nil {
		t.Fatal(err)
	}
}
