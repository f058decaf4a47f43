// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tuiman/tuiman/lib/exchange"
	"github.com/tuiman/tuiman/lib/httpclient"
	"github.com/tuiman/tuiman/lib/ipc"
	"github.com/tuiman/tuiman/lib/schema"
	"github.com/tuiman/tuiman/lib/version"
)

// handlerFunc serves one method. A nil error means result is sent as
// the response result.
type handlerFunc func(ctx context.Context, envelope *ipc.Envelope) (any, error)

// Methods lists every method the server answers, in the order the
// usage text presents them.
var Methods = []string{
	"ping",
	"bootstrap",
	"requests.list",
	"requests.get",
	"requests.save",
	"requests.delete",
	"requests.send",
	"requests.run",
	"runs.list",
	"runs.record",
	"secrets.set",
	"requests.export",
	"requests.import",
}

func (s *Server) handlerFor(method string) (handlerFunc, bool) {
	switch method {
	case "ping":
		return s.handlePing, true
	case "bootstrap":
		return s.handleBootstrap, true
	case "requests.list":
		return s.handleRequestsList, true
	case "requests.get":
		return s.handleRequestsGet, true
	case "requests.save":
		return s.handleRequestsSave, true
	case "requests.delete":
		return s.handleRequestsDelete, true
	case "requests.send":
		return s.handleRequestsSend, true
	case "requests.run":
		return s.handleRequestsRun, true
	case "runs.list":
		return s.handleRunsList, true
	case "runs.record":
		return s.handleRunsRecord, true
	case "secrets.set":
		return s.handleSecretsSet, true
	case "requests.export":
		return s.handleRequestsExport, true
	case "requests.import":
		return s.handleRequestsImport, true
	default:
		return nil, false
	}
}

// decodeParams unmarshals the envelope's params into target. Absent or
// null params are an error only when required.
func decodeParams(envelope *ipc.Envelope, target any, required bool) error {
	if !envelope.HasParams() {
		if required {
			return invalidParams(envelope.Method, errors.New("params are required"))
		}
		return nil
	}
	if err := json.Unmarshal(envelope.Params, target); err != nil {
		return invalidParams(envelope.Method, err)
	}
	return nil
}

func (s *Server) handlePing(context.Context, *ipc.Envelope) (any, error) {
	return ipc.PingResult{Version: version.Short(), Build: version.Info()}, nil
}

func (s *Server) handleBootstrap(ctx context.Context, _ *ipc.Envelope) (any, error) {
	return s.Bootstrap(ctx)
}

func (s *Server) handleRequestsList(ctx context.Context, _ *ipc.Envelope) (any, error) {
	return s.loadSortedRequests(ctx)
}

type idParams struct {
	ID string `json:"id"`
}

func (s *Server) decodeID(envelope *ipc.Envelope) (string, error) {
	var params idParams
	if err := decodeParams(envelope, &params, true); err != nil {
		return "", err
	}
	if strings.TrimSpace(params.ID) == "" {
		return "", invalidParams(envelope.Method, errors.New("id is required"))
	}
	return params.ID, nil
}

func (s *Server) handleRequestsGet(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	id, err := s.decodeID(envelope)
	if err != nil {
		return nil, err
	}
	return s.requests.GetRequest(ctx, s.paths.RequestsDir, id)
}

type requestParams struct {
	Request *schema.Request `json:"request"`
}

func (s *Server) decodeRequest(envelope *ipc.Envelope) (schema.Request, error) {
	var params requestParams
	if err := decodeParams(envelope, &params, true); err != nil {
		return schema.Request{}, err
	}
	if params.Request == nil {
		return schema.Request{}, invalidParams(envelope.Method, errors.New("request is required"))
	}
	return *params.Request, nil
}

func (s *Server) handleRequestsSave(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	request, err := s.decodeRequest(envelope)
	if err != nil {
		return nil, err
	}
	return s.requests.SaveRequest(ctx, s.paths.RequestsDir, request)
}

func (s *Server) handleRequestsDelete(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	id, err := s.decodeID(envelope)
	if err != nil {
		return nil, err
	}
	if err := s.requests.DeleteRequest(ctx, s.paths.RequestsDir, id); err != nil {
		return nil, err
	}
	return map[string]string{"deleted": id}, nil
}

func (s *Server) send(ctx context.Context, envelope *ipc.Envelope) (schema.Request, httpclient.Outcome, error) {
	if s.http == nil {
		return schema.Request{}, httpclient.Outcome{}, internal("no HTTP client configured")
	}
	request, err := s.decodeRequest(envelope)
	if err != nil {
		return schema.Request{}, httpclient.Outcome{}, err
	}
	request.ApplyDefaults()
	if strings.TrimSpace(request.URL) == "" {
		return schema.Request{}, httpclient.Outcome{}, invalidParams(envelope.Method, errors.New("request url is required"))
	}
	return request, s.http.Send(ctx, &request), nil
}

func (s *Server) handleRequestsSend(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	_, outcome, err := s.send(ctx, envelope)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

// RunResult is the result of requests.run.
type RunResult struct {
	Outcome httpclient.Outcome `json:"outcome"`
	Run     schema.RunEntry    `json:"run"`
}

func (s *Server) handleRequestsRun(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	request, outcome, err := s.send(ctx, envelope)
	if err != nil {
		return nil, err
	}

	run := schema.NewRunEntry(&request)
	run.StatusCode = outcome.StatusCode
	run.DurationMS = outcome.DurationMS
	run.Error = outcome.Error
	run.ResponseBody = outcome.Body
	run.CreatedAt = schema.FormatTimestamp(s.clock.Now())

	if _, err := s.history.RecordRun(ctx, &run); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return RunResult{Outcome: outcome, Run: run}, nil
}

type runsListParams struct {
	Limit *int `json:"limit"`
}

func (s *Server) handleRunsList(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	var params runsListParams
	if err := decodeParams(envelope, &params, false); err != nil {
		return nil, err
	}
	limit := s.settings.History.Limit
	if params.Limit != nil {
		if *params.Limit <= 0 {
			return nil, invalidParams(envelope.Method, fmt.Errorf("limit must be positive, got %d", *params.Limit))
		}
		limit = *params.Limit
	}

	runs, err := s.history.RecentRuns(ctx, limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []schema.RunEntry{}
	}
	return runs, nil
}

type runParams struct {
	Run *schema.RunEntry `json:"run"`
}

func (s *Server) handleRunsRecord(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	var params runParams
	if err := decodeParams(envelope, &params, true); err != nil {
		return nil, err
	}
	if params.Run == nil {
		return nil, invalidParams(envelope.Method, errors.New("run is required"))
	}

	id, err := s.history.RecordRun(ctx, params.Run)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"id": id}, nil
}

type secretParams struct {
	Ref   string `json:"ref"`
	Value string `json:"value"`
}

func (s *Server) handleSecretsSet(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	if s.secrets == nil {
		return nil, internal("no secret store configured")
	}
	var params secretParams
	if err := decodeParams(envelope, &params, true); err != nil {
		return nil, err
	}
	if err := s.secrets.SetSecret(ctx, params.Ref, params.Value); err != nil {
		return nil, err
	}
	return map[string]string{"ref": params.Ref}, nil
}

type directoryParams struct {
	Dir string `json:"dir"`
}

func (s *Server) handleRequestsExport(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	var params directoryParams
	if err := decodeParams(envelope, &params, false); err != nil {
		return nil, err
	}

	requests, err := s.loadSortedRequests(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	dir := strings.TrimSpace(params.Dir)
	if dir == "" {
		dir = exchange.DefaultDir(s.paths.ExportsDir(), now)
	}
	return exchange.Export(ctx, requests, dir, now)
}

func (s *Server) handleRequestsImport(ctx context.Context, envelope *ipc.Envelope) (any, error) {
	var params directoryParams
	if err := decodeParams(envelope, &params, true); err != nil {
		return nil, err
	}
	if strings.TrimSpace(params.Dir) == "" {
		return nil, invalidParams(envelope.Method, errors.New("dir is required"))
	}

	imported, err := exchange.Import(ctx, params.Dir, func(ctx context.Context, request schema.Request) (schema.Request, error) {
		return s.requests.SaveRequest(ctx, s.paths.RequestsDir, request)
	})
	if err != nil {
		return nil, err
	}
	return map[string]int{"imported": imported}, nil
}
