// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tuiman/tuiman/lib/schema"
)

// Envelope is one caller request. ID is chosen by the caller and echoed
// back unchanged; the backend does not require it to be unique.
type Envelope struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// DecodeEnvelope parses one input line. The line must be a single JSON
// object with an unsigned integer "id" and a string "method"; "params"
// is optional and defaults to null. Key names match exactly ("ID" is
// not "id") and unknown keys are ignored. Anything after the object
// other than whitespace is an error.
func DecodeEnvelope(line []byte) (*Envelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, err
	}

	var id *uint64
	if err := decodeField(fields, "id", &id); err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errors.New("missing field `id`")
	}
	var method *string
	if err := decodeField(fields, "method", &method); err != nil {
		return nil, err
	}
	if method == nil {
		return nil, errors.New("missing field `method`")
	}

	params := fields["params"]
	if len(bytes.TrimSpace(params)) == 0 {
		params = json.RawMessage("null")
	}
	return &Envelope{ID: *id, Method: *method, Params: params}, nil
}

// decodeField unmarshals fields[key] into target. An absent key leaves
// target untouched.
func decodeField(fields map[string]json.RawMessage, key string, target any) error {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("field `%s`: %w", key, err)
	}
	return nil
}

// HasParams reports whether the envelope carries non-null params.
func (e *Envelope) HasParams() bool {
	trimmed := bytes.TrimSpace(e.Params)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// Response is one output line. Result is present iff OK is true; Error
// is present iff OK is false. Both are omitted from the JSON when
// absent.
type Response struct {
	ID     uint64          `json:"id"`
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// OK builds a success response carrying result. If result cannot be
// encoded the response degrades to a failure rather than emitting a
// success without a result.
func OK(id uint64, result any) Response {
	data, err := json.Marshal(result)
	if err != nil {
		return Fail(id, fmt.Sprintf("encoding result: %v", err))
	}
	return Response{ID: id, OK: true, Result: data}
}

// Fail builds a failure response. An empty message is replaced so the
// error key is never omitted from a failure.
func Fail(id uint64, message string) Response {
	if message == "" {
		message = "unknown error"
	}
	return Response{ID: id, OK: false, Error: message}
}

// PingResult is the result of the ping method.
type PingResult struct {
	// Version is the compiled backend version string.
	Version string `json:"version"`

	// Build adds commit and build time for diagnostics.
	Build string `json:"build"`
}

// BootstrapPayload is the result of the bootstrap method: every saved
// request, sorted by name case-insensitively, and the most recent runs,
// most recent first.
type BootstrapPayload struct {
	Requests []schema.Request  `json:"requests"`
	Runs     []schema.RunEntry `json:"runs"`
}
