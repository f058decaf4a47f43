// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// RunEntry is one historical execution of a request. ID is assigned by
// the history store and is unrelated to Request.ID.
type RunEntry struct {
	ID          int64  `json:"id"`
	RequestID   string `json:"request_id"`
	RequestName string `json:"request_name"`
	Method      string `json:"method"`
	URL         string `json:"url"`

	// StatusCode is zero when no HTTP response was received.
	StatusCode int64 `json:"status_code"`
	DurationMS int64 `json:"duration_ms"`

	// Error is empty for a 2xx response, "HTTP status N" otherwise, or
	// the transport failure text.
	Error string `json:"error"`

	CreatedAt string `json:"created_at"`

	// RequestSnapshot is Request.Snapshot at the time of the run.
	RequestSnapshot string `json:"request_snapshot"`
	ResponseBody    string `json:"response_body"`
}

// NewRunEntry builds the history record for one execution of req. The
// caller fills the outcome fields and CreatedAt.
func NewRunEntry(req *Request) RunEntry {
	return RunEntry{
		RequestID:       req.ID,
		RequestName:     req.Name,
		Method:          req.Method,
		URL:             req.URL,
		RequestSnapshot: req.Snapshot(),
	}
}
