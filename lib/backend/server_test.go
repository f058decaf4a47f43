// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/tuiman/tuiman/lib/clock"
	"github.com/tuiman/tuiman/lib/config"
	"github.com/tuiman/tuiman/lib/keychain"
	"github.com/tuiman/tuiman/lib/version"
)

var testEpoch = time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC)

type harness struct {
	server   *Server
	paths    *config.AppPaths
	settings *config.Settings
	requests *fakeRequests
	history  *fakeHistory
	sender   *fakeSender
	secrets  *keychain.Static
	clock    *clock.FakeClock
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		paths:    config.PathsForHome(t.TempDir()),
		settings: config.DefaultSettings(),
		requests: &fakeRequests{},
		history:  &fakeHistory{},
		sender:   &fakeSender{},
		secrets:  &keychain.Static{},
		clock:    clock.Fake(testEpoch),
	}
	server, err := New(Config{
		Paths:    h.paths,
		Settings: h.settings,
		Requests: h.requests,
		History:  h.history,
		HTTP:     h.sender,
		Secrets:  h.secrets,
		Clock:    h.clock,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	h.server = server
	return h
}

// session feeds input to the server and returns the output lines.
func session(t *testing.T, server *Server, input string) []string {
	t.Helper()
	var output bytes.Buffer
	if err := server.Run(context.Background(), strings.NewReader(input), &output); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if output.Len() == 0 {
		return nil
	}
	if !strings.HasSuffix(output.String(), "\n") {
		t.Fatalf("output does not end with a newline: %q", output.String())
	}
	return strings.Split(strings.TrimSuffix(output.String(), "\n"), "\n")
}

// response is a decoded output line that keeps track of which keys
// were present.
type response struct {
	ID     uint64
	OK     bool
	Result json.RawMessage
	Error  string
	keys   map[string]json.RawMessage
}

func decode(t *testing.T, line string) response {
	t.Helper()
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &keys); err != nil {
		t.Fatalf("output line is not a JSON object: %q: %v", line, err)
	}
	var r response
	r.keys = keys
	if err := json.Unmarshal(keys["id"], &r.ID); err != nil {
		t.Fatalf("bad id in %q: %v", line, err)
	}
	if err := json.Unmarshal(keys["ok"], &r.OK); err != nil {
		t.Fatalf("bad ok in %q: %v", line, err)
	}
	r.Result = keys["result"]
	if raw, ok := keys["error"]; ok {
		json.Unmarshal(raw, &r.Error)
	}

	_, hasResult := keys["result"]
	_, hasError := keys["error"]
	if hasResult == hasError {
		t.Errorf("response must carry exactly one of result and error: %s", line)
	}
	if r.OK != hasResult {
		t.Errorf("ok=%v but result present=%v: %s", r.OK, hasResult, line)
	}
	return r
}

// call sends one envelope and returns its decoded response.
func call(t *testing.T, server *Server, id uint64, method string, params any) response {
	t.Helper()
	envelope := map[string]any{"id": id, "method": method}
	if params != nil {
		envelope["params"] = params
	}
	line, err := json.Marshal(envelope)
	if err != nil {
		t.Fatal(err)
	}
	lines := session(t, server, string(line)+"\n")
	if len(lines) != 1 {
		t.Fatalf("got %d output lines for one envelope: %q", len(lines), lines)
	}
	r := decode(t, lines[0])
	if r.ID != id {
		t.Errorf("response id = %d, want %d", r.ID, id)
	}
	return r
}

func mustOK(t *testing.T, r response, target any) {
	t.Helper()
	if !r.OK {
		t.Fatalf("call failed: %s", r.Error)
	}
	if target != nil {
		if err := json.Unmarshal(r.Result, target); err != nil {
			t.Fatalf("decoding result %s: %v", r.Result, err)
		}
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	paths := config.PathsForHome("/home/test")
	tests := []struct {
		name string
		cfg  Config
	}{
		{"paths", Config{Requests: &fakeRequests{}, History: &fakeHistory{}}},
		{"requests", Config{Paths: paths, History: &fakeHistory{}}},
		{"history", Config{Paths: paths, Requests: &fakeRequests{}}},
	}
	for _, test := range tests {
		if _, err := New(test.cfg); err == nil {
			t.Errorf("New without %s succeeded", test.name)
		}
	}
}

func TestPing(t *testing.T) {
	h := newHarness(t)

	for _, params := range []string{``, `,"params":null`, `,"params":{}`, `,"params":[1,2]`, `,"params":"x"`, `,"params":42`} {
		lines := session(t, h.server, `{"id":9,"method":"ping"`+params+"}\n")
		if len(lines) != 1 {
			t.Fatalf("params %q: got %d lines", params, len(lines))
		}
		r := decode(t, lines[0])
		var result struct {
			Version string `json:"version"`
			Build   string `json:"build"`
		}
		mustOK(t, r, &result)
		if r.ID != 9 {
			t.Errorf("params %q: id = %d, want 9", params, r.ID)
		}
		if result.Version != version.Version {
			t.Errorf("params %q: version = %q, want %q", params, result.Version, version.Version)
		}
		if result.Build != version.Info() {
			t.Errorf("params %q: build = %q", params, result.Build)
		}
	}
}

func TestEchoesLargeIDs(t *testing.T) {
	h := newHarness(t)
	lines := session(t, h.server, `{"id":18446744073709551615,"method":"ping"}`+"\n")
	if !strings.HasPrefix(lines[0], `{"id":18446744073709551615,"ok":true,`) {
		t.Errorf("max uint64 id not echoed exactly: %s", lines[0])
	}
}

func TestUnknownMethodKeepsLoopRunning(t *testing.T) {
	h := newHarness(t)
	lines := session(t, h.server, `{"id":1,"method":"frobnicate"}`+"\n"+`{"id":2,"method":"ping"}`+"\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first := decode(t, lines[0])
	if first.OK || first.ID != 1 {
		t.Errorf("unknown method response = %+v", first)
	}
	if first.Error != "unknown method: frobnicate" {
		t.Errorf("error = %q", first.Error)
	}
	if second := decode(t, lines[1]); !second.OK || second.ID != 2 {
		t.Errorf("ping after unknown method = %s", lines[1])
	}
}

func TestMethodNamesAreExact(t *testing.T) {
	h := newHarness(t)
	for _, method := range []string{"Ping", "PING", " ping", "ping ", "boot strap"} {
		r := call(t, h.server, 3, method, nil)
		if r.OK {
			t.Errorf("method %q was accepted", method)
		}
		if r.Error != "unknown method: "+method {
			t.Errorf("method %q: error = %q", method, r.Error)
		}
	}
}

func TestMalformedLines(t *testing.T) {
	malformed := []string{
		`not json`,
		`{"id": 1}`,
		`{"method": "ping"}`,
		`{"id": -1, "method": "ping"}`,
		`{"id": 1.5, "method": "ping"}`,
		`{"id": "7", "method": "ping"}`,
		`{"id": 7, "method": 7}`,
		`[1, 2]`,
		`null`,
		`{"ID": 9, "METHOD": "ping"}`,
		`{"id": 1, "method": "ping"} trailing`,
		`{"id": 1, "method": "ping"`,
	}

	h := newHarness(t)
	input := strings.Join(malformed, "\n") + "\n" + `{"id":77,"method":"ping"}` + "\n"
	lines := session(t, h.server, input)
	if len(lines) != len(malformed)+1 {
		t.Fatalf("got %d lines for %d inputs", len(lines), len(malformed)+1)
	}

	for i, line := range malformed {
		r := decode(t, lines[i])
		if r.ID != 0 || r.OK {
			t.Errorf("input %q: response %s, want id 0 failure", line, lines[i])
		}
		if !strings.HasPrefix(r.Error, "invalid request: ") {
			t.Errorf("input %q: error = %q", line, r.Error)
		}
	}
	if last := decode(t, lines[len(lines)-1]); !last.OK || last.ID != 77 {
		t.Errorf("loop did not recover: %s", lines[len(lines)-1])
	}
}

func TestBlankLinesProduceNoOutput(t *testing.T) {
	h := newHarness(t)
	if lines := session(t, h.server, "\n   \n\t\r\n\n"); len(lines) != 0 {
		t.Errorf("blank input produced output: %q", lines)
	}

	lines := session(t, h.server, "\n"+`{"id":1,"method":"ping"}`+"\n  \n"+`{"id":2,"method":"ping"}`+"\r\n\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if decode(t, lines[0]).ID != 1 || decode(t, lines[1]).ID != 2 {
		t.Errorf("responses out of order: %q", lines)
	}
}

func TestLastLineWithoutNewline(t *testing.T) {
	h := newHarness(t)
	lines := session(t, h.server, `{"id":5,"method":"ping"}`)
	if len(lines) != 1 || decode(t, lines[0]).ID != 5 {
		t.Errorf("unterminated final line not handled: %q", lines)
	}
}

func TestDuplicateIDsAreEchoedIndependently(t *testing.T) {
	h := newHarness(t)
	lines := session(t, h.server, `{"id":4,"method":"ping"}`+"\n"+`{"id":4,"method":"nope"}`+"\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if first, second := decode(t, lines[0]), decode(t, lines[1]); !first.OK || second.OK || first.ID != 4 || second.ID != 4 {
		t.Errorf("responses = %q", lines)
	}
}

// lockstepReader hands out one line per Read and checks that the
// response to every earlier line was already written.
type lockstepReader struct {
	t      *testing.T
	lines  []string
	output *bytes.Buffer
	next   int
}

func (r *lockstepReader) Read(p []byte) (int, error) {
	written := strings.Count(r.output.String(), "\n")
	if written != r.next {
		r.t.Errorf("reading line %d with %d responses written", r.next, written)
	}
	if r.next == len(r.lines) {
		return 0, io.EOF
	}
	n := copy(p, r.lines[r.next]+"\n")
	r.next++
	return n, nil
}

func TestResponsesWrittenBeforeNextRead(t *testing.T) {
	h := newHarness(t)
	var output bytes.Buffer
	reader := &lockstepReader{
		t: t,
		lines: []string{
			`{"id":1,"method":"ping"}`,
			`garbage`,
			`{"id":3,"method":"bootstrap"}`,
			`{"id":4,"method":"nope"}`,
			`{"id":5,"method":"ping"}`,
		},
		output: &output,
	}

	if err := h.server.Run(context.Background(), reader, &output); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimSuffix(output.String(), "\n"), "\n")
	wantIDs := []uint64{1, 0, 3, 4, 5}
	if len(lines) != len(wantIDs) {
		t.Fatalf("got %d lines, want %d", len(lines), len(wantIDs))
	}
	for i, line := range lines {
		if got := decode(t, line).ID; got != wantIDs[i] {
			t.Errorf("line %d id = %d, want %d", i, got, wantIDs[i])
		}
	}
}

// flushRecorder is a buffering writer that records how many complete
// lines were buffered at each flush.
type flushRecorder struct {
	bytes.Buffer
	flushedAt []int
}

func (f *flushRecorder) Flush() error {
	f.flushedAt = append(f.flushedAt, strings.Count(f.String(), "\n"))
	return nil
}

func TestFlushesEveryResponse(t *testing.T) {
	h := newHarness(t)
	var output flushRecorder
	input := `{"id":1,"method":"ping"}` + "\n\n" + `bad` + "\n" + `{"id":3,"method":"ping"}` + "\n"
	if err := h.server.Run(context.Background(), strings.NewReader(input), &output); err != nil {
		t.Fatal(err)
	}
	if got := output.flushedAt; len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("flushes at line counts %v, want [1 2 3]", got)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteFailureEndsRun(t *testing.T) {
	h := newHarness(t)
	input := `{"id":1,"method":"ping"}` + "\n" + `{"id":2,"method":"ping"}` + "\n"
	err := h.server.Run(context.Background(), strings.NewReader(input), failingWriter{})
	if err == nil || !strings.Contains(err.Error(), "broken pipe") {
		t.Errorf("Run error = %v, want write failure", err)
	}
}

func TestOversizedLine(t *testing.T) {
	h := newHarness(t)
	var output bytes.Buffer
	input := strings.Repeat("x", maxLineSize+1) + "\n"
	err := h.server.Run(context.Background(), strings.NewReader(input), &output)
	if err == nil {
		t.Fatal("Run accepted a line over the limit")
	}
	r := decode(t, strings.TrimSuffix(output.String(), "\n"))
	if r.ID != 0 || !strings.HasPrefix(r.Error, "invalid request: ") {
		t.Errorf("oversized line response = %s", output.String())
	}
}

func TestCancelledContextStopsRun(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var output bytes.Buffer
	err := h.server.Run(ctx, strings.NewReader(`{"id":1,"method":"ping"}`+"\n"), &output)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if output.Len() != 0 {
		t.Errorf("wrote %q after cancellation", output.String())
	}
}

func TestEOFEndsRunCleanly(t *testing.T) {
	h := newHarness(t)
	var output bytes.Buffer
	if err := h.server.Run(context.Background(), strings.NewReader(""), &output); err != nil {
		t.Errorf("Run on empty input = %v", err)
	}
}
