// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package keychain

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// fakeSecurity writes a shell script that mimics security(1) for one
// account/secret pair and logs its arguments to a file.
func fakeSecurity(t *testing.T) (binary, argsLog string) {
	t.Helper()
	dir := t.TempDir()
	argsLog = filepath.Join(dir, "args")
	binary = filepath.Join(dir, "security")
	script := `#!/bin/sh
echo "$@" >> "` + argsLog + `"
case "$1" in
find-generic-password)
	if [ "$3" = "known" ]; then
		printf '  s3cret\n'
		exit 0
	fi
	echo "The specified item could not be found in the keychain." >&2
	exit 44
	;;
add-generic-password)
	exit 0
	;;
delete-generic-password)
	[ "$3" = "known" ] && exit 0
	exit 44
	;;
esac
echo "unexpected command" >&2
exit 1
`
	if err := os.WriteFile(binary, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return binary, argsLog
}

func TestSecuritySecret(t *testing.T) {
	binary, argsLog := fakeSecurity(t)
	security := &Security{Binary: binary}
	ctx := context.Background()

	secret, err := security.Secret(ctx, "known")
	if err != nil {
		t.Fatalf("Secret: %v", err)
	}
	if secret != "s3cret" {
		t.Errorf("Secret = %q, want trimmed s3cret", secret)
	}

	logged, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(logged)); got != "find-generic-password -a known -s tuiman -w" {
		t.Errorf("security args = %q", got)
	}

	if _, err := security.Secret(ctx, "unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Secret(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestSecuritySetAndDelete(t *testing.T) {
	binary, argsLog := fakeSecurity(t)
	security := &Security{Binary: binary, Service: "tuiman-test"}
	ctx := context.Background()

	if err := security.SetSecret(ctx, "token", "value"); err != nil {
		t.Fatalf("SetSecret: %v", err)
	}
	if err := security.DeleteSecret(ctx, "known"); err != nil {
		t.Fatalf("DeleteSecret(known): %v", err)
	}
	if err := security.DeleteSecret(ctx, "missing"); err != nil {
		t.Errorf("DeleteSecret(missing) = %v, want nil", err)
	}

	logged, err := os.ReadFile(argsLog)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(logged)), "\n")
	want := []string{
		"add-generic-password -a token -s tuiman-test -w value -U",
		"delete-generic-password -a known -s tuiman-test",
		"delete-generic-password -a missing -s tuiman-test",
	}
	if strings.Join(lines, "|") != strings.Join(want, "|") {
		t.Errorf("security calls = %q, want %q", lines, want)
	}
}

func TestSecurityFailureHidesArguments(t *testing.T) {
	security := &Security{Binary: filepath.Join(t.TempDir(), "missing-binary")}
	err := security.SetSecret(context.Background(), "token", "hunter2")
	if err == nil {
		t.Fatal("SetSecret succeeded with a missing binary")
	}
	if strings.Contains(err.Error(), "hunter2") {
		t.Errorf("error leaks the secret: %v", err)
	}
}

func TestEmptyRef(t *testing.T) {
	ctx := context.Background()
	for _, store := range []Store{&Security{Binary: "/nonexistent"}, &Static{}} {
		if _, err := store.Secret(ctx, "  "); !errors.Is(err, ErrEmptyRef) {
			t.Errorf("%T.Secret(blank) = %v, want ErrEmptyRef", store, err)
		}
		if err := store.SetSecret(ctx, "", "x"); !errors.Is(err, ErrEmptyRef) {
			t.Errorf("%T.SetSecret(blank) = %v, want ErrEmptyRef", store, err)
		}
		if err := store.DeleteSecret(ctx, ""); !errors.Is(err, ErrEmptyRef) {
			t.Errorf("%T.DeleteSecret(blank) = %v, want ErrEmptyRef", store, err)
		}
	}
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	seed := map[string]string{"api": "abc"}
	static := NewStatic(seed)
	seed["api"] = "mutated"

	if got, err := static.Secret(ctx, "api"); err != nil || got != "abc" {
		t.Errorf("Secret(api) = %q, %v; want abc", got, err)
	}
	if _, err := static.Secret(ctx, "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Secret(other) error = %v, want ErrNotFound", err)
	}

	var zero Static
	if err := zero.SetSecret(ctx, "new", "v"); err != nil {
		t.Fatal(err)
	}
	if got, _ := zero.Secret(ctx, "new"); got != "v" {
		t.Errorf("zero-value Static lost secret: %q", got)
	}
	if err := zero.DeleteSecret(ctx, "new"); err != nil {
		t.Fatal(err)
	}
	if _, err := zero.Secret(ctx, "new"); !errors.Is(err, ErrNotFound) {
		t.Errorf("secret survived delete: %v", err)
	}
}
