// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// tuiman-backend serves the tuiman terminal frontend over stdio. The
// frontend starts it as a child process, writes one JSON-RPC envelope
// per line to its stdin, and reads one response line per envelope from
// its stdout. Diagnostics go to stderr. The process exits when stdin
// is closed.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/tuiman/tuiman/lib/backend"
	"github.com/tuiman/tuiman/lib/config"
	"github.com/tuiman/tuiman/lib/historystore"
	"github.com/tuiman/tuiman/lib/httpclient"
	"github.com/tuiman/tuiman/lib/keychain"
	"github.com/tuiman/tuiman/lib/process"
	"github.com/tuiman/tuiman/lib/requeststore"
	"github.com/tuiman/tuiman/lib/version"
)

const programName = "tuiman-backend"

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr, os.LookupEnv); err != nil {
		process.Fatal(err)
	}
}

// run parses args and either answers a flag or serves stdin until EOF.
// An unrecognized argument is noted on stderr, usage goes to stdout,
// and the process still exits 0.
func run(args []string, stdin io.Reader, stdout, stderr io.Writer, lookup func(string) (string, bool)) error {
	flagSet := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	flagSet.SetOutput(io.Discard)
	flagSet.Usage = func() {}
	showVersion := flagSet.BoolP("version", "v", false, "print the version and exit")
	showHelp := flagSet.BoolP("help", "h", false, "print this help and exit")

	if err := flagSet.Parse(args); err != nil || flagSet.NArg() > 0 {
		fmt.Fprintf(stderr, "Unknown argument: %s\n\n", unknownArgument(args, flagSet))
		printUsage(stdout)
		return nil
	}
	if *showVersion {
		fmt.Fprintln(stdout, version.Short())
		return nil
	}
	if *showHelp {
		printUsage(stdout)
		return nil
	}

	return serve(context.Background(), stdin, stdout, stderr, lookup)
}

// unknownArgument returns the first argument that is not one of the
// recognized flags.
func unknownArgument(args []string, flagSet *pflag.FlagSet) string {
	for _, arg := range args {
		switch arg {
		case "-v", "--version", "-h", "--help":
			continue
		}
		return arg
	}
	if flagSet.NArg() > 0 {
		return flagSet.Arg(0)
	}
	return strings.Join(args, " ")
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", programName, version.Info())
	fmt.Fprintf(w, "Usage: %s [--help] [--version]\n\n", programName)
	fmt.Fprintln(w, "Reads one JSON-RPC envelope per line on stdin and writes one response")
	fmt.Fprintln(w, "per line on stdout until stdin is closed.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stdio JSON-RPC methods:")
	for _, method := range backend.Methods {
		fmt.Fprintf(w, "  - %s\n", method)
	}
}

// serve wires the collaborators and runs the stdio loop. Errors
// returned before the loop starts are startup-fatal; the history
// database is not opened until a method needs it.
func serve(ctx context.Context, stdin io.Reader, stdout, stderr io.Writer, lookup func(string) (string, bool)) error {
	paths, err := config.PathsFromLookup(lookup)
	if err != nil {
		return err
	}
	if err := paths.Ensure(); err != nil {
		return err
	}
	settings, err := config.LoadSettings(paths.SettingsFile())
	if err != nil {
		return err
	}

	level := settings.LogLevel()
	if debug, _ := lookup("TUIMAN_DEBUG"); debug != "" {
		level = slog.LevelDebug
	}
	logger := newLogger(stderr, level)

	history, err := historystore.Open(historystore.Config{
		Path:        paths.HistoryDB,
		Compression: settings.History.Compression,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := history.Close(); err != nil {
			logger.Error("closing history", "error", err)
		}
	}()

	secrets := &keychain.Security{}
	server, err := backend.New(backend.Config{
		Paths:    paths,
		Settings: settings,
		Requests: requeststore.New(nil, logger),
		History:  history,
		HTTP: httpclient.New(httpclient.Config{
			Timeout:         settings.HTTPTimeout(),
			FollowRedirects: settings.FollowRedirects(),
			Secrets:         secrets,
			Logger:          logger,
		}),
		Secrets: secrets,
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	logger.Info("backend ready",
		"version", version.Short(),
		"requests_dir", paths.RequestsDir,
		"history_db", paths.HistoryDB,
	)

	err = server.Run(ctx, stdin, stdout)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newLogger logs to stderr: text when stderr is a terminal, JSON
// otherwise.
func newLogger(stderr io.Writer, level slog.Level) *slog.Logger {
	options := &slog.HandlerOptions{Level: level}
	if file, ok := stderr.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		return slog.New(slog.NewTextHandler(stderr, options))
	}
	return slog.New(slog.NewJSONHandler(stderr, options))
}
