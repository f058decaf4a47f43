// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpclient executes saved requests.
//
// [Client.Send] never returns a Go error: every failure, from a bad URL
// to a timeout to a 404, is reported in the returned [Outcome] so the
// caller can display it and record it in history unchanged. A non-2xx
// response keeps its status code and body and sets Error to
// "HTTP status N". A transport failure leaves StatusCode zero.
//
// Credentials are resolved at send time from a [keychain.Source] using
// the request's auth_secret_ref. A reference that cannot be resolved is
// logged and the request is sent without auth; the server's response
// then tells the user what went wrong.
package httpclient
