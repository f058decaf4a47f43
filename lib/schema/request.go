// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"strings"
	"time"
)

// DefaultRequestName is the name given to requests saved without one.
const DefaultRequestName = "New Request"

// Auth types understood by the HTTP collaborator. Any other value is
// treated as AuthNone.
const (
	AuthNone   = "none"
	AuthBearer = "bearer"
	AuthJWT    = "jwt"
	AuthAPIKey = "api_key"
	AuthBasic  = "basic"
)

// Auth locations for AuthAPIKey.
const (
	AuthLocationHeader = "header"
	AuthLocationQuery  = "query"
)

// TimestampLayout is the RFC 3339 layout used for updated_at and
// created_at: UTC, second precision, no fractional part.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Request is one saved HTTP call template. Identity is ID; two
// requests are equal when every field is equal.
type Request struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Method      string `json:"method"`
	URL         string `json:"url"`
	HeaderKey   string `json:"header_key"`
	HeaderValue string `json:"header_value"`
	Body        string `json:"body"`

	// AuthType selects how credentials are attached: one of the Auth*
	// constants.
	AuthType string `json:"auth_type"`

	// AuthSecretRef names the credential in the keychain. The secret
	// itself is never stored in the request file.
	AuthSecretRef string `json:"auth_secret_ref"`

	// AuthKeyName is the header or query parameter name for api_key
	// auth. Empty means "X-API-Key".
	AuthKeyName string `json:"auth_key_name"`

	// AuthLocation is "header" or "query" for api_key auth. Empty
	// means header.
	AuthLocation string `json:"auth_location"`

	// AuthUsername is the user half of basic auth.
	AuthUsername string `json:"auth_username"`

	UpdatedAt string `json:"updated_at"`
}

// NewRequest returns a request carrying the defaults applied to blank
// fields: name "New Request", method GET, no auth.
func NewRequest() Request {
	return Request{
		Name:     DefaultRequestName,
		Method:   "GET",
		AuthType: AuthNone,
	}
}

// ApplyDefaults fills the defaulted fields that are blank. It does not
// touch ID or UpdatedAt; stores own those.
func (r *Request) ApplyDefaults() {
	if strings.TrimSpace(r.Name) == "" {
		r.Name = DefaultRequestName
	}
	if r.Method == "" {
		r.Method = "GET"
	}
	if r.AuthType == "" {
		r.AuthType = AuthNone
	}
}

// Snapshot renders the request as the human-readable text block stored
// alongside each run, so history shows what was actually sent even if
// the request file changes later.
func (r *Request) Snapshot() string {
	header := "header: none"
	if r.HeaderKey != "" || r.HeaderValue != "" {
		header = "header: " + r.HeaderKey + ": " + r.HeaderValue
	}
	lines := []string{
		"name: " + orPlaceholder(r.Name, "(unnamed)"),
		"method: " + r.Method,
		"url: " + r.URL,
		"auth: " + orPlaceholder(r.AuthType, AuthNone),
		"secret_ref: " + orPlaceholder(r.AuthSecretRef, "(none)"),
		"auth_key_name: " + orPlaceholder(r.AuthKeyName, "(none)"),
		"auth_location: " + orPlaceholder(r.AuthLocation, "(none)"),
		"auth_username: " + orPlaceholder(r.AuthUsername, "(none)"),
		header,
		"body:",
		orPlaceholder(r.Body, "(empty)"),
	}
	return strings.Join(lines, "\n")
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func orPlaceholder(value, placeholder string) string {
	if value == "" {
		return placeholder
	}
	return value
}
