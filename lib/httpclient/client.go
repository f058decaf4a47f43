// Copyright 2026 The Tuiman Authors
// SPDX-License-Identifier: Apache-2.0

package httpclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tuiman/tuiman/lib/clock"
	"github.com/tuiman/tuiman/lib/keychain"
	"github.com/tuiman/tuiman/lib/schema"
)

const (
	defaultTimeout    = 30 * time.Second
	defaultAPIKeyName = "X-API-Key"
)

// Outcome is the result of one send.
type Outcome struct {
	// StatusCode is zero when no response was received.
	StatusCode int64  `json:"status_code"`
	DurationMS int64  `json:"duration_ms"`
	Body       string `json:"body"`

	// Error is empty for a 2xx response.
	Error string `json:"error"`
}

// Config holds the parameters for a Client.
type Config struct {
	// Timeout bounds the whole exchange including reading the body.
	// Zero means 30s.
	Timeout time.Duration

	// FollowRedirects makes the client follow 3xx responses. When
	// false the redirect response itself is returned.
	FollowRedirects bool

	// Secrets resolves auth_secret_ref. Nil disables auth injection.
	Secrets keychain.Source

	// Transport overrides the HTTP transport. Nil uses
	// http.DefaultTransport.
	Transport http.RoundTripper

	// Clock measures durations and judges token expiry. Nil uses the
	// real clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// Client sends requests. It is safe for concurrent use.
type Client struct {
	http    *http.Client
	secrets keychain.Source
	clock   clock.Clock
	logger  *slog.Logger
}

// New creates a Client from cfg.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	httpClient := &http.Client{
		Timeout:   timeout,
		Transport: cfg.Transport,
	}
	if !cfg.FollowRedirects {
		httpClient.CheckRedirect = func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	return &Client{
		http:    httpClient,
		secrets: cfg.Secrets,
		clock:   clk,
		logger:  logger,
	}
}

// Send executes request and reports what happened.
func (c *Client) Send(ctx context.Context, request *schema.Request) Outcome {
	started := c.clock.Now()
	outcome := c.send(ctx, request)
	outcome.DurationMS = c.clock.Since(started).Milliseconds()

	c.logger.Debug("request sent",
		"request_id", request.ID,
		"method", request.Method,
		"status_code", outcome.StatusCode,
		"duration_ms", outcome.DurationMS,
		"error", outcome.Error,
	)
	return outcome
}

func (c *Client) send(ctx context.Context, request *schema.Request) Outcome {
	target := request.URL
	header := make(http.Header)

	if request.HeaderKey != "" {
		header.Set(request.HeaderKey, request.HeaderValue)
	}
	target = c.applyAuth(ctx, request, target, header)

	if request.Body != "" && isJSONish(request.Body) && !strings.EqualFold(request.HeaderKey, "Content-Type") {
		header.Set("Content-Type", "application/json")
		header.Set("Accept", "application/json")
	}

	var body io.Reader
	if request.Body != "" {
		body = strings.NewReader(request.Body)
	}

	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	httpRequest, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return Outcome{Error: err.Error()}
	}
	httpRequest.Header = header

	response, err := c.http.Do(httpRequest)
	if err != nil {
		return Outcome{Error: err.Error()}
	}
	defer response.Body.Close()

	outcome := Outcome{StatusCode: int64(response.StatusCode)}
	data, err := io.ReadAll(response.Body)
	outcome.Body = string(data)
	if err != nil {
		outcome.Error = fmt.Sprintf("reading response body: %v", err)
		return outcome
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		outcome.Error = fmt.Sprintf("HTTP status %d", response.StatusCode)
	}
	return outcome
}

// applyAuth adds credentials to header, or to the query string for
// api_key auth in query location, and returns the possibly rewritten
// URL.
func (c *Client) applyAuth(ctx context.Context, request *schema.Request, target string, header http.Header) string {
	switch request.AuthType {
	case schema.AuthBearer, schema.AuthJWT, schema.AuthAPIKey, schema.AuthBasic:
	default:
		return target
	}
	if request.AuthSecretRef == "" || c.secrets == nil {
		return target
	}

	secret, err := c.secrets.Secret(ctx, request.AuthSecretRef)
	if err != nil {
		c.logger.Warn("auth secret unavailable, sending without auth",
			"request_id", request.ID,
			"secret_ref", request.AuthSecretRef,
			"error", err,
		)
		return target
	}

	switch request.AuthType {
	case schema.AuthBearer:
		header.Set("Authorization", "Bearer "+secret)

	case schema.AuthJWT:
		c.checkExpiry(request, secret)
		header.Set("Authorization", "Bearer "+secret)

	case schema.AuthAPIKey:
		keyName := request.AuthKeyName
		if keyName == "" {
			keyName = defaultAPIKeyName
		}
		if request.AuthLocation == schema.AuthLocationQuery {
			return appendQueryParam(target, keyName, secret)
		}
		header.Set(keyName, secret)

	case schema.AuthBasic:
		credentials := request.AuthUsername + ":" + secret
		header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(credentials)))
	}
	return target
}

// checkExpiry warns when a jwt token's exp claim has passed. The token
// is not verified; the server does that. Tokens that do not parse are
// sent anyway.
func (c *Client) checkExpiry(request *schema.Request, token string) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		c.logger.Debug("jwt auth token does not parse", "request_id", request.ID, "error", err)
		return
	}
	if claims.ExpiresAt == nil {
		return
	}
	if expiry := claims.ExpiresAt.Time; !expiry.After(c.clock.Now()) {
		c.logger.Warn("jwt auth token has expired",
			"request_id", request.ID,
			"secret_ref", request.AuthSecretRef,
			"expired_at", expiry.UTC().Format(time.RFC3339),
		)
	}
}

func isJSONish(body string) bool {
	trimmed := strings.TrimLeft(body, " \t\r\n")
	return strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[")
}

func appendQueryParam(target, key, value string) string {
	separator := "?"
	if strings.Contains(target, "?") {
		separator = "&"
	}
	return target + separator + url.QueryEscape(key) + "=" + url.QueryEscape(value)
}
