// Package supabase binds the auth collaborator and the profile store to a
// Supabase project: GoTrue under /auth/v1 and PostgREST under /rest/v1.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agribid-backend/internal/domain"
)

const defaultTimeout = 10 * time.Second

// Client performs JSON calls against a Supabase project.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient returns a client for baseURL. A nil httpClient gets a 10s timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// APIKey returns the project key sent in the apikey header.
func (c *Client) APIKey() string {
	return c.apiKey
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	bearer  string
	headers map[string]string
}

// do sends req and decodes a successful response into out (when non-nil).
// Failures are returned as *domain.AuthError.
func (c *Client) do(ctx context.Context, req request, out any) error {
	u := c.baseURL + req.path
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return &domain.AuthError{Kind: domain.KindTransport, Message: "failed to encode request", Err: err}
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, body)
	if err != nil {
		return &domain.AuthError{Kind: domain.KindTransport, Message: "failed to build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("apikey", c.apiKey)
	bearer := req.bearer
	if bearer == "" {
		bearer = c.apiKey
	}
	if bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+bearer)
	}
	for k, v := range req.headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &domain.AuthError{Kind: domain.KindTransport, Message: "service unavailable", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &domain.AuthError{Kind: domain.KindTransport, Status: resp.StatusCode, Message: "failed to parse response", Err: err}
	}
	return nil
}

// decodeError normalizes GoTrue and PostgREST error bodies. GoTrue uses msg,
// error_description or error plus error_code; PostgREST uses message and code.
func decodeError(resp *http.Response) *domain.AuthError {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body map[string]any
	_ = json.Unmarshal(raw, &body)

	message := firstString(body, "msg", "error_description", "message", "error")
	code := firstString(body, "error_code", "code")
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}

	authErr := &domain.AuthError{
		Status:  resp.StatusCode,
		Code:    code,
		Message: message,
		Err:     fmt.Errorf("supabase: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
	}
	switch {
	case code == "email_not_confirmed" || strings.Contains(message, "Email not confirmed"):
		authErr.Kind = domain.KindUnverifiedIdentity
	case resp.StatusCode >= 500:
		authErr.Kind = domain.KindTransport
	default:
		authErr.Kind = domain.KindAuthRejected
	}
	return authErr
}

func firstString(body map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := body[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
