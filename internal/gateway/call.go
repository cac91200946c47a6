// ABOUTME: Single call path for every storefront endpoint
// ABOUTME: Applies request interceptors, classifies failures and returns a Result

package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

const (
	csrfCookieName = "csrftoken"
	csrfHeaderName = "X-CSRFToken"
	userIDHeader   = "X-User-Id"
	requestIDHead  = "X-Request-Id"

	maxResponseBytes = 4 << 20
)

// Result carries either a decoded value or the classified failure
type Result[T any] struct {
	Value T
	Err   error
}

// Unwrap converts the result to Go's value, error convention
func (r Result[T]) Unwrap() (T, error) {
	return r.Value, r.Err
}

// OK reports whether the call succeeded
func (r Result[T]) OK() bool {
	return r.Err == nil
}

// endpoint describes a route and how the interceptors treat it
type endpoint struct {
	method string
	path   string
	// public endpoints never carry the credential
	public bool
	// authFlow endpoints never trigger a forced session clear
	authFlow bool
}

type request struct {
	ep    endpoint
	args  []interface{}
	query url.Values
	body  interface{}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// call is the one place requests are built, sent, logged and classified
func call[T any](ctx context.Context, c *Client, r request) Result[T] {
	var out T

	path := r.ep.path
	if len(r.args) > 0 {
		path = fmt.Sprintf(r.ep.path, r.args...)
	}

	req, err := c.newRequest(ctx, r, path)
	if err != nil {
		return Result[T]{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	requestID := req.Header.Get(requestIDHead)
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		apiErr := c.networkError(ctx, path, err)
		slog.Warn("API call failed", "method", r.ep.method, "path", path, "request_id", requestID, "error", apiErr)
		return Result[T]{Err: apiErr}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		apiErr := &Error{Kind: KindNetwork, Status: resp.StatusCode, Endpoint: path, Message: "failed to read response", Err: err}
		slog.Warn("API call failed", "method", r.ep.method, "path", path, "request_id", requestID, "error", err)
		return Result[T]{Err: apiErr}
	}

	if resp.StatusCode >= 400 {
		msg, fields := decodeErrorBody(resp.StatusCode, body)
		apiErr := &Error{
			Kind:     classifyStatus(resp.StatusCode),
			Status:   resp.StatusCode,
			Endpoint: path,
			Message:  msg,
			Fields:   fields,
		}
		slog.Warn("API call rejected",
			"method", r.ep.method,
			"path", path,
			"status", resp.StatusCode,
			"kind", apiErr.Kind.String(),
			"request_id", requestID,
			"duration", time.Since(start),
		)

		if apiErr.Kind == KindAuthorization && !r.ep.authFlow && c.onAuthFailure != nil {
			c.onAuthFailure(c.snapshot)
		}
		return Result[T]{Err: apiErr}
	}

	slog.Debug("API call",
		"method", r.ep.method,
		"path", path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration", time.Since(start),
	)

	if len(bytes.TrimSpace(body)) == 0 {
		return Result[T]{Value: out}
	}
	if _, discard := any(&out).(*struct{}); discard {
		return Result[T]{Value: out}
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return Result[T]{Err: &Error{
			Kind:     KindServer,
			Status:   resp.StatusCode,
			Endpoint: path,
			Message:  "invalid response from storefront",
			Err:      err,
		}}
	}
	return Result[T]{Value: out}
}

// newRequest builds the request and applies the request interceptors in order:
// credential, anti-forgery token, user id.
func (c *Client) newRequest(ctx context.Context, r request, path string) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	if r.query != nil {
		u.RawQuery = r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		data, err := json.Marshal(r.body)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, r.ep.method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(requestIDHead, uuid.NewString())

	if c.snapshot.Authenticated() && !r.ep.public {
		req.Header.Set("Authorization", "Token "+c.snapshot.Credential)
	}

	if isMutating(r.ep.method) {
		if token := c.csrfToken(req.URL); token != "" {
			req.Header.Set(csrfHeaderName, token)
		}
	}

	if c.snapshot.UserID != 0 && !r.ep.public {
		req.Header.Set(userIDHeader, fmt.Sprintf("%d", c.snapshot.UserID))
	}

	return req, nil
}

// csrfToken reads the anti-forgery token from the ambient cookie jar
func (c *Client) csrfToken(u *url.URL) string {
	if c.jar == nil {
		return ""
	}
	for _, cookie := range c.jar.Cookies(u) {
		if cookie.Name == csrfCookieName {
			return cookie.Value
		}
	}
	return ""
}

func (c *Client) networkError(ctx context.Context, path string, err error) *Error {
	apiErr := &Error{Kind: KindNetwork, Endpoint: path, Err: err}

	var netErr net.Error
	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		apiErr.Message = "request canceled"
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		apiErr.Message = "request timed out"
	case errors.As(err, &netErr) && netErr.Timeout():
		apiErr.Message = "request timed out"
	default:
		apiErr.Message = fmt.Sprintf("cannot connect to storefront at %s: %v", c.baseURL.Host, err)
	}
	return apiErr
}
