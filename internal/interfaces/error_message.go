// Package interfaces defines the shared error taxonomy and error envelope used by
// the Git-Captain proxy. Every layer wraps these sentinels with %w so the HTTP
// endpoint layer can map them to a status code with errors.Is.
package interfaces

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrValidationFailed marks a request with a missing field or a malformed repository or branch name.
	ErrValidationFailed = errors.New("validation failed")

	// ErrInvalidInput is returned by the proxy client when a name check fails before dispatch.
	ErrInvalidInput = errors.New("invalid repository or branch name")

	// ErrRateLimitExceeded is returned when the outbound request tracker denies a call.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	// ErrInvalidCredential marks an empty or malformed OAuth token.
	ErrInvalidCredential = errors.New("invalid token provided")

	// ErrProtectedBranch is returned when deletion of master, main or develop is requested.
	ErrProtectedBranch = errors.New("cannot delete protected branch")

	// ErrTransportFailure marks an outbound call for which no HTTP response was received.
	ErrTransportFailure = errors.New("github request failed")
)

// UpstreamError reports a GitHub answer that a helper had to decode but could
// not use. Its status is relayed to the browser unchanged.
type UpstreamError struct {
	Operation  string
	StatusCode int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: github answered %d", e.Operation, e.StatusCode)
}

// ErrorMessage encapsulates an error with an associated HTTP status code.
type ErrorMessage struct {
	// StatusCode is the HTTP status code returned to the browser.
	StatusCode int

	// Error is the underlying error that occurred.
	Error error

	// Addon contains additional headers to be added to the response.
	Addon http.Header

	// Upstream is set when StatusCode was answered by GitHub rather than decided locally.
	Upstream bool
}

// ClassifyError maps an error from any layer to the HTTP status the endpoint
// layer should answer with. GitHub 4xx and 5xx answers carried by an
// UpstreamError keep their status. Unknown errors map to 500.
func ClassifyError(err error) *ErrorMessage {
	if err == nil {
		return nil
	}
	msg := &ErrorMessage{StatusCode: http.StatusInternalServerError, Error: err}
	var upstream *UpstreamError
	if errors.As(err, &upstream) && upstream.StatusCode >= http.StatusBadRequest {
		msg.StatusCode = upstream.StatusCode
		msg.Upstream = true
		return msg
	}
	switch {
	case errors.Is(err, ErrValidationFailed), errors.Is(err, ErrInvalidInput):
		msg.StatusCode = http.StatusBadRequest
	case errors.Is(err, ErrRateLimitExceeded):
		msg.StatusCode = http.StatusTooManyRequests
		msg.Addon = http.Header{"Retry-After": []string{"60"}}
	case errors.Is(err, ErrInvalidCredential):
		msg.StatusCode = http.StatusUnauthorized
	case errors.Is(err, ErrProtectedBranch):
		msg.StatusCode = http.StatusForbidden
	}
	return msg
}
