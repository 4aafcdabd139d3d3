package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	arkmodel "github.com/volcengine/volcengine-go-sdk/service/arkruntime/model"
)

var (
	// ErrAuthentication is returned when the credential is missing or rejected.
	ErrAuthentication = errors.New("completion service authentication failed")
	// ErrTransport is returned when the completion service cannot be reached
	// or does not produce a usable response.
	ErrTransport = errors.New("completion service transport failure")
	// ErrRateLimitOrQuota is returned when the provider throttles the call or
	// the account quota is exhausted.
	ErrRateLimitOrQuota = errors.New("completion service rate limit or quota exceeded")
	// ErrInvalidRequest is returned before any call when a generation request
	// breaks the message layout invariant.
	ErrInvalidRequest = errors.New("invalid generation request")
	// ErrEmptyCompletion is returned when the provider answers without content.
	ErrEmptyCompletion = errors.New("completion returned no choices")
)

// CompletionError describes a failed completion call. Kind is one of
// ErrAuthentication, ErrTransport or ErrRateLimitOrQuota, so callers can
// branch with errors.Is.
type CompletionError struct {
	Kind       error
	StatusCode int
	Err        error
}

func (e *CompletionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%v (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%v: %v", e.Kind, e.Err)
}

func (e *CompletionError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// classifyError maps provider, network and context failures onto the three
// completion error kinds.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	var completionErr *CompletionError
	if errors.As(err, &completionErr) {
		return err
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &CompletionError{Kind: ErrTransport, Err: err}
	}

	var apiErr *arkmodel.APIError
	if errors.As(err, &apiErr) {
		kind := kindForStatus(apiErr.HTTPStatusCode)
		if kind == ErrTransport {
			kind = kindForCode(apiErr.Code, kind)
		}
		return &CompletionError{Kind: kind, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}

	var reqErr *arkmodel.RequestError
	if errors.As(err, &reqErr) {
		return &CompletionError{Kind: kindForStatus(reqErr.HTTPStatusCode), StatusCode: reqErr.HTTPStatusCode, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &CompletionError{Kind: ErrTransport, Err: err}
	}

	return &CompletionError{Kind: kindForMessage(err.Error()), Err: err}
}

func kindForStatus(status int) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthentication
	case status == http.StatusTooManyRequests:
		return ErrRateLimitOrQuota
	default:
		return ErrTransport
	}
}

func kindForCode(code string, fallback error) error {
	lowered := strings.ToLower(code)
	switch {
	case strings.Contains(lowered, "ratelimit"), strings.Contains(lowered, "rate_limit"),
		strings.Contains(lowered, "quota"), strings.Contains(lowered, "insufficient"):
		return ErrRateLimitOrQuota
	case strings.Contains(lowered, "auth"), strings.Contains(lowered, "apikey"), strings.Contains(lowered, "api_key"):
		return ErrAuthentication
	default:
		return fallback
	}
}

// kindForMessage is the last resort for errors that reach us already
// flattened to text by an intermediate layer.
func kindForMessage(msg string) error {
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "status code: 401"), strings.Contains(lowered, "status code: 403"),
		strings.Contains(lowered, "unauthorized"), strings.Contains(lowered, "invalid api key"):
		return ErrAuthentication
	case strings.Contains(lowered, "status code: 429"), strings.Contains(lowered, "rate limit"),
		strings.Contains(lowered, "quota"):
		return ErrRateLimitOrQuota
	default:
		return ErrTransport
	}
}
