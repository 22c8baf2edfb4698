package ai

import (
	"fmt"
	"strings"
)

// Error taxonomy per spec §4.4. Callers distinguish retryable kinds
// (RateLimited, UpstreamTimeout, UpstreamServerError) from fatal ones.
type ErrorKind string

const (
	KindAuthError           ErrorKind = "auth_error"
	KindRateLimited         ErrorKind = "rate_limited"
	KindUpstreamTimeout     ErrorKind = "upstream_timeout"
	KindUpstreamServerError ErrorKind = "upstream_server_error"
	KindBadRequest          ErrorKind = "bad_request"
	KindContextOverflow     ErrorKind = "context_overflow"
)

type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("ai: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
}

func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindRateLimited, KindUpstreamTimeout, KindUpstreamServerError:
		return true
	default:
		return false
	}
}

func newError(statusCode int, body string) *Error {
	kind := classifyStatus(statusCode, body)
	return &Error{Kind: kind, StatusCode: statusCode, Message: body}
}

func classifyStatus(statusCode int, body string) ErrorKind {
	switch {
	case statusCode == 401 || statusCode == 403:
		return KindAuthError
	case statusCode == 429:
		return KindRateLimited
	case statusCode == 408:
		return KindUpstreamTimeout
	case statusCode >= 500:
		return KindUpstreamServerError
	case statusCode == 400 && isContextOverflow(body):
		return KindContextOverflow
	default:
		return KindBadRequest
	}
}

func isContextOverflow(body string) bool {
	lower := strings.ToLower(body)
	for _, needle := range []string{"context_length_exceeded", "maximum context length", "too many tokens"} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
