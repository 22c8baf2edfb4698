package errors

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalid          = errors.New("invalid")
	ErrConflict         = errors.New("conflict")
	ErrTooMany          = errors.New("too many requests")
	ErrInternal         = errors.New("internal")
	ErrRateLimited      = errors.New("rate limited")
	ErrUpstreamTransient = errors.New("upstream transient failure")
	ErrUpstreamFatal    = errors.New("upstream fatal failure")
	ErrPartialContent   = errors.New("ingestion partial content")
)

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}
