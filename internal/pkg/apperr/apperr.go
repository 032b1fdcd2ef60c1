package apperr

import "errors"

var (
	// ErrNotFound covers both truly missing resources and resources owned
	// by someone else, so existence is never leaked to unauthorized callers.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized means the caller identity is missing or invalid.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidArgument is returned for malformed request input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUpstream wraps failures from embedding, vector-index, or model
	// provider calls.
	ErrUpstream = errors.New("upstream failure")
)
