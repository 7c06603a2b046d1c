package domain

import (
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrEmptySession is a programmer error: callers must always pass a session.
	ErrEmptySession = errors.New("session id is empty")

	ErrInvalidSession = errors.New("invalid session id")

	ErrInvalidRequest = errors.New("invalid request")

	// ErrNotIngested means no index exists for the session. It is a client error,
	// distinct from "no relevant content".
	ErrNotIngested = errors.New("session has not been ingested")

	// ErrIndexIncompatible means the session index was built with a different
	// embedding model or schema than the one configured.
	ErrIndexIncompatible = errors.New("session index is incompatible with the configured embedder")
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidateSessionID rejects empty ids and ids that cannot be used as a path segment.
func ValidateSessionID(id string) error {
	if id == "" {
		return ErrEmptySession
	}
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSession, id)
	}
	return nil
}

// InvalidRequest wraps ErrInvalidRequest with a formatted reason.
func InvalidRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// IsRequestError reports whether err should be surfaced to the caller as a
// request-level failure rather than folded into a payload.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrEmptySession) ||
		errors.Is(err, ErrInvalidSession) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrNotIngested)
}
