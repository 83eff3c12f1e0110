package docsync

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrNetwork        = errors.New("network error")
	ErrDecode         = errors.New("decode error")
	ErrConflict       = errors.New("revision conflict")
	ErrInvalidInput   = errors.New("invalid input")
	ErrSessionClosed  = errors.New("session closed")
	ErrNotImplemented = errors.New("not implemented")
)

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNetwork:
		return e.StatusCode == http.StatusTooManyRequests || (e.StatusCode >= 500 && e.StatusCode <= 599)
	}
	return false
}

// ConflictError is raised by the poll path when a newer remote revision is
// observed while local edits are pending. The write call itself is optimistic
// and never reports a conflict.
type ConflictError struct {
	Path         string
	LocalCommit  string
	RemoteCommit string
}

func (e *ConflictError) Error() string {
	if e.Path == "" {
		return "revision conflict"
	}
	return fmt.Sprintf("revision conflict for %s (local %s, remote %s)", e.Path, e.LocalCommit, e.RemoteCommit)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}
