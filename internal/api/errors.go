package api

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinels matched with errors.Is against an *Error.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("permission denied")
	ErrNetwork      = errors.New("backend unreachable")
	ErrEmptyAnswer  = errors.New("empty answer")
	ErrMissingToken = errors.New("token missing in response")
)

// Error is returned by every failed backend call.
type Error struct {
	Op     string // e.g. "POST /api/auth/login"
	Status int    // 0 when the request never got a response (timeouts included)
	Detail string // human readable text from the backend payload
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status >= 400 && e.Detail != "":
		return fmt.Sprintf("%s: %d: %s", e.Op, e.Status, e.Detail)
	case e.Status >= 400:
		return fmt.Sprintf("%s: %d %s", e.Op, e.Status, http.StatusText(e.Status))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return e.Op + ": request failed"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is maps status codes onto the package sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrForbidden:
		return e.Status == http.StatusForbidden
	case ErrNetwork:
		return e.Status == 0
	}
	return false
}

// Message returns text fit for the user: the backend's detail when there is
// one, otherwise fallback.
func Message(err error, fallback string) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Detail != "" {
		return ae.Detail
	}
	return fallback
}
