package apierr

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	CodeNotFound            = "not_found"
	CodeSessionNotActive    = "session_not_active"
	CodeAlreadyClosed       = "already_closed"
	CodeAlreadyResponded    = "already_responded"
	CodeValidation          = "validation_error"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodePersistence         = "persistence_error"
)

type Error struct {
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func NotFound(what string) *Error {
	return New(http.StatusNotFound, CodeNotFound, fmt.Errorf("%s not found", what))
}

func SessionNotActive(err error) *Error {
	return New(http.StatusBadRequest, CodeSessionNotActive, err)
}

func AlreadyClosed(err error) *Error {
	return New(http.StatusConflict, CodeAlreadyClosed, err)
}

func AlreadyResponded(err error) *Error {
	return New(http.StatusConflict, CodeAlreadyResponded, err)
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidation, err)
}

// UpstreamUnavailable marks a failed call to an external dependency.
func UpstreamUnavailable(err error) *Error {
	return New(http.StatusServiceUnavailable, CodeUpstreamUnavailable, err)
}

func Persistence(err error) *Error {
	return New(http.StatusInternalServerError, CodePersistence, err)
}

// IsCode reports whether err carries the given taxonomy code.
func IsCode(err error, code string) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Code == code
}

// From maps any error onto an HTTP status and code; unclassified errors are
// treated as persistence failures.
func From(err error) (int, string) {
	var ae *Error
	if errors.As(err, &ae) {
		status := ae.Status
		if status == 0 {
			status = http.StatusInternalServerError
		}
		return status, ae.Code
	}
	return http.StatusInternalServerError, CodePersistence
}
