// Package apierr models the error kinds of spec.md §7 as typed errors
// discriminated with errors.As, so a handler can translate any
// component error into the right HTTP status/code pair without
// re-deriving that mapping at every call site.
package apierr

import (
	"fmt"
	"net/http"
)

// Kind enumerates spec.md §7's error taxonomy.
type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindNotFound           Kind = "not_found"
	KindConflictOnCancel   Kind = "conflict_on_cancel"
	KindTransientStore     Kind = "transient_store_error"
	KindReasonerError      Kind = "reasoner_error"
	KindInterruptBestEffort Kind = "interrupt_best_effort"
	KindOrphanFile         Kind = "orphan_file"
)

// Status returns the conventional HTTP status for a Kind.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflictOnCancel:
		return http.StatusConflict
	case KindTransientStore, KindReasonerError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed API error carrying the kind, a stable code (used
// verbatim as the JSON response's error code), and the wrapped cause.
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

// New builds an ad hoc typed error for a status/code pair not covered
// by one of the named Kind constructors below.
func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

// Of builds a typed error from one of spec.md §7's named kinds,
// applying its conventional HTTP status.
func Of(kind Kind, err error) *Error {
	return &Error{Status: kind.Status(), Code: string(kind), Err: err}
}
