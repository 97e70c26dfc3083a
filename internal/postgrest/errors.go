package postgrest

import (
	"errors"
	"fmt"

	"go.trai.ch/zerr"
)

var (
	// ErrUnfilteredWrite guards against PATCH or DELETE without a filter, which
	// PostgREST would apply to every row in the table.
	ErrUnfilteredWrite = zerr.New("postgrest: update and delete require at least one filter")

	// ErrEmptyInsert is returned when Insert is given no rows.
	ErrEmptyInsert = zerr.New("postgrest: nothing to insert")
)

// UnavailableError means the remote store could not be reached or did not
// answer before the timeout.
type UnavailableError struct {
	Method string
	Table  string
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("postgrest: %s %s: remote unavailable: %v", e.Method, e.Table, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// RejectedError carries a non-2xx response from the remote store. A rejected
// write has not been applied.
type RejectedError struct {
	Method string
	Table  string
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("postgrest: %s %s: status %d: %s", e.Method, e.Table, e.Status, e.Body)
}

// IsUnavailable reports whether err is, or wraps, an *UnavailableError.
func IsUnavailable(err error) bool {
	var u *UnavailableError
	return errors.As(err, &u)
}

// RejectedStatus returns the HTTP status of a wrapped *RejectedError, or 0.
func RejectedStatus(err error) int {
	var r *RejectedError
	if errors.As(err, &r) {
		return r.Status
	}
	return 0
}
