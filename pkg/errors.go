// Package pkg holds the utilities shared across the project.
// This file defines the domain-level errors.
//
// Errors are plain values declared once with errors.New, so callers compare
// them by identity instead of by message:
//
//	if errors.Is(err, pkg.ErrNotFound) { ... }
//
// Wrapping with fmt.Errorf("%w: detail", pkg.ErrX) keeps the sentinel
// reachable through errors.Is while adding context.
package pkg

import "errors"

// HTTP-facing errors. The handler layer maps these to status codes,
// services return them and handlers catch them.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("forbidden")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadRequest    = errors.New("bad request")
	ErrInternal      = errors.New("internal error")
	ErrTooManyReqs   = errors.New("too many requests")
)

// Synchronization errors shared by the server and the classroom client.
//
//   - ErrNetworkFailure: the store or the transport could not be reached.
//   - ErrExternalCallFailed: an analysis service failed or answered garbage.
//   - ErrValidation: a required field is missing (e.g. empty class strength).
//   - ErrDivisionGuard: attendance percentage asked for a zero class strength.
//   - ErrStaleResult: a capture answer arrived after its request was invalidated.
//   - ErrBusy: the same long-running action is already in flight.
var (
	ErrNetworkFailure     = errors.New("network failure")
	ErrExternalCallFailed = errors.New("external call failed")
	ErrValidation         = errors.New("validation failure")
	ErrDivisionGuard      = errors.New("class strength must be greater than zero")
	ErrStaleResult        = errors.New("stale result")
	ErrBusy               = errors.New("action already in progress")
)
