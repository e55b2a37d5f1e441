// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user lacks the
// entitlement an operation requires (a book they never purchased),
// while ErrConflict signals that an operation cannot proceed because
// of existing state.
package repository

import "errors"

// ErrForbidden is returned when the caller holds a valid identity but
// lacks the entitlement for the operation, such as requesting a book
// access token for a book with no active purchase. Handlers translate
// this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a create or update collides with
// existing state. Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrNotFound is returned when a requested row does not exist and the
// absence is part of the contract rather than an internal failure.
var ErrNotFound = errors.New("not found")
