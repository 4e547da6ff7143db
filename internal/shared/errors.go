package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccessDenied is the uniform terminal outcome for authorization
	// denials. It is never retried.
	ErrAccessDenied = errors.New("access denied")
	// ErrDuplicate indicates a uniqueness violation.
	ErrDuplicate = errors.New("duplicate entry")
	// ErrValidation indicates malformed or rejected input.
	ErrValidation = errors.New("validation failed")
	// ErrCascadeIncomplete indicates a lifecycle cascade failed partway.
	// The cascade is idempotent, so a compensating re-run is safe.
	ErrCascadeIncomplete = errors.New("lifecycle cascade incomplete")
)
