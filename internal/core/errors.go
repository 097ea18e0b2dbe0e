package core

import "errors"

// Sentinel errors returned by Service. Callers match them with errors.Is.
var (
	// ErrNotFound is returned when a file, run or user does not exist.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a caller asks for another user's data.
	ErrForbidden = errors.New("forbidden")

	// ErrEmailTaken is returned when registering an email that already exists.
	ErrEmailTaken = errors.New("email already registered")

	// ErrIOFailure wraps failures reading or writing stored files or rows.
	ErrIOFailure = errors.New("storage failure")
)

// ErrInvalidRequest is returned for malformed request fields such as a bad
// email, a short password or a non-CSV upload.
var ErrInvalidRequest = errors.New("invalid request")
