package domain

import "errors"

var (
	// ErrRecordNotFound is returned by user stores when no record matches.
	ErrRecordNotFound = errors.New("record not found")
	// ErrUsernameTaken is returned when saving would duplicate a username.
	ErrUsernameTaken = errors.New("username already registered")
	// ErrStaleRecord is returned by conditional updates whose precondition no longer holds.
	ErrStaleRecord = errors.New("record changed since it was read")
)
