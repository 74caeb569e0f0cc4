package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across repositories and services.
var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNotApproved is returned when QR issuance is requested for a
	// subject whose current approval status is not approved.
	ErrNotApproved = errors.New("subject is not approved")

	// ErrVersionConflict is returned when an optimistic update loses a
	// race against a concurrent writer on the same certificate.
	ErrVersionConflict = errors.New("certificate version conflict")
)

// Validation check identifiers surfaced to uploaders so they can fix the
// certificate instead of guessing which check failed.
const (
	CheckEmptyFile         = "empty_file"
	CheckFileTooLarge      = "file_too_large"
	CheckUnsupportedFormat = "unsupported_format"
	CheckNoDates           = "no_dates"
	CheckDateMismatch      = "date_mismatch"
)

// ValidationError rejects an upload synchronously; the document is never
// persisted.
type ValidationError struct {
	Check  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Check, e.Reason)
}

// NewValidationError builds a ValidationError for the given check.
func NewValidationError(check, reason string) *ValidationError {
	return &ValidationError{Check: check, Reason: reason}
}

// AsValidationError unwraps err into a ValidationError if possible.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
