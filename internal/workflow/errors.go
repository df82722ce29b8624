package workflow

import "errors"

// Error taxonomy. Handlers map these onto HTTP statuses; everything here is
// recoverable by the caller retrying with corrected input.
var (
	// ErrDenied: caller lacks role/ownership/lock-state permission. Surfaced
	// with no mutation and no log entry.
	ErrDenied = errors.New("authorization_denied")

	// ErrNotFound: referenced payment or counterparty does not exist.
	ErrNotFound = errors.New("not_found")

	// Validation failures; each one is a distinct reportable reason.
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrNoteRequired    = errors.New("note_required")
	ErrInvalidAmount   = errors.New("invalid_amount")
	ErrNotEditable     = errors.New("not_editable")
	ErrMissingRequired = errors.New("missing_required_field")
)
