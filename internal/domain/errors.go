package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the service error taxonomy. Handlers map these onto
// HTTP statuses; everything else is an internal error.
var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrForbidden        = errors.New("ip_not_allowed")
	ErrNotFound         = errors.New("not_found")
	ErrSessionFinalized = errors.New("session_finalized")
	ErrInvalidStatus    = errors.New("invalid_status")
)

// ValidationError carries field-level detail back to the merchant API so
// integration problems are self-describing. The payer-facing checkout
// endpoints never surface it.
type ValidationError struct {
	Code   string
	Fields []string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Code
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Fields)
}

func MissingFields(fields ...string) *ValidationError {
	return &ValidationError{Code: "missing_fields", Fields: fields}
}

func InvalidField(code string) *ValidationError {
	return &ValidationError{Code: code}
}
