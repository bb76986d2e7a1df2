package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Error categories. Specific errors below wrap one of these so callers can
// branch with errors.Is on either the category or the exact error.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
)

var (
	ErrApplicantNotFound = fmt.Errorf("applicant %w", ErrNotFound)
	ErrOfferNotFound     = fmt.Errorf("offer %w", ErrNotFound)
	ErrPlotNotFound      = fmt.Errorf("plot %w", ErrNotFound)

	ErrOfferNotPending   = fmt.Errorf("%w: offer is no longer pending", ErrInvalidState)
	ErrAlreadyTerminal   = fmt.Errorf("%w: applicant is no longer on the waitlist", ErrInvalidState)
	ErrAlreadyOnWaitlist = fmt.Errorf("%w: email is already on the waitlist", ErrInvalidState)

	ErrInvalidDecision = fmt.Errorf("%w: decision must be accepted or declined", ErrValidation)
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		names = append(names, f.Field)
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}
