package apperrors

import (
	"strings"
)

// ValidationError describes one field of a payload that failed validation.
type ValidationError struct {
	Field  string // The field that caused the validation error.
	Value  any    // The value that caused the validation error.
	ErrStr string // The error message.
}

// Error allows ValidationError to satisfy the error interface.
func (ve ValidationError) Error() string {
	if len(ve.Field) > 0 {
		return ve.Field + ": " + ve.ErrStr
	}
	return ve.ErrStr
}

// ValidationErrors represents a collection of validation errors.
type ValidationErrors []ValidationError

// Error allows ValidationErrors to satisfy the error interface.
func (ves ValidationErrors) Error() string {
	parts := make([]string, 0, len(ves))
	for _, ve := range ves {
		parts = append(parts, ve.Error())
	}
	return strings.Join(parts, "; ")
}
