package model

import "errors"

// ValidationError reports input rejected before anything was written. Field
// names the offending request field when there is one.
type ValidationError struct {
	Field string
	Err   error
}

// Invalid wraps err as a ValidationError for field.
func Invalid(field string, err error) *ValidationError {
	return &ValidationError{Field: field, Err: err}
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err is, or wraps, a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
