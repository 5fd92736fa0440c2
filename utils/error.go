package utils

import "errors"

var (
	ErrorRecordNotFound  = errors.New("record not found")
	ErrorUnauthorized    = errors.New("unauthorized")
	ErrorForbidden       = errors.New("forbidden")
	ErrorStoreIdRequired = errors.New("store id is required")
	ErrorLockBusy        = errors.New("resource is busy, try again")
)

// ValidationError carries a user-facing message and is rendered as 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func NewValidationError(msg string) error {
	return &ValidationError{Message: msg}
}

func IsValidationError(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
