package auth

import "errors"

var (
	ErrNotFound        = errors.New("auth: not found")
	ErrConflict        = errors.New("auth: conflict")
	ErrInvalidInput    = errors.New("auth: invalid input")
	ErrUnauthorized    = errors.New("auth: unauthorized")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrInactive        = errors.New("auth: account inactive")
	ErrBadCredentials  = errors.New("auth: bad credentials")
	ErrProtectedUser   = errors.New("auth: protected user")
	ErrTooManyAttempts = errors.New("auth: too many attempts")
)

// FieldError ties a client-facing message to the request field that caused it.
type FieldError struct {
	Field   string
	Message string
	Err     error
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *FieldError) Unwrap() error { return e.Err }

func fieldError(err error, field, message string) error {
	return &FieldError{Field: field, Message: message, Err: err}
}
