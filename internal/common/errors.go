// Package common defines shared constants and sentinel errors used across
// client and server layers of gophauth. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Service-level errors.
	ErrorValidation   = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorForbidden    = errors.New("forbidden")
	ErrorUnavailable  = errors.New("unavailable")
	ErrorInternal     = errors.New("internal error")

	// Auth errors (absent, malformed, tampered or expired token).
	ErrInvalidToken = errors.New("invalid token")
)

// UserError couples an error kind with a message that is safe to show to
// the caller. errors.Is(err, kind) matches through Unwrap.
type UserError struct {
	Kind error
	Msg  string
}

// NewUserError returns a *UserError of the given kind.
func NewUserError(kind error, msg string) *UserError {
	return &UserError{Kind: kind, Msg: msg}
}

func (e *UserError) Error() string {
	return e.Kind.Error() + ": " + e.Msg
}

func (e *UserError) Unwrap() error {
	return e.Kind
}

// UserMessage extracts the user-facing message from err. The second return
// value is false when err does not carry one.
func UserMessage(err error) (string, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Msg, true
	}
	return "", false
}
