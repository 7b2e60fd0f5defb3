package service

import "errors"

var (
	// ErrEmailTaken is returned when registering with an email that already exists.
	ErrEmailTaken = errors.New("email already in use")
	// ErrUserNotFound is returned when no user exists for the given email.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidCredentials indicates that provided login credentials are incorrect.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrCarNotFound is returned when no car matches the id for the requesting owner.
	ErrCarNotFound = errors.New("car not found")
)

// ValidationError marks a caller mistake (missing or malformed input) so the
// HTTP boundary can answer with a client error instead of a server one.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

func invalidArgument(msg string) error {
	return &ValidationError{Msg: msg}
}
