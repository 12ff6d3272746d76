package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrProfileMismatch = errors.New("profile does not match user type")
	ErrInvalidUserType = errors.New("invalid user type")
	ErrUserTypeChange  = errors.New("user type cannot be changed after registration")
	ErrNoSession       = errors.New("no active session")
)

// ErrorKind classifies failures surfaced by credential operations.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindValidation         ErrorKind = "validation"
	KindAuthRejected       ErrorKind = "auth_rejected"
	KindUnverifiedIdentity ErrorKind = "unverified_identity"
	KindProfilePersistence ErrorKind = "profile_persistence"
	KindTransport          ErrorKind = "transport"
	// KindCancelled marks a login overtaken by a logout.
	KindCancelled ErrorKind = "cancelled"
)

// AuthError is returned by an AuthCollaborator when the backend refuses or
// cannot complete a call. Message is safe to show to the user.
type AuthError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func NewAuthError(kind ErrorKind, message string) *AuthError {
	return &AuthError{Kind: kind, Message: message}
}

// KindOf reports the ErrorKind carried by err, defaulting to KindTransport for
// errors that did not come from the collaborator.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Kind
	}
	return KindTransport
}
