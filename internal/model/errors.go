package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateEmail is returned when registering an email that already
	// owns an application. Callers should send the user to login.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrUnknownEmail is returned by login when no application has the email.
	ErrUnknownEmail = errors.New("invalid email address")
	// ErrInvalidCredentials is returned when a professional id and session
	// token do not both match the same application.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMissingCredentials is a client error: the request omitted the
	// professional id or the session token.
	ErrMissingCredentials = errors.New("professional ID and session token required")
	// ErrInvalidSession is returned by the dashboard gate.
	ErrInvalidSession = errors.New("invalid session")
)

// ValidationError reports a missing, blank or out-of-range field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s is required", e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// InvalidFileError names the artifact kind whose upload was refused.
type InvalidFileError struct {
	Kind   ArtifactKind
	Reason string
}

func (e InvalidFileError) Error() string {
	return fmt.Sprintf("invalid file for %s: %s", e.Kind, e.Reason)
}

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on any NotFoundError.
func (e NotFoundError) Is(target error) bool {
	switch target.(type) {
	case NotFoundError, *NotFoundError:
		return true
	}
	return false
}

// ErrNotFound is the sentinel for missing resources.
var ErrNotFound = NotFoundError{}
