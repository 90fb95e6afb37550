// Package watcherr defines the error kinds shared by every gradewatch component.
//
// Each kind is a sentinel that callers match with errors.Is. Concrete failures
// carry the kind, the operation that failed and the underlying cause.
package watcherr

import (
	"errors"
	"fmt"
)

var (
	// ErrTransientNetwork is a timeout, connection reset or 5xx from a remote.
	ErrTransientNetwork = errors.New("transient network failure")
	// ErrSessionExpired means the portal session was rejected and could not be restored.
	ErrSessionExpired = errors.New("session expired")
	// ErrLoginFailure means the portal refused the credentials or the handshake broke.
	ErrLoginFailure = errors.New("login failed")
	// ErrExtraction means the course table or its header row is missing.
	ErrExtraction = errors.New("extraction failed")
	// ErrDelivery means the notification channel did not accept a message.
	ErrDelivery = errors.New("delivery failed")
	// ErrPersistence means the state store could not be read or written.
	ErrPersistence = errors.New("persistence failed")
	// ErrConfig means required configuration is missing or invalid.
	ErrConfig = errors.New("invalid configuration")
)

// Error is a failure of a specific kind during a named operation.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap returns err tagged with kind, nil stays nil.
func Wrap(kind error, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// New returns a failure of kind with no further cause.
func New(kind error, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Retryable reports whether repeating the same operation could succeed.
// Configuration and login failures are final, everything else is worth another try.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrConfig), errors.Is(err, ErrLoginFailure):
		return false
	}
	return true
}
