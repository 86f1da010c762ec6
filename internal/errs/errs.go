// Package errs classifies failures so transports can map them without
// knowing every domain sentinel.
package errs

import (
	"errors"
	"strings"
)

var (
	ErrValidation   = errors.New("validation_error")
	ErrNotFound     = errors.New("not_found")
	ErrConflict     = errors.New("conflict")
	ErrBusinessRule = errors.New("business_rule_violation")
	ErrTransient    = errors.New("transient_storage_error")
	ErrNotification = errors.New("notification_failure")
)

// Error pairs a kind sentinel with the underlying cause. Both match errors.Is.
type Error struct {
	Kind   error
	Err    error
	Reason string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	if e.Reason != "" {
		return e.Err.Error() + ": " + e.Reason
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func wrap(kind, err error, reason string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err, Reason: strings.TrimSpace(reason)}
}

func Validation(err error) error { return wrap(ErrValidation, err, "") }

func NotFound(err error) error { return wrap(ErrNotFound, err, "") }

func Conflict(err error) error { return wrap(ErrConflict, err, "") }

// BusinessRule attaches a human-readable reason shown to the caller as is.
func BusinessRule(err error, reason string) error { return wrap(ErrBusinessRule, err, reason) }

func Transient(err error) error { return wrap(ErrTransient, err, "") }

func Notification(err error, reason string) error { return wrap(ErrNotification, err, reason) }

// Reason returns the human-readable reason of the outermost classified error.
func Reason(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// IsRetryable reports whether the failure came from a transient storage condition.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Kind returns the classification sentinel, or nil for unclassified errors.
func Kind(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrBusinessRule, ErrTransient, ErrNotification} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
