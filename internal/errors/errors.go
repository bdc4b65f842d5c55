package errors

import (
	"errors"
	"fmt"
)

// Error classes shared by every component. Component errors wrap one of these
// so that callers (and the HTTP layer) can classify a failure with Is.
var (
	// ErrConfiguration is returned for an unknown provider hint or similar
	// misconfiguration. Nothing has been written when it is returned.
	ErrConfiguration = errors.New("configuration error")
	// ErrDecode is returned for a malformed credential blob or request payload.
	ErrDecode = errors.New("decode error")
	// ErrNotFound is returned for an unknown session id or registry entry.
	ErrNotFound = errors.New("not found")
	// ErrIO wraps filesystem failures while appending or rewriting registries.
	ErrIO = errors.New("io error")
	// ErrExternalProcess wraps failures to start or signal the mount engine.
	ErrExternalProcess = errors.New("external process error")
	// ErrRefresh is returned when a provider fails to refresh a token.
	ErrRefresh = errors.New("refresh error")
	// ErrNoRefresh is returned when an entry has no refresh descriptor. It is
	// terminal: there is no retry path.
	ErrNoRefresh = errors.New("no refresh available")
	// ErrInvalidRequest is returned for missing or malformed request parameters.
	ErrInvalidRequest = errors.New("invalid request")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Wrap marks err as belonging to class while keeping err in the chain, so
// both Is(result, class) and Is(result, err) hold.
func Wrap(class error, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", class, err)
}

// New is errors.New, re-exported so callers need only this package.
func New(text string) error {
	return errors.New(text)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Join is errors.Join.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
