package llm

import (
	"errors"
)

// Gateway failures are classified at the point of occurrence so the
// retry loop never has to inspect HTTP details: rate limits, 5xx
// responses, and network faults come back transient; auth and
// malformed-request failures come back fatal. Callers like the
// reviewer pool use IsFatal to decide between retrying and falling
// back to a degraded evaluation.

// TransientError marks a gateway failure worth retrying.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string {
	return e.err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.err
}

// NewTransientError wraps err as retryable.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError marks a gateway failure that retrying cannot fix, such as
// a rejected API key or an invalid request body.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string {
	return e.err.Error()
}

func (e *FatalError) Unwrap() error {
	return e.err
}

// NewFatalError wraps err as non-retryable.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err is classified as retryable.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err is classified as non-retryable.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
