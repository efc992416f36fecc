package publisher

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Callers classify failures with errors.Is.
var (
	// ErrNotFound is returned when the requested job does not exist.
	ErrNotFound = errors.New("publish job not found")

	// ErrConflict is returned when a save races a concurrent update; the
	// caller must re-read and re-decide.
	ErrConflict = errors.New("publish job was modified concurrently")

	// ErrInvalidTransition is returned when a command is attempted from a
	// state that does not permit it.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrAlreadyProcessing is returned when a claim is contended; the caller
	// should retry shortly.
	ErrAlreadyProcessing = errors.New("job is already being processed")

	// ErrValidation is returned for malformed job input.
	ErrValidation = errors.New("invalid publish job input")

	// ErrWorkerLost is recorded when a stale claim is reclaimed after a
	// worker crashed mid-dispatch.
	ErrWorkerLost = errors.New("worker lost: stale claim reclaimed")

	// ErrAdapterNotRegistered is returned when no adapter exists for the
	// job's platform.
	ErrAdapterNotRegistered = errors.New("no adapter registered for platform")

	// ErrAssetUnavailable signals that the content item behind a job no
	// longer exists or was unapproved upstream.
	ErrAssetUnavailable = errors.New("content asset unavailable")
)

func invalidTransitionError(from, to Status) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// ErrorClass tags an external failure to drive retry decisions.
type ErrorClass string

const (
	// ErrorClassTransient marks failures worth retrying: timeouts, rate
	// limits, platform 5xx.
	ErrorClassTransient ErrorClass = "transient"

	// ErrorClassPermanent marks failures retrying cannot fix: rejected
	// content, invalid credentials, non-429 4xx.
	ErrorClassPermanent ErrorClass = "permanent"

	// ErrorClassUnknown marks failures the classifier cannot recognize;
	// treated as transient but always consuming an attempt.
	ErrorClassUnknown ErrorClass = "unknown"
)

// ClassifiedError wraps an adapter failure with its retry class.
type ClassifiedError struct {
	Class ErrorClass
	Err   error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Class, e.Err)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps err as retryable.
func NewTransientError(err error) error {
	return &ClassifiedError{Class: ErrorClassTransient, Err: err}
}

// NewPermanentError wraps err as non-retryable.
func NewPermanentError(err error) error {
	return &ClassifiedError{Class: ErrorClassPermanent, Err: err}
}

// Classify extracts the retry class from an adapter error. Deadline and
// cancellation errors count as transient: the call may well have been about
// to succeed. Anything unrecognized is ErrorClassUnknown.
func Classify(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Class
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorClassTransient
	}

	return ErrorClassUnknown
}
