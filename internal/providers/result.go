package providers

import (
	"fmt"
	"time"
)

// Outcome is the tri-state result of a provider call.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeRetryable Outcome = "retryable_error"
	OutcomeTerminal  Outcome = "terminal_error"
)

// ErrorClass classifies why a provider call did not succeed.
type ErrorClass string

const (
	// Retryable.
	ClassRateLimited ErrorClass = "rate_limited"
	ClassServerError ErrorClass = "server_error"
	ClassTimeout     ErrorClass = "timeout"
	ClassNetwork     ErrorClass = "network"
	ClassBadPayload  ErrorClass = "bad_payload"

	// Terminal.
	ClassBadRequest         ErrorClass = "bad_request"
	ClassUnauthorized       ErrorClass = "unauthorized"
	ClassNotFound           ErrorClass = "not_found"
	ClassMissingCredentials ErrorClass = "missing_credentials"
	ClassInvalidRequest     ErrorClass = "invalid_request"
	ClassUnsupported        ErrorClass = "unsupported"
	ClassDisabled           ErrorClass = "disabled"
)

// Retryable reports whether repeating the same call may succeed.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassRateLimited, ClassServerError, ClassTimeout, ClassNetwork, ClassBadPayload:
		return true
	default:
		return false
	}
}

// ProviderError describes a failed provider call. RetryAfter is only set for
// ClassRateLimited when the provider sent a hint.
type ProviderError struct {
	Provider   string
	Class      ErrorClass
	StatusCode int
	RetryAfter time.Duration
	Reason     string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(" retry after %s", e.RetryAfter)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Result is the outcome of a provider call: a value on success, or a
// ProviderError whose class decides between retryable and terminal. Build it
// with Success or Failure only.
type Result[T any] struct {
	outcome Outcome
	value   T
	err     *ProviderError
}

// Success wraps a normalized payload.
func Success[T any](v T) Result[T] {
	return Result[T]{outcome: OutcomeSuccess, value: v}
}

// Failure wraps err; the outcome follows err.Class.
func Failure[T any](err *ProviderError) Result[T] {
	if err == nil {
		panic("providers: Failure called with nil error")
	}
	outcome := OutcomeTerminal
	if err.Class.Retryable() {
		outcome = OutcomeRetryable
	}
	return Result[T]{outcome: outcome, err: err}
}

// Terminal is shorthand for a non-retryable failure with a reason.
func Terminal[T any](provider string, class ErrorClass, reason string) Result[T] {
	return Failure[T](&ProviderError{Provider: provider, Class: class, Reason: reason})
}

func (r Result[T]) Outcome() Outcome   { return r.outcome }
func (r Result[T]) IsSuccess() bool    { return r.outcome == OutcomeSuccess }
func (r Result[T]) IsRetryable() bool  { return r.outcome == OutcomeRetryable }
func (r Result[T]) IsTerminal() bool   { return r.outcome == OutcomeTerminal }
func (r Result[T]) Err() *ProviderError { return r.err }

// Value returns the payload and whether the call succeeded.
func (r Result[T]) Value() (T, bool) {
	return r.value, r.outcome == OutcomeSuccess
}
