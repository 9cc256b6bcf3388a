// Package errors classifies the failures a stage worker can encounter so the
// job engine can decide whether a retry spends an attempt, skips the retry
// budget entirely, or terminates the job immediately.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a process-job failure.
type Kind int

const (
	// KindTransient is a retryable failure that counts against attempts.
	KindTransient Kind = iota
	// KindRateLimited is a retryable failure that must NOT count against
	// attempts (see RateLimitError).
	KindRateLimited
	// KindValidation is a retryable failure caused by malformed input or
	// output (e.g. unparsable LLM JSON).
	KindValidation
	// KindPermanentNotFound is a terminal failure with its own status
	// (README stage's no_readme).
	KindPermanentNotFound
	// KindFatal is an internal invariant violation; always terminal
	// regardless of remaining attempts.
	KindFatal
)

// ProcessError wraps a stage failure with its classification.
type ProcessError struct {
	Kind Kind
	Err  error
}

func (e *ProcessError) Error() string {
	return e.Err.Error()
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

func Transient(err error) error {
	return &ProcessError{Kind: KindTransient, Err: err}
}

func Validation(err error) error {
	return &ProcessError{Kind: KindValidation, Err: err}
}

func NotFound(err error) error {
	return &ProcessError{Kind: KindPermanentNotFound, Err: err}
}

func Fatal(err error) error {
	return &ProcessError{Kind: KindFatal, Err: err}
}

// RateLimitError carries the external API's reset time so the worker can
// sleep past it before resuming its loop.
type RateLimitError struct {
	StatusCode int
	ResetAt    time.Time
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit hit (status %d), resets at %s", e.StatusCode, e.ResetAt.Format("15:04:05"))
}

// ClassifyErr returns the Kind of err, defaulting to KindTransient for plain
// errors and KindRateLimited for a *RateLimitError.
func ClassifyErr(err error) Kind {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return KindRateLimited
	}
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindTransient
}

// ResetTimeOf extracts the rate-limit reset time from err, if it (or
// something it wraps) is a *RateLimitError.
func ResetTimeOf(err error) (time.Time, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl.ResetAt, true
	}
	return time.Time{}, false
}
