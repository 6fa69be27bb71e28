// Package ai defines the model-facing contracts shared by the scoring
// pipeline: the score response shape, the failure taxonomy used by the
// retry policy, and the client interface the dispatcher calls.
package ai

import (
	"context"
	"errors"
	"fmt"
)

// FailureKind classifies a failed model call for the retry policy.
type FailureKind string

const (
	// FailureTransient covers timeouts, overload and connection errors.
	// Expected to be retry-recoverable.
	FailureTransient FailureKind = "transient"
	// FailureFatal covers authentication and malformed-request errors.
	// Retrying cannot help.
	FailureFatal FailureKind = "fatal"
	// FailureMalformed means the service answered but the content did not
	// match the expected structured format. Retried with a lower ceiling.
	FailureMalformed FailureKind = "malformed_response"
)

// ScoreResponse is a parsed model answer for one axis.
type ScoreResponse struct {
	Score       int
	Explanation string
	// Raw keeps the unparsed model output for audit.
	Raw string
}

// Scorer is one network call to the external scoring service. No retry
// logic of its own; failed calls come back as classified errors.
type Scorer interface {
	Score(ctx context.Context, prompt string) (*ScoreResponse, error)
}

// ClassifiedError attaches a FailureKind to an underlying error.
type ClassifiedError struct {
	Kind FailureKind
	Err  error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *ClassifiedError) Unwrap() error { return e.Err }

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	return &ClassifiedError{Kind: FailureTransient, Err: err}
}

// Fatal wraps err as a non-retryable failure.
func Fatal(err error) error {
	return &ClassifiedError{Kind: FailureFatal, Err: err}
}

// Malformed wraps err as a malformed-response failure.
func Malformed(err error) error {
	return &ClassifiedError{Kind: FailureMalformed, Err: err}
}

// Classify returns the failure kind of err. Unclassified errors count as
// transient: an unknown network-level failure is worth one more attempt,
// never a silent drop.
func Classify(err error) FailureKind {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Kind
	}
	return FailureTransient
}
