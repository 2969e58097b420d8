// Package transfer tracks one server-side bucket-to-bucket transfer job from
// submission to a terminal state by polling the backend.
package transfer

import (
	"errors"
	"fmt"
	"time"
)

// State represents the lifecycle state of a transfer job.
type State string

const (
	StateIdle         State = "idle"         // Nothing submitted yet
	StateTransferring State = "transferring" // Submitted or being polled
	StateCompleted    State = "completed"    // Backend reported COMPLETED
	StateError        State = "error"        // Submission failed or backend reported FAILED
)

// IsTerminal reports whether no further transition happens without a new
// submission.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateError
}

// Job is a snapshot of a transfer job. Source, destination and key never
// change after submission.
type Job struct {
	ID                string
	SourceBucket      string
	DestinationBucket string
	FileKey           string
	State             State
	LastStatus        string // raw backend status from the latest poll
	Err               string // failure description when State is StateError
	SubmittedAt       time.Time
	FinishedAt        time.Time
}

// Duration returns how long the job ran, or has been running.
func (j Job) Duration() time.Duration {
	if j.SubmittedAt.IsZero() {
		return 0
	}
	if j.FinishedAt.IsZero() {
		return time.Since(j.SubmittedAt)
	}
	return j.FinishedAt.Sub(j.SubmittedAt)
}

// Failure descriptions stored in Job.Err.
const (
	ErrTextFailed      = "Transfer failed"
	ErrTextStartFailed = "Transfer failed to start. Please try again."
)

var (
	// ErrMissingField is wrapped by every ValidationError.
	ErrMissingField = errors.New("missing required field")

	// ErrJobAlreadyActive rejects a submission while a job is transferring.
	ErrJobAlreadyActive = errors.New("a transfer is already in progress")

	// ErrSubmissionFailed wraps the transport or status error of the submit request.
	ErrSubmissionFailed = errors.New("transfer submission failed")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transfer controller closed")
)

// Field names reported by ValidationError.
const (
	FieldSourceBucket      = "source bucket"
	FieldDestinationBucket = "destination bucket"
	FieldFileKey           = "file key"
)

// ValidationError reports a blank submission field. No request is made.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ValidationError) Unwrap() error {
	return ErrMissingField
}
