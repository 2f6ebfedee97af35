package videogen

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an operation references a task that does
	// not exist.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidState is returned when an operation is illegal for the
	// task's current status, e.g. cancelling a completed task.
	ErrInvalidState = errors.New("operation not valid for task state")

	// ErrGenerationTimeout marks a run that exceeded the configured
	// generation budget without the provider reaching a terminal state.
	ErrGenerationTimeout = errors.New("video generation timed out")
)

// ValidationError reports malformed task input. No task is created; the
// caller is expected to re-prompt rather than abort.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// SubmissionError reports that the provider rejected the render request.
// Submission failures usually mean invalid avatar or voice IDs, so they are
// terminal and never retried.
type SubmissionError struct {
	Detail string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("video submission rejected: %s", e.Detail)
}

// RenderFailedError reports a provider-side failure during rendering.
type RenderFailedError struct {
	Detail string
}

func (e *RenderFailedError) Error() string {
	return fmt.Sprintf("video generation failed: %s", e.Detail)
}

func IsSubmissionError(err error) bool {
	var se *SubmissionError
	return errors.As(err, &se)
}

func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsTimeout(err error) bool {
	return errors.Is(err, ErrGenerationTimeout)
}
