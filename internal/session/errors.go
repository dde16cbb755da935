package session

import (
	"errors"
	"fmt"

	"github.com/rewired-gh/churnwatch/internal/upload"
)

const invalidPasskeyMessage = "Invalid authorization key. Please try again."

// AuthError is a rejected passkey. The operator may retry at once.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string { return e.Message }

// TransitionError is an operation called from a state that does not allow it.
type TransitionError struct {
	From State
	Op   string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s from state %s", e.Op, e.From)
}

// ErrSubmissionInFlight rejects a start while a submission is outstanding.
var ErrSubmissionInFlight = upload.ErrSubmissionInFlight

// ErrNoResult is returned by View when there is nothing to display.
var ErrNoResult = errors.New("no prediction result available")

// failureMessage picks the text recorded for a failed submission.
func failureMessage(err error) string {
	var failed *upload.FailedError
	if errors.As(err, &failed) {
		return failed.Message
	}
	var invalid *upload.ValidationError
	if errors.As(err, &invalid) {
		return invalid.Message
	}
	return err.Error()
}
