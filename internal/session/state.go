package session

import (
	"fmt"

	"github.com/rewired-gh/churnwatch/internal/models"
)

// State is a workflow state.
type State int

const (
	Unauthenticated State = iota
	ModeChoice
	Uploading
	RequestingSample
	Processing
	ResultsReady
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "Unauthenticated"
	case ModeChoice:
		return "ModeChoice"
	case Uploading:
		return "Uploading"
	case RequestingSample:
		return "RequestingSample"
	case Processing:
		return "Processing"
	case ResultsReady:
		return "ResultsReady"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Authenticated reports whether a passkey has been accepted.
func (s State) Authenticated() bool {
	return s != Unauthenticated
}

// Mode is how the current analysis gets its data.
type Mode string

const (
	ModeNone   Mode = ""
	ModeSample Mode = "sample"
	ModeUpload Mode = "upload"
)

// fallback is where a failed request of this mode returns to.
func (m Mode) fallback() State {
	if m == ModeUpload {
		return Uploading
	}
	return ModeChoice
}

// Outcome is the resolution of one submission.
type Outcome struct {
	RequestID string
	Result    *models.PredictionResult
	Err       error
}

// Ticket identifies a started submission.
type Ticket struct {
	RequestID string
	done      chan struct{}
}

// Done is closed once the outcome has been applied or dropped.
func (t *Ticket) Done() <-chan struct{} {
	return t.done
}

// Snapshot is a read-only copy of the workflow for rendering.
type Snapshot struct {
	State     State
	Mode      Mode
	Error     string
	Progress  int
	RequestID string
	File      string
	HasResult bool
	Dashboard Dashboard
}
