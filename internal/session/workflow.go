// Package session implements the operator workflow: passkey login, choosing
// between an uploaded file and the server sample, waiting for scoring, and
// holding the resulting prediction set until logout or a new analysis.
//
// The Workflow is safe for concurrent use. Submissions run in the background;
// their outcomes are applied only if they belong to the current request.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/rewired-gh/churnwatch/internal/logger"
	"github.com/rewired-gh/churnwatch/internal/models"
	"github.com/rewired-gh/churnwatch/internal/storage"
	"github.com/rewired-gh/churnwatch/internal/upload"
	"github.com/rewired-gh/churnwatch/internal/view"
)

// DefaultPasskeys is the allow-set used when none is configured.
var DefaultPasskeys = []string{"admin123", "churn2026"}

// Submitter runs a scoring request. *upload.Coordinator implements it.
type Submitter interface {
	ValidateFile(f *upload.File) error
	Submit(ctx context.Context, src upload.Source, onProgress func(int)) (*models.PredictionResult, error)
}

// ResultStore persists the current result. *storage.Store implements it.
type ResultStore interface {
	SaveResult(r *models.PredictionResult) error
	LoadResult() (*models.PredictionResult, error)
	ClearResult() error
}

// Notifier is told about every freshly received result.
type Notifier interface {
	NotifyResult(r *models.PredictionResult) error
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithStore persists results across restarts.
func WithStore(s ResultStore) Option {
	return func(w *Workflow) { w.store = s }
}

// WithDashboard sets the metadata source used by LoadDashboard.
func WithDashboard(d DashboardSource) Option {
	return func(w *Workflow) { w.dashboard = d }
}

// WithNotifier sends new results to n. Notifier failures are logged only.
func WithNotifier(n Notifier) Option {
	return func(w *Workflow) { w.notifier = n }
}

// WithViewOptions passes options to every view.Model built by View.
func WithViewOptions(opts ...view.Option) Option {
	return func(w *Workflow) { w.viewOpts = append(w.viewOpts, opts...) }
}

// WithIDGenerator replaces uuid request IDs.
func WithIDGenerator(f func() string) Option {
	return func(w *Workflow) { w.newID = f }
}

// Workflow is the session state machine.
type Workflow struct {
	mu sync.Mutex

	passkeys  map[string]struct{}
	submitter Submitter
	store     ResultStore
	dashboard DashboardSource
	notifier  Notifier
	viewOpts  []view.Option
	newID     func() string

	state    State
	mode     Mode
	errMsg   string
	progress int
	file     *upload.File
	result   *models.PredictionResult

	requestID string
	cancel    context.CancelFunc
	done      chan struct{}

	slots   Dashboard
	dashGen uint64
}

// New creates a workflow in Unauthenticated. An empty passkeys slice uses DefaultPasskeys.
func New(passkeys []string, submitter Submitter, opts ...Option) *Workflow {
	if len(passkeys) == 0 {
		passkeys = DefaultPasskeys
	}
	w := &Workflow{
		passkeys:  make(map[string]struct{}, len(passkeys)),
		submitter: submitter,
		newID:     func() string { return uuid.New().String() },
		state:     Unauthenticated,
	}
	for _, k := range passkeys {
		w.passkeys[k] = struct{}{}
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// State returns the current state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Snapshot returns a copy of everything a renderer needs.
func (w *Workflow) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	s := Snapshot{
		State:     w.state,
		Mode:      w.mode,
		Error:     w.errMsg,
		Progress:  w.progress,
		RequestID: w.requestID,
		HasResult: w.result != nil,
		Dashboard: w.slots,
	}
	if w.file != nil {
		s.File = w.file.Name
	}
	return s
}

// Result returns the current prediction result, or nil.
func (w *Workflow) Result() *models.PredictionResult {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.result
}

// View returns a fresh view model over the current result.
func (w *Workflow) View() (*view.Model, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state != ResultsReady || w.result == nil {
		return nil, ErrNoResult
	}
	return view.New(w.result, w.viewOpts...), nil
}

// SubmitPasskey moves to ModeChoice if key is in the allow-set. Otherwise the
// state is unchanged and an *AuthError is returned.
func (w *Workflow) SubmitPasskey(key string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Unauthenticated {
		return &TransitionError{From: w.state, Op: "submit passkey"}
	}
	if _, ok := w.passkeys[key]; !ok {
		w.errMsg = invalidPasskeyMessage
		logger.Warn("Rejected passkey")
		return &AuthError{Message: invalidPasskeyMessage}
	}
	w.errMsg = ""
	w.state = ModeChoice
	logger.Info("Session authenticated")
	return nil
}

// ChooseSampleMode moves from ModeChoice to RequestingSample.
func (w *Workflow) ChooseSampleMode() error {
	return w.chooseMode(ModeSample, RequestingSample, "choose sample mode")
}

// ChooseUploadMode moves from ModeChoice to Uploading.
func (w *Workflow) ChooseUploadMode() error {
	return w.chooseMode(ModeUpload, Uploading, "choose upload mode")
}

func (w *Workflow) chooseMode(m Mode, to State, op string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != ModeChoice {
		return &TransitionError{From: w.state, Op: op}
	}
	w.mode = m
	w.state = to
	w.errMsg = ""
	w.file = nil
	return nil
}

// SelectFile validates f and remembers it for StartUpload. A rejected file
// leaves the workflow in Uploading with the validation message recorded.
func (w *Workflow) SelectFile(f *upload.File) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Uploading {
		return &TransitionError{From: w.state, Op: "select file"}
	}
	if err := w.submitter.ValidateFile(f); err != nil {
		w.file = nil
		w.errMsg = failureMessage(err)
		return err
	}
	w.file = f
	w.errMsg = ""
	return nil
}

// StartUpload submits f, or the previously selected file when f is nil.
func (w *Workflow) StartUpload(ctx context.Context, f *upload.File) (*Ticket, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == Processing {
		return nil, ErrSubmissionInFlight
	}
	if w.state != Uploading {
		return nil, &TransitionError{From: w.state, Op: "start upload"}
	}
	if f == nil {
		f = w.file
	}
	if err := w.submitter.ValidateFile(f); err != nil {
		w.file = nil
		w.errMsg = failureMessage(err)
		return nil, err
	}
	w.file = f
	return w.startLocked(ctx, upload.FileSource(f)), nil
}

// StartSample asks the server to score its sample dataset.
func (w *Workflow) StartSample(ctx context.Context) (*Ticket, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == Processing {
		return nil, ErrSubmissionInFlight
	}
	if w.state != RequestingSample {
		return nil, &TransitionError{From: w.state, Op: "start sample"}
	}
	return w.startLocked(ctx, upload.SampleSource()), nil
}

func (w *Workflow) startLocked(ctx context.Context, src upload.Source) *Ticket {
	id := w.newID()
	subCtx, cancel := context.WithCancel(ctx)
	t := &Ticket{RequestID: id, done: make(chan struct{})}

	w.state = Processing
	w.errMsg = ""
	w.progress = 0
	w.requestID = id
	w.cancel = cancel
	w.done = t.done

	go func() {
		defer close(t.done)
		result, err := w.submitter.Submit(subCtx, src, func(p int) { w.setProgress(id, p) })
		w.OnUploadResult(Outcome{RequestID: id, Result: result, Err: err})
	}()

	logger.Debug("Started request %s for %s", id, src)
	return t
}

func (w *Workflow) setProgress(id string, p int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.requestID == id && w.state == Processing {
		w.progress = p
	}
}

// OnUploadResult applies the outcome of the current request and reports
// whether it was applied. Outcomes of superseded requests are dropped.
func (w *Workflow) OnUploadResult(o Outcome) bool {
	w.mu.Lock()
	if o.RequestID == "" || o.RequestID != w.requestID || w.state != Processing {
		w.mu.Unlock()
		logger.Debug("Dropping stale outcome for request %s", o.RequestID)
		return false
	}

	w.cancel()
	w.requestID = ""
	w.cancel = nil
	w.done = nil

	if o.Err == nil && o.Result == nil {
		o.Err = errors.New("empty prediction result")
	}
	if o.Err != nil {
		w.errMsg = failureMessage(o.Err)
		w.progress = 0
		w.state = w.mode.fallback()
		w.mu.Unlock()
		logger.Warn("Request %s failed: %v", o.RequestID, o.Err)
		return true
	}

	w.result = o.Result
	w.progress = 100
	w.state = ResultsReady
	if w.store != nil {
		if err := w.store.SaveResult(o.Result); err != nil {
			logger.Warn("Failed to persist result: %v", err)
		}
	}
	notifier := w.notifier
	w.mu.Unlock()

	logger.Info("Results ready: %d customers", len(o.Result.Predictions))
	if notifier != nil {
		if err := notifier.NotifyResult(o.Result); err != nil {
			logger.Warn("Failed to send result notification: %v", err)
		}
	}
	return true
}

// Reset abandons the current request and returns to ModeChoice. It waits for
// the abandoned submission to wind down, so progress never leaks into the
// next one.
func (w *Workflow) Reset() error {
	w.mu.Lock()
	switch w.state {
	case ModeChoice, Uploading, RequestingSample, Processing:
	default:
		st := w.state
		w.mu.Unlock()
		return &TransitionError{From: st, Op: "reset"}
	}
	done := w.abandonLocked()
	w.state = ModeChoice
	w.mode = ModeNone
	w.errMsg = ""
	w.file = nil
	w.mu.Unlock()

	waitFor(done)
	return nil
}

// NewAnalysis discards the current result and returns to ModeChoice.
func (w *Workflow) NewAnalysis() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != ResultsReady {
		return &TransitionError{From: w.state, Op: "start new analysis"}
	}
	w.clearResultLocked()
	w.state = ModeChoice
	w.mode = ModeNone
	w.errMsg = ""
	w.file = nil
	return nil
}

// Logout ends the session from any authenticated state, cancelling in-flight
// work and clearing the stored result and dashboard.
func (w *Workflow) Logout() error {
	w.mu.Lock()
	if !w.state.Authenticated() {
		st := w.state
		w.mu.Unlock()
		return &TransitionError{From: st, Op: "log out"}
	}
	done := w.abandonLocked()
	w.clearResultLocked()
	w.state = Unauthenticated
	w.mode = ModeNone
	w.errMsg = ""
	w.file = nil
	w.slots = Dashboard{}
	w.dashGen++
	w.mu.Unlock()

	waitFor(done)
	logger.Info("Session ended")
	return nil
}

// Restore rehydrates a stored result into ResultsReady. It is meant to run
// once at start-up. Nothing stored leaves the workflow Unauthenticated; an
// unreadable stored value is cleared and also leaves it Unauthenticated.
func (w *Workflow) Restore() (bool, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Unauthenticated {
		return false, &TransitionError{From: w.state, Op: "restore"}
	}
	if w.store == nil {
		return false, nil
	}

	result, err := w.store.LoadResult()
	if errors.Is(err, storage.ErrCorrupt) {
		logger.Warn("Discarding unreadable stored result: %v", err)
		if clearErr := w.store.ClearResult(); clearErr != nil {
			logger.Warn("Failed to clear stored result: %v", clearErr)
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if result == nil {
		return false, nil
	}

	w.result = result
	w.progress = 100
	w.state = ResultsReady
	logger.Info("Restored %d stored predictions", len(result.Predictions))
	return true, nil
}

// abandonLocked cancels the in-flight request, if any, and returns a channel
// that closes once its goroutine exits.
func (w *Workflow) abandonLocked() chan struct{} {
	if w.cancel == nil {
		return nil
	}
	logger.Debug("Abandoning request %s", w.requestID)
	w.cancel()
	done := w.done
	w.requestID = ""
	w.cancel = nil
	w.done = nil
	w.progress = 0
	return done
}

func (w *Workflow) clearResultLocked() {
	w.result = nil
	w.progress = 0
	if w.store != nil {
		if err := w.store.ClearResult(); err != nil {
			logger.Warn("Failed to clear stored result: %v", err)
		}
	}
}

func waitFor(done chan struct{}) {
	if done != nil {
		<-done
	}
}
