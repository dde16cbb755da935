// Package upload validates datasets and submits them for scoring while driving
// a simulated progress indicator.
package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rewired-gh/churnwatch/internal/churnapi"
	"github.com/rewired-gh/churnwatch/internal/logger"
	"github.com/rewired-gh/churnwatch/internal/models"
)

const (
	sampleFailureMessage = "Failed to load sample data. Please try uploading your own."
	uploadFailureMessage = "Upload failed. Please check the file format and try again."
)

var (
	// ErrCancelled is returned when the submission context ends first. The
	// response, if any arrives, is discarded.
	ErrCancelled = errors.New("submission cancelled")

	// ErrSubmissionInFlight rejects a second Submit while one is outstanding.
	ErrSubmissionInFlight = errors.New("a submission is already in progress")
)

// Scorer is the part of the API client the coordinator needs.
type Scorer interface {
	Predict(ctx context.Context, filename string, content io.Reader) (*models.PredictionResult, error)
	TestSample(ctx context.Context) (*models.PredictionResult, error)
}

// Source is what gets scored: either a file or the server's sample dataset.
type Source struct {
	File   *File
	Sample bool
}

// FileSource scores an operator-chosen file.
func FileSource(f *File) Source { return Source{File: f} }

// SampleSource scores the server's canned dataset.
func SampleSource() Source { return Source{Sample: true} }

func (s Source) String() string {
	if s.Sample {
		return "sample"
	}
	if s.File == nil {
		return "file(<none>)"
	}
	return fmt.Sprintf("file(%s)", s.File.Name)
}

// FailedError is a terminal submission failure. Message is shown to the operator.
type FailedError struct {
	Message string
	Err     error
}

func (e *FailedError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

// Config controls progress simulation and file limits.
type Config struct {
	ProgressInterval time.Duration
	ProgressStep     int
	ProgressCap      int
	MaxFileBytes     int64
}

// DefaultConfig returns the stock progress cadence and a 10MB file limit.
func DefaultConfig() Config {
	return Config{
		ProgressInterval: 200 * time.Millisecond,
		ProgressStep:     10,
		ProgressCap:      90,
		MaxFileBytes:     10 << 20,
	}
}

// Coordinator runs one submission at a time.
type Coordinator struct {
	scorer Scorer
	cfg    Config

	mu       sync.Mutex
	inFlight bool
}

// NewCoordinator creates a coordinator. Zero fields in cfg take the defaults.
func NewCoordinator(scorer Scorer, cfg Config) *Coordinator {
	def := DefaultConfig()
	if cfg.ProgressInterval <= 0 {
		cfg.ProgressInterval = def.ProgressInterval
	}
	if cfg.ProgressStep <= 0 {
		cfg.ProgressStep = def.ProgressStep
	}
	if cfg.ProgressCap <= 0 || cfg.ProgressCap >= 100 {
		cfg.ProgressCap = def.ProgressCap
	}
	return &Coordinator{scorer: scorer, cfg: cfg}
}

// ValidateFile applies the configured size limit.
func (c *Coordinator) ValidateFile(f *File) error {
	return ValidateFile(f, c.cfg.MaxFileBytes)
}

// Submit scores src and blocks until the server answers or ctx ends.
// onProgress receives 0, then climbing values up to the cap, then 100 on
// success. No update is delivered after Submit returns. Errors are
// *ValidationError, *FailedError, ErrCancelled or ErrSubmissionInFlight.
func (c *Coordinator) Submit(ctx context.Context, src Source, onProgress func(int)) (*models.PredictionResult, error) {
	if !src.Sample {
		if err := c.ValidateFile(src.File); err != nil {
			return nil, err
		}
	}

	c.mu.Lock()
	if c.inFlight {
		c.mu.Unlock()
		return nil, ErrSubmissionInFlight
	}
	c.inFlight = true
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.inFlight = false
		c.mu.Unlock()
	}()

	logger.Info("Submitting %s for scoring", src)
	progress := StartProgress(c.cfg.ProgressInterval, c.cfg.ProgressStep, c.cfg.ProgressCap, onProgress)

	result, err := c.score(ctx, src)
	if ctx.Err() != nil {
		progress.Stop()
		logger.Info("Submission of %s cancelled", src)
		return nil, ErrCancelled
	}
	if err != nil {
		progress.Stop()
		failure := &FailedError{Message: failureMessage(src, err), Err: err}
		logger.Warn("Submission of %s failed: %v", src, err)
		return nil, failure
	}

	progress.Complete()
	logger.Info("Scored %d customers from %s", len(result.Predictions), src)
	return result, nil
}

func (c *Coordinator) score(ctx context.Context, src Source) (*models.PredictionResult, error) {
	if src.Sample {
		return c.scorer.TestSample(ctx)
	}
	rc, err := src.File.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return c.scorer.Predict(ctx, src.File.Name, rc)
}

func failureMessage(src Source, err error) string {
	if src.Sample {
		return sampleFailureMessage
	}
	return churnapi.UserMessage(err, uploadFailureMessage)
}
