package session

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/rewired-gh/churnwatch/internal/logger"
	"github.com/rewired-gh/churnwatch/internal/models"
)

// DashboardSource fetches the metadata shown next to a result.
type DashboardSource interface {
	FetchStats(ctx context.Context) (*models.ModelStats, error)
	FetchFeatureImportance(ctx context.Context) ([]models.FeatureImportance, error)
	FetchBenchmark(ctx context.Context) ([]models.BenchmarkEntry, error)
}

// Slot is one dashboard widget's data. Err is set when its fetch failed.
type Slot[T any] struct {
	Value  T
	Err    error
	Loaded bool
}

func (s *Slot[T]) set(v T, err error) {
	var zero T
	if err != nil {
		v = zero
	}
	*s = Slot[T]{Value: v, Err: err, Loaded: true}
}

// Dashboard holds the three independently fetched widgets.
type Dashboard struct {
	Stats     Slot[*models.ModelStats]
	Features  Slot[[]models.FeatureImportance]
	Benchmark Slot[[]models.BenchmarkEntry]
}

var errNoDashboardSource = errors.New("no dashboard source configured")

// LoadDashboard fetches stats, feature importance and benchmark concurrently.
// Each result lands in its own slot as soon as it arrives; a failure in one
// leaves the others untouched. Results that arrive after a logout are dropped.
func (w *Workflow) LoadDashboard(ctx context.Context) (Dashboard, error) {
	w.mu.Lock()
	if !w.state.Authenticated() {
		st := w.state
		w.mu.Unlock()
		return Dashboard{}, &TransitionError{From: st, Op: "load dashboard"}
	}
	if w.dashboard == nil {
		w.mu.Unlock()
		return Dashboard{}, errNoDashboardSource
	}
	gen := w.dashGen
	src := w.dashboard
	w.mu.Unlock()

	var g errgroup.Group
	g.Go(func() error {
		stats, err := src.FetchStats(ctx)
		w.applySlot(gen, "stats", err, func(d *Dashboard) { d.Stats.set(stats, err) })
		return nil
	})
	g.Go(func() error {
		features, err := src.FetchFeatureImportance(ctx)
		w.applySlot(gen, "feature importance", err, func(d *Dashboard) { d.Features.set(features, err) })
		return nil
	})
	g.Go(func() error {
		entries, err := src.FetchBenchmark(ctx)
		w.applySlot(gen, "benchmark", err, func(d *Dashboard) { d.Benchmark.set(entries, err) })
		return nil
	})
	// Slot errors are recorded per widget; the group itself never fails.
	_ = g.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.slots, nil
}

func (w *Workflow) applySlot(gen uint64, name string, err error, apply func(*Dashboard)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if gen != w.dashGen {
		logger.Debug("Dropping %s from a previous session", name)
		return
	}
	if err != nil {
		logger.Warn("Failed to load %s: %v", name, err)
	}
	apply(&w.slots)
}
