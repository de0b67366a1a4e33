package newsletter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/newsletter-engine/internal/analytics"
	"github.com/ignite/newsletter-engine/internal/experiment"
	"github.com/ignite/newsletter-engine/internal/metrics"
	"github.com/ignite/newsletter-engine/internal/personalization"
	"github.com/ignite/newsletter-engine/internal/pkg/logger"
	"github.com/ignite/newsletter-engine/internal/segmentation"
	"github.com/ignite/newsletter-engine/internal/snapshot"
)

const defaultSnapshotInterval = 5 * time.Minute

// Engine is the composition root of the experimentation and
// personalization components.
type Engine struct {
	Experiments  *experiment.Registry
	Analytics    *analytics.Service
	Segments     *segmentation.Engine
	Personalizer *personalization.Scorer

	now func() time.Time
	log *logger.Logger
}

// NewEngine creates an engine with the default segment catalog.
func NewEngine() *Engine {
	segments := segmentation.NewEngine()
	return &Engine{
		Experiments:  experiment.NewRegistry(),
		Analytics:    analytics.NewService(),
		Segments:     segments,
		Personalizer: personalization.NewScorer(segments),
		now:          time.Now,
		log:          logger.With("component", "engine"),
	}
}

// SetClock replaces the time source of every component.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.Experiments.SetClock(now)
	e.Analytics.SetClock(now)
	e.Segments.SetClock(now)
	e.Personalizer.SetClock(now)
}

// Snapshot captures the current state of every component.
func (e *Engine) Snapshot() *snapshot.Snapshot {
	return &snapshot.Snapshot{
		Version:     snapshot.FormatVersion,
		TakenAt:     e.now().UTC(),
		Experiments: e.Experiments.Export(),
		Analytics:   e.Analytics.Export(),
		Segments:    e.Segments.Segments(),
	}
}

// Restore replaces component state with snap. A snapshot without segments
// keeps the current catalog.
func (e *Engine) Restore(snap *snapshot.Snapshot) {
	e.Experiments.Import(snap.Experiments)
	e.Analytics.Import(snap.Analytics)
	e.Segments.Import(snap.Segments)
}

// Save writes a snapshot to store.
func (e *Engine) Save(ctx context.Context, store snapshot.Store) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveSnapshot(time.Since(start), err) }()

	snap := e.Snapshot()
	if err = store.Save(ctx, snap); err != nil {
		return fmt.Errorf("saving snapshot: %w", err)
	}
	e.log.Debug("snapshot saved", "counts", snap.Counts())
	return nil
}

// Load restores the latest snapshot from store. It reports false when the
// store holds nothing yet.
func (e *Engine) Load(ctx context.Context, store snapshot.Store) (bool, error) {
	snap, err := store.Load(ctx)
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("loading snapshot: %w", err)
	}
	e.Restore(snap)
	e.log.Info("snapshot restored", "taken_at", snap.TakenAt.Format(time.RFC3339), "counts", snap.Counts())
	return true, nil
}

// RunSnapshots saves every interval until ctx is done, then saves once
// more so a clean shutdown loses nothing.
func (e *Engine) RunSnapshots(ctx context.Context, store snapshot.Store, interval time.Duration) {
	if interval <= 0 {
		interval = defaultSnapshotInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			final, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			if err := e.Save(final, store); err != nil {
				e.log.Error("final snapshot failed", "error", err)
			}
			cancel()
			return
		case <-ticker.C:
			if err := e.Save(ctx, store); err != nil {
				e.log.Error("periodic snapshot failed", "error", err)
			}
		}
	}
}
