// Package pipeline drives sources through the fetch-flatten-aggregate-write
// life cycle. A unit is the atom of work and of failure: one artifact, one
// terminal state, and a failed unit never stops the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/ocean-data-aggregator/internal/domain"
	"github.com/couchcryptid/ocean-data-aggregator/internal/observability"
	"github.com/couchcryptid/ocean-data-aggregator/internal/sink"
)

// Source partitions a date range into windows and expands each window into
// units of work.
type Source interface {
	Name() string
	Windows(start, end time.Time) ([]domain.TimeWindow, error)
	Units(ctx context.Context, w domain.TimeWindow) ([]Unit, error)
}

// Unit is one fetch-process-write work item addressing exactly one artifact.
// Fetch must come before Build; the driver guarantees the ordering.
type Unit interface {
	Key() sink.Key
	Fetch(ctx context.Context) domain.FetchOutcome
	Build(ctx context.Context) (*UnitResult, error)
}

// UnitResult is the processed form of one unit: the table to persist and the
// aggregated rows behind it.
type UnitResult struct {
	Table sink.Table
	Stats []domain.CellStats
}

// UnitState is the terminal state of one unit, recorded for reporting.
type UnitState string

const (
	StateDone    UnitState = "DONE"
	StateSkipped UnitState = "SKIPPED"
	StateEmpty   UnitState = "EMPTY"
	StateFailed  UnitState = "FAILED"
)

// Recorder persists per-unit terminal states. Optional.
type Recorder interface {
	RecordUnit(ctx context.Context, source, artifact string, state UnitState, errMsg string) error
}

// Publisher emits aggregated rows to a live feed after the artifact is
// written. Optional; publish failures degrade the unit's visibility, not
// its artifact.
type Publisher interface {
	PublishRows(ctx context.Context, source, artifact string, stats []domain.CellStats) error
}

// Counters summarizes one run.
type Counters struct {
	Fetched int
	Written int
	Skipped int
	Empty   int
	Failed  int
}

// Driver walks every source over the configured date range.
type Driver struct {
	sources   []Source
	store     *sink.Store
	logger    *slog.Logger
	metrics   *observability.Metrics
	recorder  Recorder
	publisher Publisher

	ready atomic.Bool

	mu       sync.Mutex
	counters Counters
}

// New creates a Driver. recorder and publisher may be nil.
func New(sources []Source, store *sink.Store, logger *slog.Logger, metrics *observability.Metrics, recorder Recorder, publisher Publisher) *Driver {
	return &Driver{
		sources:   sources,
		store:     store,
		logger:    logger,
		metrics:   metrics,
		recorder:  recorder,
		publisher: publisher,
	}
}

// CheckReadiness returns nil once at least one unit has reached a terminal
// state, or an error describing why the service is not yet ready.
func (d *Driver) CheckReadiness(_ context.Context) error {
	if !d.ready.Load() {
		return errors.New("pipeline has not completed any units yet")
	}
	return nil
}

// Counters returns a snapshot of the run counters.
func (d *Driver) Counters() Counters {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.counters
}

// Run processes every source over [start, end]. Unit failures are counted
// and logged, never returned; the only error Run reports is context
// cancellation or an unusable date range.
func (d *Driver) Run(ctx context.Context, start, end time.Time) (Counters, error) {
	d.logger.Info("pipeline started",
		"sources", len(d.sources),
		"start", start.Format("2006-01-02"),
		"end", end.Format("2006-01-02"))
	d.metrics.PipelineRunning.Set(1)
	defer d.metrics.PipelineRunning.Set(0)

	for _, src := range d.sources {
		windows, err := src.Windows(start, end)
		if err != nil {
			return d.Counters(), fmt.Errorf("pipeline: source %s: %w", src.Name(), err)
		}
		d.logger.Info("source started", "source", src.Name(), "windows", len(windows))

		for _, w := range windows {
			if ctx.Err() != nil {
				d.logger.Info("pipeline stopping", "reason", ctx.Err())
				return d.Counters(), ctx.Err()
			}
			d.processWindow(ctx, src, w)
		}
	}

	c := d.Counters()
	d.logger.Info("pipeline finished",
		"fetched", c.Fetched, "written", c.Written,
		"skipped", c.Skipped, "empty", c.Empty, "failed", c.Failed)
	return c, nil
}

func (d *Driver) processWindow(ctx context.Context, src Source, w domain.TimeWindow) {
	units, err := src.Units(ctx, w)
	if err != nil {
		d.logger.Warn("window expansion failed, moving on",
			"source", src.Name(), "window", w.String(), "error", err)
		d.finishUnit(ctx, src.Name(), w.String(), StateFailed, err.Error())
		return
	}

	for _, u := range units {
		if ctx.Err() != nil {
			return
		}
		d.processUnit(ctx, src.Name(), u)
	}
}

// processUnit takes one unit to its terminal state.
func (d *Driver) processUnit(ctx context.Context, source string, u Unit) {
	key := u.Key()
	start := time.Now()

	// Idempotence gate: existing artifacts are complete, no network I/O.
	if d.store.Exists(key) {
		d.logger.Debug("artifact exists, skipping unit", "source", source, "artifact", key.String())
		d.finishUnit(ctx, source, key.String(), StateSkipped, "")
		return
	}

	switch u.Fetch(ctx) {
	case domain.OutcomeFailed:
		d.logger.Warn("unit fetch failed, moving on", "source", source, "artifact", key.String())
		d.finishUnit(ctx, source, key.String(), StateFailed, "fetch failed")
		return
	case domain.OutcomeEmpty:
		d.finishUnit(ctx, source, key.String(), StateEmpty, "")
		return
	}

	d.addCounter(func(c *Counters) { c.Fetched++ })
	d.metrics.UnitsFetched.WithLabelValues(source).Inc()

	result, err := u.Build(ctx)
	if err != nil {
		d.logger.Warn("unit build failed, moving on",
			"source", source, "artifact", key.String(), "error", err)
		d.finishUnit(ctx, source, key.String(), StateFailed, err.Error())
		return
	}
	if len(result.Table.Rows) == 0 {
		d.finishUnit(ctx, source, key.String(), StateEmpty, "")
		return
	}

	if err := d.store.Write(key, result.Table); err != nil {
		if errors.Is(err, sink.ErrExists) {
			d.finishUnit(ctx, source, key.String(), StateSkipped, "")
			return
		}
		d.logger.Warn("unit write failed, moving on",
			"source", source, "artifact", key.String(), "error", err)
		d.finishUnit(ctx, source, key.String(), StateFailed, err.Error())
		return
	}

	if d.publisher != nil {
		if err := d.publisher.PublishRows(ctx, source, key.String(), result.Stats); err != nil {
			d.logger.Warn("row publish failed, artifact is still written",
				"source", source, "artifact", key.String(), "error", err)
		}
	}

	d.metrics.RowsWritten.WithLabelValues(source).Add(float64(len(result.Table.Rows)))
	d.metrics.UnitDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())
	d.logger.Info("artifact written",
		"source", source, "artifact", key.String(), "rows", len(result.Table.Rows))
	d.finishUnit(ctx, source, key.String(), StateDone, "")
}

// finishUnit records the terminal state in counters, metrics, and the
// optional recorder.
func (d *Driver) finishUnit(ctx context.Context, source, artifact string, state UnitState, errMsg string) {
	switch state {
	case StateDone:
		d.addCounter(func(c *Counters) { c.Written++ })
		d.metrics.UnitsWritten.WithLabelValues(source).Inc()
	case StateSkipped:
		d.addCounter(func(c *Counters) { c.Skipped++ })
		d.metrics.UnitsSkipped.WithLabelValues(source).Inc()
	case StateEmpty:
		d.addCounter(func(c *Counters) { c.Empty++ })
		d.metrics.UnitsEmpty.WithLabelValues(source).Inc()
	case StateFailed:
		d.addCounter(func(c *Counters) { c.Failed++ })
		d.metrics.UnitsFailed.WithLabelValues(source).Inc()
	}
	d.ready.Store(true)

	if d.recorder != nil {
		if err := d.recorder.RecordUnit(ctx, source, artifact, state, errMsg); err != nil {
			d.logger.Warn("unit state not recorded",
				"source", source, "artifact", artifact, "error", err)
		}
	}
}

func (d *Driver) addCounter(apply func(*Counters)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	apply(&d.counters)
}
