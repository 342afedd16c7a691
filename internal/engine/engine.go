// Package engine orchestrates the gold aggregation pipeline: it discovers
// pending months, claims each one in the unit registry, runs the
// aggregation step under retry inside the data layer's idempotent upsert,
// and records progress in the checkpoint ledger. Correctness rests on the
// registry plus the upsert; checkpoints and events are observability.
package engine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/retailops/goldpipe/internal/eventlog"
	"github.com/retailops/goldpipe/internal/gold"
	"github.com/retailops/goldpipe/internal/monitoring"
	"github.com/retailops/goldpipe/internal/pipelinedb"
	"github.com/retailops/goldpipe/internal/pipelinedb/models"
	"github.com/retailops/goldpipe/internal/retry"
	"github.com/retailops/goldpipe/internal/source"
	"github.com/retailops/goldpipe/internal/unit"
	"github.com/retailops/goldpipe/internal/utils"
)

// Registry is the unit registry surface the engine mutates. It is the
// source of truth for "has this unit's side effect already landed".
type Registry interface {
	ListCompleted(ctx context.Context) (map[unit.Key]struct{}, error)
	Claim(ctx context.Context, key unit.Key) (bool, error)
	MarkCompleted(ctx context.Context, key unit.Key) error
	MarkFailed(ctx context.Context, key unit.Key) error
	ResetAll(ctx context.Context) (int64, error)
	ResetUnit(ctx context.Context, key unit.Key) (int64, error)
}

// Checkpoints is the checkpoint ledger surface the engine writes
type Checkpoints interface {
	Begin(ctx context.Context, pipeline, runID, stage, key string, metadata map[string]any) (*models.CheckpointRecord, error)
	Complete(ctx context.Context, rec *models.CheckpointRecord, value string, metadata map[string]any) error
	Fail(ctx context.Context, rec *models.CheckpointRecord, metadata map[string]any) error
}

// Options selects one run's operating mode
type Options struct {
	// Unit processes exactly one named month, bypassing discovery.
	Unit *unit.Key

	// FilterYear / FilterMonth narrow discovery. Zero means unfiltered.
	FilterYear  int
	FilterMonth int

	// Reset clears registry state before running: the whole registry, or
	// just Unit when one is named. A deliberate idempotence bypass.
	Reset bool

	// DryRun performs discovery and logs the plan without claiming,
	// executing or mutating any store.
	DryRun bool
}

// RunContext carries one run's identity through every component call.
// Run state is an explicit value, never process-global.
type RunContext struct {
	RunID     string
	Pipeline  string
	StartedAt time.Time
	Options   Options
}

// RunSummary is what one Run call reports back
type RunSummary struct {
	RunID        string
	Discovered   int
	Skipped      int
	Succeeded    int
	Failed       int
	FailedUnits  []unit.Key
	FailedStages []string
	Duration     time.Duration
}

// OK reports whether every processed unit and summary stage succeeded
func (s *RunSummary) OK() bool {
	return s.Failed == 0 && len(s.FailedStages) == 0
}

// Config wires an engine. Registry, Checkpoints, Reader, Step and Events
// are required; SummarySteps and Metrics are optional.
type Config struct {
	Pipeline     string
	Registry     Registry
	Checkpoints  Checkpoints
	Reader       source.Reader
	Step         gold.Step
	SummarySteps []gold.SummaryStep
	Events       *eventlog.Logger
	Metrics      *monitoring.Metrics
	Retry        retry.Config
}

// Engine is the single-threaded batch orchestrator. Units are processed
// one at a time in ascending chronological order.
type Engine struct {
	pipeline     string
	registry     Registry
	checkpoints  Checkpoints
	reader       source.Reader
	step         gold.Step
	summarySteps []gold.SummaryStep
	events       *eventlog.Logger
	metrics      *monitoring.Metrics
	retryCfg     retry.Config
}

// New creates an engine from cfg
func New(cfg Config) *Engine {
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = monitoring.New(false, cfg.Pipeline)
	}

	return &Engine{
		pipeline:     cfg.Pipeline,
		registry:     cfg.Registry,
		checkpoints:  cfg.Checkpoints,
		reader:       cfg.Reader,
		step:         cfg.Step,
		summarySteps: cfg.SummarySteps,
		events:       cfg.Events,
		metrics:      metrics,
		retryCfg:     cfg.Retry,
	}
}

// Run executes one pipeline run. Per-unit failures are isolated: they
// mark the unit failed and the loop continues. Errors touching the
// registry or discovery are fatal and abort the run, because once
// idempotence tracking is unreliable nothing further can be trusted.
func (e *Engine) Run(ctx context.Context, opts Options) (*RunSummary, error) {
	rc := RunContext{
		RunID:     uuid.NewString(),
		Pipeline:  e.pipeline,
		StartedAt: utils.NowUTC(),
		Options:   opts,
	}
	events := e.events.ForRun(rc.RunID)

	events.Info(ctx, "Pipeline run started", runMetadata(opts))

	summary, err := e.run(ctx, rc, events, opts)
	if err != nil {
		events.Critical(ctx, "Pipeline run aborted", map[string]any{
			"error": err.Error(),
		})
		e.metrics.RecordRun("aborted", time.Since(rc.StartedAt))
		return nil, fmt.Errorf("engine: run %s: %w", rc.RunID, err)
	}

	summary.Duration = time.Since(rc.StartedAt)

	outcome := "succeeded"
	if !summary.OK() {
		outcome = "failed"
	}
	e.metrics.RecordRun(outcome, summary.Duration)

	events.Info(ctx, "Pipeline run finished", map[string]any{
		"discovered": summary.Discovered,
		"skipped":    summary.Skipped,
		"succeeded":  summary.Succeeded,
		"failed":     summary.Failed,
		"duration":   summary.Duration.String(),
	})

	return summary, nil
}

func (e *Engine) run(ctx context.Context, rc RunContext, events *eventlog.Logger, opts Options) (*RunSummary, error) {
	summary := &RunSummary{RunID: rc.RunID}

	if opts.Reset && !opts.DryRun {
		if err := e.reset(ctx, events, opts); err != nil {
			return nil, err
		}
	}

	pending, err := e.discover(ctx, events, opts)
	if err != nil {
		return nil, err
	}
	summary.Discovered = len(pending)
	e.metrics.SetPendingUnits(len(pending))

	if opts.DryRun {
		for _, key := range pending {
			events.Info(ctx, "Would process unit", map[string]any{
				"unit":  key.String(),
				"stage": e.step.Name(),
			})
		}
		events.Info(ctx, "Dry run complete, no state was modified", map[string]any{
			"pending": len(pending),
		})
		return summary, nil
	}

	for _, key := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.processUnit(ctx, rc, events, key, summary); err != nil {
			return nil, err
		}
	}

	if err := e.runSummaryStages(ctx, rc, events, summary); err != nil {
		return nil, err
	}

	return summary, nil
}

// reset clears registry state ahead of the run. Logged at warning: this
// deliberately bypasses the idempotence guarantee.
func (e *Engine) reset(ctx context.Context, events *eventlog.Logger, opts Options) error {
	if opts.Unit != nil {
		removed, err := e.registry.ResetUnit(ctx, *opts.Unit)
		if err != nil {
			return err
		}
		events.Warning(ctx, "Unit registry entry cleared for reprocessing", map[string]any{
			"unit":         opts.Unit.String(),
			"rows_removed": removed,
		})
		return nil
	}

	removed, err := e.registry.ResetAll(ctx)
	if err != nil {
		return err
	}
	events.Warning(ctx, "Unit registry reset, all units eligible again", map[string]any{
		"rows_removed": removed,
	})
	return nil
}

// discover computes the pending unit list: available months minus
// completed ones, ascending. A named unit bypasses discovery entirely but
// stays subject to the claim contract.
func (e *Engine) discover(ctx context.Context, events *eventlog.Logger, opts Options) ([]unit.Key, error) {
	if opts.Unit != nil {
		return []unit.Key{*opts.Unit}, nil
	}

	available, err := e.reader.ListDistinctMonths(ctx, source.Filters{
		Year:  opts.FilterYear,
		Month: opts.FilterMonth,
	})
	if err != nil {
		return nil, err
	}

	completed, err := e.registry.ListCompleted(ctx)
	if err != nil {
		return nil, err
	}

	var pending []unit.Key
	for _, key := range available {
		if _, done := completed[key]; !done {
			pending = append(pending, key)
		}
	}
	unit.Sort(pending)

	events.Info(ctx, "Discovery complete", map[string]any{
		"available": len(available),
		"completed": len(completed),
		"pending":   len(pending),
	})

	return pending, nil
}

// processUnit runs one unit through claim, checkpoint, retried aggregate
// and the terminal registry transition. A returned error is fatal for the
// whole run; unit-level step failures are absorbed into the summary.
func (e *Engine) processUnit(ctx context.Context, rc RunContext, events *eventlog.Logger, key unit.Key, summary *RunSummary) error {
	claimed, err := e.registry.Claim(ctx, key)
	if err != nil {
		return err
	}
	if !claimed {
		events.Info(ctx, "Unit already completed, skipping", map[string]any{
			"unit": key.String(),
		})
		summary.Skipped++
		e.metrics.RecordUnit(e.step.Name(), "skipped", 0)
		return nil
	}

	rec, err := e.beginCheckpoint(ctx, rc, events, e.step.Name(), key.String())
	if err != nil {
		return err
	}

	started := utils.NowUTC()
	operation := fmt.Sprintf("aggregate %s", key)

	var rows int64
	attempt := 0
	stepErr := retry.Do(ctx, events, e.retryCfg, operation, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			e.metrics.RecordRetry(operation)
		}
		var aggErr error
		rows, aggErr = e.step.Aggregate(ctx, key)
		return aggErr
	})
	elapsed := time.Since(started)

	if stepErr != nil {
		e.finishCheckpoint(ctx, events, rec, func() error {
			return e.checkpoints.Fail(ctx, rec, map[string]any{
				"error":    stepErr.Error(),
				"attempts": attempt,
			})
		})
		if err := e.registry.MarkFailed(ctx, key); err != nil {
			return err
		}
		events.Error(ctx, "Unit failed", map[string]any{
			"unit":     key.String(),
			"attempts": attempt,
			"error":    stepErr.Error(),
		})
		summary.Failed++
		summary.FailedUnits = append(summary.FailedUnits, key)
		e.metrics.RecordUnit(e.step.Name(), "failed", elapsed)
		return nil
	}

	e.finishCheckpoint(ctx, events, rec, func() error {
		return e.checkpoints.Complete(ctx, rec, strconv.FormatInt(rows, 10), map[string]any{
			"rows_affected": rows,
		})
	})
	if err := e.registry.MarkCompleted(ctx, key); err != nil {
		return err
	}
	events.Info(ctx, "Unit completed", map[string]any{
		"unit":          key.String(),
		"rows_affected": rows,
		"duration":      elapsed.String(),
	})
	summary.Succeeded++
	e.metrics.RecordUnit(e.step.Name(), "succeeded", elapsed)
	return nil
}

// runSummaryStages refreshes the whole-table gold summaries after the
// unit loop. A stage failure makes the run report failure but does not
// touch unit outcomes or stop later stages.
func (e *Engine) runSummaryStages(ctx context.Context, rc RunContext, events *eventlog.Logger, summary *RunSummary) error {
	for _, stage := range e.summarySteps {
		if err := ctx.Err(); err != nil {
			return err
		}

		rec, err := e.beginCheckpoint(ctx, rc, events, stage.Name(), "all")
		if err != nil {
			return err
		}

		started := utils.NowUTC()
		operation := fmt.Sprintf("refresh %s", stage.Name())

		var rows int64
		stageErr := retry.Do(ctx, events, e.retryCfg, operation, func(ctx context.Context) error {
			var refreshErr error
			rows, refreshErr = stage.Refresh(ctx)
			return refreshErr
		})
		elapsed := time.Since(started)

		if stageErr != nil {
			e.finishCheckpoint(ctx, events, rec, func() error {
				return e.checkpoints.Fail(ctx, rec, map[string]any{
					"error": stageErr.Error(),
				})
			})
			events.Error(ctx, "Summary stage failed", map[string]any{
				"stage": stage.Name(),
				"error": stageErr.Error(),
			})
			summary.FailedStages = append(summary.FailedStages, stage.Name())
			continue
		}

		e.finishCheckpoint(ctx, events, rec, func() error {
			return e.checkpoints.Complete(ctx, rec, strconv.FormatInt(rows, 10), map[string]any{
				"rows_affected": rows,
			})
		})
		events.Info(ctx, "Summary stage completed", map[string]any{
			"stage":         stage.Name(),
			"rows_affected": rows,
			"duration":      elapsed.String(),
		})
		e.metrics.RecordStage(stage.Name(), elapsed)
	}

	return nil
}

// beginCheckpoint opens a checkpoint row. Checkpoints are best-effort
// observability: a write failure is warned about and processing carries
// on without a record, unless the store itself is unreachable, which is
// fatal because the registry shares it.
func (e *Engine) beginCheckpoint(ctx context.Context, rc RunContext, events *eventlog.Logger, stage, key string) (*models.CheckpointRecord, error) {
	rec, err := e.checkpoints.Begin(ctx, rc.Pipeline, rc.RunID, stage, key, nil)
	if err != nil {
		if pipelinedb.IsUnavailable(err) {
			return nil, err
		}
		events.Warning(ctx, "Checkpoint write failed, continuing without record", map[string]any{
			"stage":          stage,
			"checkpoint_key": key,
			"error":          err.Error(),
		})
		return nil, nil
	}
	return rec, nil
}

// finishCheckpoint closes a checkpoint row, tolerating a nil record from
// a failed Begin and swallowing plain write failures.
func (e *Engine) finishCheckpoint(ctx context.Context, events *eventlog.Logger, rec *models.CheckpointRecord, finish func() error) {
	if rec == nil {
		return
	}
	if err := finish(); err != nil {
		events.Warning(ctx, "Checkpoint write failed", map[string]any{
			"stage":          rec.Stage,
			"checkpoint_key": rec.CheckpointKey,
			"error":          err.Error(),
		})
	}
}

func runMetadata(opts Options) map[string]any {
	meta := map[string]any{
		"dry_run": opts.DryRun,
		"reset":   opts.Reset,
	}
	if opts.Unit != nil {
		meta["unit"] = opts.Unit.String()
	}
	if opts.FilterYear != 0 {
		meta["filter_year"] = opts.FilterYear
	}
	if opts.FilterMonth != 0 {
		meta["filter_month"] = opts.FilterMonth
	}
	return meta
}
