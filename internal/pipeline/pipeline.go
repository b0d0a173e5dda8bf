// Package pipeline implements the sales ETL run: extraction from every source,
// normalization, transformation and the idempotent load.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/sales-etl/internal/metrics"
	"github.com/dvloznov/sales-etl/internal/runs"
	"github.com/dvloznov/sales-etl/internal/store"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// ErrRunInProgress is returned by Run when another run holds the guard.
var ErrRunInProgress = runs.ErrRunInProgress

// Orchestrator sequences the ETL steps and contains their failures. At most
// one run executes at a time; a concurrent request is rejected, not queued.
type Orchestrator struct {
	pipeline *Pipeline
	guard    *semaphore.Weighted
	runs     runs.Store
	log      zerolog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an Orchestrator.
type Option func(*orchestratorOptions)

type orchestratorOptions struct {
	transformer *Transformer
	runs        runs.Store
	log         zerolog.Logger
	now         func() time.Time
	newID       func() string
}

// WithTransformer replaces the default transformer.
func WithTransformer(t *Transformer) Option {
	return func(o *orchestratorOptions) { o.transformer = t }
}

// WithRunStore records every run in s.
func WithRunStore(s runs.Store) Option {
	return func(o *orchestratorOptions) { o.runs = s }
}

// WithLogger sets the logger used by the orchestrator and its steps.
func WithLogger(log zerolog.Logger) Option {
	return func(o *orchestratorOptions) { o.log = log }
}

// WithClock sets the clock used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *orchestratorOptions) { o.now = now }
}

// WithRunIDGenerator sets the run ID generator.
func WithRunIDGenerator(newID func() string) Option {
	return func(o *orchestratorOptions) { o.newID = newID }
}

// NewOrchestrator wires the standard pipeline over the given store handle and extractors.
func NewOrchestrator(repo store.SalesRepository, extractors []Extractor, opts ...Option) *Orchestrator {
	o := orchestratorOptions{
		log:   zerolog.Nop(),
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.transformer == nil {
		o.transformer = NewTransformer()
	}

	log := o.log.With().Str("component", "pipeline").Logger()
	return &Orchestrator{
		pipeline: NewETLPipeline(repo, extractors, o.transformer, log),
		guard:    semaphore.NewWeighted(1),
		runs:     o.runs,
		log:      log,
		now:      o.now,
		newID:    o.newID,
	}
}

// Run executes one ETL run. It returns the run record together with any
// failure; ErrRunInProgress means nothing was executed.
func (o *Orchestrator) Run(ctx context.Context, trigger runs.Trigger) (*runs.Run, error) {
	run := &runs.Run{
		RunID:     o.newID(),
		Trigger:   trigger,
		Status:    runs.StatusRunning,
		StartedAt: o.now().UTC(),
	}

	if !o.guard.TryAcquire(1) {
		run.Status = runs.StatusSkipped
		run.Error = ErrRunInProgress.Error()
		o.finish(ctx, run)
		return run, ErrRunInProgress
	}
	defer o.guard.Release(1)

	log := o.log.With().Str("run_id", run.RunID).Str("trigger", string(trigger)).Logger()
	o.save(ctx, run)
	log.Info().Msg("Pipeline run started")

	state := &PipelineState{}
	err := o.execute(ctx, state)

	run.Extracted = state.Extraction.Counts
	run.FailedSources = state.Extraction.Failed
	run.Dropped = state.Transformed.Dropped
	run.Anomalies = state.Transformed.Anomalies
	run.Loaded = state.Loaded

	if err != nil {
		run.Fail(err)
		o.finish(ctx, run)
		log.Error().Err(err).Dur("duration", run.Duration()).Msg("Pipeline run failed")
		return run, err
	}

	run.Status = runs.StatusSucceeded
	o.finish(ctx, run)
	log.Info().
		Int("extracted", len(state.Extraction.Records)).
		Int("dropped", run.Dropped).
		Int("anomalies", run.Anomalies).
		Int("loaded", run.Loaded).
		Dur("duration", run.Duration()).
		Msg("Pipeline run succeeded")
	return run, nil
}

// execute runs the steps, turning a panic into a run failure.
func (o *Orchestrator) execute(ctx context.Context, state *PipelineState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline panic: %v", r)
		}
	}()
	return o.pipeline.Execute(ctx, state)
}

func (o *Orchestrator) finish(ctx context.Context, run *runs.Run) {
	finished := o.now().UTC()
	run.FinishedAt = &finished
	o.save(ctx, run)
	observe(run)
}

func (o *Orchestrator) save(ctx context.Context, run *runs.Run) {
	if o.runs == nil {
		return
	}
	if err := o.runs.SaveRun(ctx, run); err != nil {
		o.log.Warn().Err(err).Str("run_id", run.RunID).Msg("Failed to record run")
	}
}

func observe(run *runs.Run) {
	metrics.CounterRuns.WithLabelValues(string(run.Status)).Inc()
	if run.Status == runs.StatusSkipped {
		return
	}
	for src, n := range run.Extracted {
		metrics.CounterRecordsExtracted.WithLabelValues(string(src)).Add(float64(n))
	}
	for _, src := range run.FailedSources {
		metrics.CounterSourceFailures.WithLabelValues(string(src)).Inc()
	}
	metrics.CounterRecordsDropped.Add(float64(run.Dropped))
	metrics.CounterAnomaliesFlagged.Add(float64(run.Anomalies))
	metrics.CounterRecordsLoaded.Add(float64(run.Loaded))
	metrics.HistogramRunDuration.Observe(run.Duration().Seconds())
}

// Ensure Orchestrator implements runs.Runner.
var _ runs.Runner = (*Orchestrator)(nil)
