// Package runs records pipeline invocations and schedules them on an interval.
package runs

import (
	"context"
	"errors"
	"time"

	"github.com/dvloznov/sales-etl/internal/domain"
)

// Trigger identifies what started a pipeline run.
type Trigger string

const (
	// TriggerScheduled is a run started by the interval scheduler.
	TriggerScheduled Trigger = "scheduled"
	// TriggerManual is a run started through the HTTP trigger endpoint.
	TriggerManual Trigger = "manual"
	// TriggerCLI is a run started from the command line.
	TriggerCLI Trigger = "cli"
)

// Status represents the current status of a run.
type Status string

const (
	// StatusRunning indicates the run is in progress.
	StatusRunning Status = "running"
	// StatusSucceeded indicates every stage completed.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the transform or load stage aborted the run.
	StatusFailed Status = "failed"
	// StatusSkipped indicates the run was rejected because another run was in progress.
	StatusSkipped Status = "skipped"
)

// MaxErrorLength bounds the stored error message.
const MaxErrorLength = 2000

var (
	// ErrNotFound is returned when a run ID is unknown.
	ErrNotFound = errors.New("run not found")

	// ErrRunInProgress is returned when a run is requested while another is executing.
	ErrRunInProgress = errors.New("pipeline run already in progress")
)

// Run is the record of one pipeline invocation.
type Run struct {
	// RunID is the unique identifier for this run.
	RunID string `json:"run_id"`

	Trigger Trigger `json:"trigger"`
	Status  Status  `json:"status"`

	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Extracted is the number of raw records each source produced.
	Extracted map[domain.Source]int `json:"extracted"`

	// FailedSources lists sources that were unavailable during extraction.
	FailedSources []domain.Source `json:"failed_sources,omitempty"`

	Dropped   int `json:"dropped"`
	Anomalies int `json:"anomalies"`
	Loaded    int `json:"loaded"`

	// Error contains error details if the run failed.
	Error string `json:"error,omitempty"`
}

// Fail marks the run failed with a truncated error message.
func (r *Run) Fail(err error) {
	r.Status = StatusFailed
	if err == nil {
		return
	}
	msg := err.Error()
	if len(msg) > MaxErrorLength {
		msg = msg[:MaxErrorLength]
	}
	r.Error = msg
}

// Duration returns how long the run took, or zero while it is still running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Runner executes one pipeline run.
type Runner interface {
	Run(ctx context.Context, trigger Trigger) (*Run, error)
}

// Store defines the interface for storing and retrieving run history.
type Store interface {
	// SaveRun saves or updates a run.
	SaveRun(ctx context.Context, run *Run) error

	// GetRun retrieves a run by ID.
	GetRun(ctx context.Context, runID string) (*Run, error)

	// ListRuns retrieves runs, most recent first, with optional filtering.
	ListRuns(ctx context.Context, filter Filter) ([]*Run, error)
}

// Filter defines filtering criteria for listing runs.
type Filter struct {
	// Status filters runs by status.
	Status Status

	// Trigger filters runs by trigger.
	Trigger Trigger

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
