package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"skillpulse/internal/errors"
	"skillpulse/internal/observability"
	"skillpulse/internal/store"
	"skillpulse/internal/types"
)

// Outcome is what a stage handler reports on success or partial success
type Outcome struct {
	Rows   int
	Slices []types.SliceFailure
	Detail any
}

// Handler runs one stage
type Handler func(ctx context.Context) (Outcome, error)

// Runner executes stages in order, records each one in pipeline_runs and optionally publishes it
type Runner struct {
	db        *sql.DB
	handlers  map[Stage]Handler
	logger    *errors.Logger
	om        *observability.ObservabilityManager
	publisher Publisher
	now       func() time.Time
	newRunID  func() string
}

// RunnerOption configures a Runner
type RunnerOption func(*Runner)

// WithObservability traces and meters every stage
func WithObservability(om *observability.ObservabilityManager) RunnerOption {
	return func(r *Runner) { r.om = om }
}

// WithPublisher publishes a StageEvent after every stage
func WithPublisher(p Publisher) RunnerOption {
	return func(r *Runner) {
		if p != nil {
			r.publisher = p
		}
	}
}

// WithHandler replaces the handler of one stage
func WithHandler(stage Stage, h Handler) RunnerOption {
	return func(r *Runner) { r.handlers[stage] = h }
}

// NewRunner creates a Runner with the given handlers
func NewRunner(db *sql.DB, handlers map[Stage]Handler, logger *errors.Logger, opts ...RunnerOption) *Runner {
	r := &Runner{
		db:       db,
		handlers: make(map[Stage]Handler, len(handlers)),
		logger:   logger,
		now:      time.Now,
		newRunID: func() string { return uuid.NewString() },
	}
	for s, h := range handlers {
		r.handlers[s] = h
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes stage (or the whole sequence for `all`) and returns the summary.
// Stage failures are recorded in the summary, not returned; only a missing-credentials
// failure stops the remaining stages, which are then reported as skipped.
func (r *Runner) Run(ctx context.Context, stage Stage) (types.RunSummary, error) {
	if stage == StageDashboard {
		return types.RunSummary{}, errors.NewValidationError(errors.ErrCodeInvalidRequest, "the dashboard is started with the dashboard command, not as a pipeline stage", nil)
	}
	sequence := stage.Sequence()
	for _, s := range sequence {
		if r.handlers[s] == nil {
			return types.RunSummary{}, errors.NewConfigError(errors.ErrCodeInvalidConfig, fmt.Sprintf("no handler for stage %s", s), nil)
		}
	}

	summary := types.RunSummary{RunID: r.newRunID(), StartedAt: r.now().UTC()}
	logger := r.logger
	if logger != nil {
		logger = logger.With("run_id", summary.RunID)
		logger.Info("Pipeline run started", "stage", stage.String(), "stages", len(sequence))
	}

	for i, s := range sequence {
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			r.skipRest(&summary, sequence[i:], "run cancelled")
			break
		}

		result := r.runStage(ctx, s, logger)
		summary.Stages = append(summary.Stages, result)
		r.finish(ctx, summary.RunID, result, logger)

		if result.Status == types.StatusFailed && errors.IsType(result.Err, errors.ErrorTypeMissingCredentials) && i < len(sequence)-1 {
			summary.Aborted = true
			r.skipRest(&summary, sequence[i+1:], "aborted: "+result.Error)
			break
		}
	}

	summary.Duration = r.now().Sub(summary.StartedAt)
	if logger != nil {
		logger.Info("Pipeline run finished",
			"duration", summary.Duration.String(),
			"failed", summary.Failed(),
			"aborted", summary.Aborted)
	}
	return summary, nil
}

func (r *Runner) runStage(ctx context.Context, s Stage, logger *errors.Logger) types.StageResult {
	result := types.StageResult{Stage: s.String(), StartedAt: r.now().UTC()}

	exec := func(ctx context.Context) observability.StageOutcome {
		out, err := r.handlers[s](ctx)
		result.Rows = out.Rows
		result.Slices = out.Slices
		result.Detail = out.Detail
		result.Err = err
		result.Status = statusFor(err)
		return observability.StageOutcome{Status: result.Status, Rows: out.Rows, Failures: len(out.Slices), Err: err}
	}
	if r.om != nil {
		r.om.GetMetrics().TrackStage(ctx, s.String(), exec, r.om)
	} else {
		exec(ctx)
	}
	result.Duration = r.now().Sub(result.StartedAt)

	if result.Err != nil {
		result.Error = result.Err.Error()
	}
	if logger != nil {
		switch result.Status {
		case types.StatusFailed:
			logger.LogError(result.Err, "Stage failed", "stage", result.Stage)
		case types.StatusEmpty:
			logger.Info("Stage found no input", "stage", result.Stage, "reason", result.Error)
		default:
			logger.Info("Stage completed", "stage", result.Stage, "rows", result.Rows, "slice_failures", len(result.Slices))
		}
	}
	return result
}

// statusFor maps a handler error to a stage status. Empty input is a logged, non-fatal condition.
func statusFor(err error) string {
	switch {
	case err == nil:
		return types.StatusOK
	case errors.IsType(err, errors.ErrorTypeEmptyInput):
		return types.StatusEmpty
	default:
		return types.StatusFailed
	}
}

func (r *Runner) skipRest(summary *types.RunSummary, rest []Stage, reason string) {
	for _, s := range rest {
		res := types.StageResult{Stage: s.String(), Status: types.StatusSkipped, Error: reason, StartedAt: r.now().UTC()}
		summary.Stages = append(summary.Stages, res)
		r.record(summary.RunID, res, nil)
	}
}

func (r *Runner) finish(ctx context.Context, runID string, result types.StageResult, logger *errors.Logger) {
	r.record(runID, result, logger)
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, StageEvent{RunID: runID, StageResult: result}); err != nil && logger != nil {
		logger.LogError(err, "Failed to publish stage event", "stage", result.Stage)
	}
}

type recordDetail struct {
	Error  string               `json:"error,omitempty"`
	Slices []types.SliceFailure `json:"slices,omitempty"`
	Detail any                  `json:"detail,omitempty"`
}

func (r *Runner) record(runID string, result types.StageResult, logger *errors.Logger) {
	if r.db == nil {
		return
	}
	detail, err := json.Marshal(recordDetail{Error: result.Error, Slices: result.Slices, Detail: result.Detail})
	if err != nil {
		detail = nil
	}
	rec := store.StageRecord{
		RunID:      runID,
		Stage:      result.Stage,
		Status:     result.Status,
		Rows:       result.Rows,
		Detail:     string(detail),
		StartedAt:  result.StartedAt,
		FinishedAt: result.StartedAt.Add(result.Duration),
	}
	if err := store.RecordStage(r.db, rec); err != nil && logger != nil {
		logger.LogError(errors.NewIOError(errors.ErrCodeStoreFailed, "failed to record stage", err), "Stage not recorded", "stage", result.Stage)
	}
}

// Close releases the publisher
func (r *Runner) Close() error {
	if r.publisher != nil {
		return r.publisher.Close()
	}
	return nil
}
