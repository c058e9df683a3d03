package aggregate

import (
	"context"
	"database/sql"
	"time"

	"skillpulse/internal/errors"
	"skillpulse/internal/store"
)

// Result summarizes one aggregation run
type Result struct {
	Rows        int `json:"rows"`
	Weeks       int `json:"weeks"`
	UndatedJobs int `json:"undated_jobs"`
}

// Aggregator reads cleaned jobs and tags from the store and upserts weekly demand
type Aggregator struct {
	db        *sql.DB
	weekStart time.Weekday
	logger    *errors.Logger
}

// NewAggregator creates an Aggregator bucketing weeks from weekStart
func NewAggregator(db *sql.DB, weekStart time.Weekday, logger *errors.Logger) *Aggregator {
	return &Aggregator{db: db, weekStart: weekStart, logger: logger}
}

// Run recomputes every (week, skill) bucket and upserts it in one transaction.
// An empty job or tag table yields an empty_input error and no writes.
func (a *Aggregator) Run(ctx context.Context) (Result, error) {
	jobs, err := store.ListCleanJobs(a.db)
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to read cleaned jobs", err)
	}
	tags, err := store.ListJobSkills(a.db)
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to read job skills", err)
	}

	if len(jobs) == 0 || len(tags) == 0 {
		a.logInfo("No data to aggregate", "jobs", len(jobs), "tags", len(tags))
		return Result{}, errors.NewEmptyInputError("no cleaned jobs or skill tags to aggregate").
			WithContext("jobs", len(jobs)).
			WithContext("tags", len(tags))
	}

	result := Result{}
	for _, j := range jobs {
		if j.PostedAt == nil {
			result.UndatedJobs++
		}
	}

	rows := Aggregate(jobs, tags, a.weekStart)
	if len(rows) == 0 {
		a.logInfo("No dated tagged jobs to aggregate", "undated_jobs", result.UndatedJobs)
		return result, errors.NewEmptyInputError("no dated tagged jobs to aggregate")
	}

	err = store.WithTx(ctx, a.db, func(tx *sql.Tx) error {
		_, err := store.UpsertWeekly(tx, rows)
		return err
	})
	if err != nil {
		return result, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to upsert weekly demand", err)
	}

	weeks := make(map[time.Time]struct{})
	for _, r := range rows {
		weeks[r.WeekStart] = struct{}{}
	}
	result.Rows = len(rows)
	result.Weeks = len(weeks)

	a.logInfo("Weekly demand aggregated",
		"rows", result.Rows,
		"weeks", result.Weeks,
		"undated_jobs", result.UndatedJobs)
	return result, nil
}

func (a *Aggregator) logInfo(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Info(msg, args...)
	}
}
