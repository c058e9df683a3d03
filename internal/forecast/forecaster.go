package forecast

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"skillpulse/internal/aggregate"
	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"
)

// Options configures a forecasting run
type Options struct {
	Horizon       int
	MinHistory    int
	IntervalWidth float64
	WeekStart     time.Weekday
}

// SeriesFailure records a series that could not be fitted
type SeriesFailure struct {
	SkillID   int64  `json:"skill_id"`
	SkillName string `json:"skill_name"`
	Error     string `json:"error"`
	Err       error  `json:"-"`
}

// Result summarizes one forecasting run
type Result struct {
	Series     int             `json:"series"`
	Forecasted int             `json:"forecasted"`
	Skipped    int             `json:"skipped"`
	Rows       int             `json:"rows"`
	Failures   []SeriesFailure `json:"failures,omitempty"`
}

// Series is one named demand history
type Series struct {
	SkillID   int64
	SkillName string
	Points    []types.Point
}

// Forecaster builds per-skill and overall forecasts from stored weekly demand
type Forecaster struct {
	db     *sql.DB
	opts   Options
	logger *errors.Logger
}

// NewForecaster creates a Forecaster
func NewForecaster(db *sql.DB, opts Options, logger *errors.Logger) *Forecaster {
	return &Forecaster{db: db, opts: opts, logger: logger}
}

// Run forecasts every series and replaces the stored forecasts in one transaction.
// Skipped and failed series are left without rows. Fit failures are collected in the
// result and do not stop other series.
func (f *Forecaster) Run(ctx context.Context) (Result, error) {
	weekly, err := store.ListWeekly(f.db, store.WeeklyFilter{})
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to read weekly demand", err)
	}
	jobs, err := store.ListCleanJobs(f.db)
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to read cleaned jobs", err)
	}

	series := BuildSeries(weekly, aggregate.CountJobsByWeek(jobs, f.opts.WeekStart))
	if len(series) == 0 {
		f.logInfo("No demand history to forecast")
		if err := f.replace(ctx, nil); err != nil {
			return Result{}, err
		}
		return Result{}, errors.NewEmptyInputError("no weekly demand history to forecast")
	}

	result, rows := f.forecastAll(series)
	if err := f.replace(ctx, rows); err != nil {
		return result, err
	}
	result.Rows = len(rows)

	f.logInfo("Forecasting completed",
		"series", result.Series,
		"forecasted", result.Forecasted,
		"skipped", result.Skipped,
		"failed", len(result.Failures),
		"rows", result.Rows)
	return result, nil
}

func (f *Forecaster) replace(ctx context.Context, rows []types.SkillForecast) error {
	err := store.WithTx(ctx, f.db, func(tx *sql.Tx) error {
		_, err := store.ReplaceForecasts(tx, rows)
		return err
	})
	if err != nil {
		return errors.NewIOError(errors.ErrCodeStoreFailed, "failed to replace forecasts", err)
	}
	return nil
}

func (f *Forecaster) forecastAll(series []Series) (Result, []types.SkillForecast) {
	result := Result{Series: len(series)}
	var rows []types.SkillForecast

	for _, s := range series {
		forecast, err := ForecastSeries(s, f.opts)
		switch {
		case err != nil:
			failure := SeriesFailure{SkillID: s.SkillID, SkillName: s.SkillName, Error: err.Error(), Err: err}
			result.Failures = append(result.Failures, failure)
			if f.logger != nil {
				f.logger.LogError(err, "Series fit failed", "skill_id", s.SkillID, "skill", s.SkillName)
			}
		case forecast == nil:
			result.Skipped++
			if f.logger != nil {
				f.logger.Debug("Series below minimum history, skipped",
					"skill_id", s.SkillID, "skill", s.SkillName, "min_history", f.opts.MinHistory)
			}
		default:
			result.Forecasted++
			rows = append(rows, forecast...)
		}
	}
	return result, rows
}

// ForecastSeries gap-fills s and forecasts it. It returns nil rows and a nil error
// when the filled history is shorter than opts.MinHistory.
func ForecastSeries(s Series, opts Options) ([]types.SkillForecast, error) {
	filled := FillGaps(s.Points, opts.WeekStart)
	if len(filled) < opts.MinHistory {
		return nil, nil
	}

	model, err := Fit(filled)
	if err != nil {
		return nil, errors.NewFitFailureError("failed to fit series", err).
			WithContext("skill_id", s.SkillID).
			WithContext("skill", s.SkillName)
	}
	rows, err := model.Forecast(opts.Horizon, opts.IntervalWidth)
	if err != nil {
		return nil, errors.NewFitFailureError("failed to forecast series", err).
			WithContext("skill_id", s.SkillID).
			WithContext("skill", s.SkillName)
	}
	for i := range rows {
		rows[i].SkillID = s.SkillID
		rows[i].SkillName = s.SkillName
	}
	return rows, nil
}

// BuildSeries groups weekly rows per skill and appends the overall series first.
func BuildSeries(weekly []types.WeeklySkillDemand, overall []types.Point) []Series {
	bySkill := make(map[int64]*Series)
	for _, w := range weekly {
		s, ok := bySkill[w.SkillID]
		if !ok {
			s = &Series{SkillID: w.SkillID, SkillName: w.SkillName}
			bySkill[w.SkillID] = s
		}
		s.Points = append(s.Points, types.Point{Period: w.WeekStart, Value: float64(w.Demand)})
	}

	out := make([]Series, 0, len(bySkill)+1)
	if len(overall) > 0 {
		out = append(out, Series{SkillID: types.OverallSkillID, SkillName: types.OverallSkillName, Points: overall})
	}
	ids := make([]int64, 0, len(bySkill))
	for id := range bySkill {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, k int) bool { return ids[i] < ids[k] })
	for _, id := range ids {
		out = append(out, *bySkill[id])
	}
	return out
}

func (f *Forecaster) logInfo(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Info(msg, args...)
	}
}
