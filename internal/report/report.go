// Package report summarizes the cleaned jobs, skill tags, weekly demand and forecasts into one market report.
package report

import (
	"context"
	"database/sql"
	"slices"
	"strings"
	"time"

	"skillpulse/internal/aggregate"
	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"
)

// DefaultTopN is the length of each ranked list
const DefaultTopN = 10

// Options configures a report
type Options struct {
	TopN     int
	Currency string
}

// Reporter reads the store and builds a Report
type Reporter struct {
	db     *sql.DB
	opts   Options
	logger *errors.Logger
	now    func() time.Time
}

// NewReporter creates a Reporter
func NewReporter(db *sql.DB, opts Options, logger *errors.Logger) *Reporter {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	return &Reporter{db: db, opts: opts, logger: logger, now: time.Now}
}

// Run builds the report. A store without cleaned jobs yields an empty_input error
// together with the (empty) report so callers can still render it.
func (r *Reporter) Run(_ context.Context) (types.Report, error) {
	rep, err := Build(r.db, r.opts, r.now())
	if err != nil {
		return rep, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to build report", err)
	}
	if rep.TotalJobs == 0 {
		if r.logger != nil {
			r.logger.Info("No cleaned jobs to report")
		}
		return rep, errors.NewEmptyInputError("no cleaned jobs to report")
	}
	if r.logger != nil {
		r.logger.Info("Report built",
			"total_jobs", rep.TotalJobs,
			"jobs_with_salary", rep.JobsWithSalary,
			"top_skills", len(rep.TopSkills))
	}
	return rep, nil
}

// Build assembles the report from the store
func Build(db store.DBExecutor, opts Options, now time.Time) (types.Report, error) {
	if opts.TopN <= 0 {
		opts.TopN = DefaultTopN
	}
	rep := types.Report{
		GeneratedAt:      now.UTC(),
		Currency:         opts.Currency,
		TopSkills:        []types.CountEntry{},
		TopTitles:        []types.CountEntry{},
		TopCompanies:     []types.CountEntry{},
		TopLocations:     []types.CountEntry{},
		LatestWeekSkills: []types.SkillDemandRow{},
	}

	jobs, err := store.ListCleanJobs(db)
	if err != nil {
		return rep, err
	}
	summarizeJobs(&rep, jobs, opts.TopN)

	if rep.TopSkills, err = store.SkillTotals(db, opts.TopN); err != nil {
		return rep, err
	}

	week, ok, err := store.LatestWeek(db)
	if err != nil {
		return rep, err
	}
	if ok {
		rep.LatestWeek = &week
		if rep.LatestWeekSkills, err = store.TopSkills(db, week, opts.TopN); err != nil {
			return rep, err
		}
	}

	overall := types.OverallSkillID
	forecasts, err := store.ListForecasts(db, &overall)
	if err != nil {
		return rep, err
	}
	rep.Forecast = Summarize(forecasts)
	return rep, nil
}

func summarizeJobs(rep *types.Report, jobs []types.CleanedJob, topN int) {
	rep.TotalJobs = len(jobs)

	var salaries []float64
	titles := make(map[string]int)
	companies := make(map[string]int)
	locations := make(map[string]int)
	for _, j := range jobs {
		if s := j.RepresentativeSalary(); s != nil {
			salaries = append(salaries, *s)
		}
		count(titles, j.Title)
		count(companies, j.Company)
		count(locations, locationLabel(j))
	}

	rep.JobsWithSalary = len(salaries)
	if len(salaries) > 0 {
		var sum float64
		for _, s := range salaries {
			sum += s
		}
		avg := sum / float64(len(salaries))
		median := aggregate.Quantile(salaries, 0.5)
		rep.AverageSalary = &avg
		rep.MedianSalary = &median
	}

	rep.TopTitles = Rank(titles, topN)
	rep.TopCompanies = Rank(companies, topN)
	rep.TopLocations = Rank(locations, topN)
}

func count(m map[string]int, label string) {
	label = strings.TrimSpace(label)
	if label == "" {
		return
	}
	m[label]++
}

func locationLabel(j types.CleanedJob) string {
	var parts []string
	for _, p := range []string{j.City, j.State, j.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// Rank orders counts descending, ties by label, and keeps the first n
func Rank(counts map[string]int, n int) []types.CountEntry {
	out := make([]types.CountEntry, 0, len(counts))
	for label, c := range counts {
		out = append(out, types.CountEntry{Label: label, Count: c})
	}
	slices.SortFunc(out, func(a, b types.CountEntry) int {
		if a.Count != b.Count {
			return b.Count - a.Count
		}
		return strings.Compare(a.Label, b.Label)
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// flatBand is the relative change under which a forecast counts as flat
const flatBand = 0.05

// Summarize condenses forecast rows ordered by ds. It returns nil for no rows.
func Summarize(rows []types.SkillForecast) *types.ForecastSummary {
	if len(rows) == 0 {
		return nil
	}
	first, last := rows[0], rows[len(rows)-1]
	s := &types.ForecastSummary{
		Periods:   len(rows),
		From:      first.DS,
		To:        last.DS,
		FirstYHat: first.YHat,
		LastYHat:  last.YHat,
		LastLower: last.YHatLower,
		LastUpper: last.YHatUpper,
		Trend:     "flat",
	}

	base := max(first.YHat, 1)
	change := (last.YHat - first.YHat) / base
	switch {
	case change > flatBand:
		s.Trend = "rising"
	case change < -flatBand:
		s.Trend = "falling"
	}
	return s
}
