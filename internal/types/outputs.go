package types

import "time"

// Report is the market summary produced by the report stage
type Report struct {
	GeneratedAt      time.Time        `json:"generated_at"`
	TotalJobs        int              `json:"total_jobs"`
	JobsWithSalary   int              `json:"jobs_with_salary"`
	AverageSalary    *float64         `json:"average_salary"`
	MedianSalary     *float64         `json:"median_salary"`
	Currency         string           `json:"currency,omitempty"`
	TopSkills        []CountEntry     `json:"top_skills"`
	TopTitles        []CountEntry     `json:"top_titles"`
	TopCompanies     []CountEntry     `json:"top_companies"`
	TopLocations     []CountEntry     `json:"top_locations"`
	LatestWeek       *time.Time       `json:"latest_week,omitempty"`
	LatestWeekSkills []SkillDemandRow `json:"latest_week_skills"`
	Forecast         *ForecastSummary `json:"forecast,omitempty"`
}

// ForecastSummary describes the overall demand forecast
type ForecastSummary struct {
	Periods   int       `json:"periods"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	FirstYHat float64   `json:"first_yhat"`
	LastYHat  float64   `json:"last_yhat"`
	LastLower float64   `json:"last_lower"`
	LastUpper float64   `json:"last_upper"`
	Trend     string    `json:"trend"` // rising, falling or flat
}

// Stage statuses
const (
	StatusOK      = "ok"
	StatusEmpty   = "empty"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// SliceFailure is one failed unit inside a stage, e.g. a search page or a skill series
type SliceFailure struct {
	Key   string `json:"key"`
	Cause string `json:"cause"`
}

// StageResult is the outcome of one pipeline stage
type StageResult struct {
	Stage     string         `json:"stage"`
	Status    string         `json:"status"`
	Rows      int            `json:"rows"`
	Slices    []SliceFailure `json:"slices,omitempty"`
	Error     string         `json:"error,omitempty"`
	Err       error          `json:"-"`
	StartedAt time.Time      `json:"started_at"`
	Duration  time.Duration  `json:"duration_ns"`
	Detail    any            `json:"detail,omitempty"`
}

// RunSummary aggregates the stage results of one pipeline run
type RunSummary struct {
	RunID     string        `json:"run_id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration_ns"`
	Stages    []StageResult `json:"stages"`
	Aborted   bool          `json:"aborted,omitempty"`
}

// Failed reports whether any stage failed
func (s RunSummary) Failed() bool {
	for _, st := range s.Stages {
		if st.Status == StatusFailed {
			return true
		}
	}
	return false
}
