package report

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"skillpulse/internal/errors"
	"skillpulse/internal/formatters"
	"skillpulse/internal/store"
	"skillpulse/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func setupStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *sql.DB) {
	t.Helper()
	posted := day("2024-01-02")
	raw := make([]types.JobPosting, 4)
	for i := range raw {
		raw[i] = types.JobPosting{
			ExternalID: fmt.Sprintf("ext-%d", i),
			Source:     "adzuna",
			Title:      "Data Analyst",
			URL:        fmt.Sprintf("https://example.com/%d", i),
			FetchedAt:  posted,
		}
	}
	_, err := store.UpsertRawJobs(db, raw)
	require.NoError(t, err)
	stored, err := store.ListRawJobs(db)
	require.NoError(t, err)
	require.Len(t, stored, 4)

	clean := []types.CleanedJob{
		{JobID: stored[0].ID, Title: "data analyst", Company: "Acme", City: "Bengaluru", Country: "IN", PostedAt: &posted, SalaryMin: ptr(100)},
		{JobID: stored[1].ID, Title: "data analyst", Company: "Acme", City: "Bengaluru", Country: "IN", PostedAt: &posted, SalaryMax: ptr(300)},
		{JobID: stored[2].ID, Title: "data scientist", Company: "Globex", City: "Pune", Country: "IN", PostedAt: &posted, SalaryMin: ptr(200), SalaryMax: ptr(400)},
		{JobID: stored[3].ID, Title: "ml engineer", Company: "Initech"},
	}
	_, err = store.ReplaceCleanJobs(db, clean)
	require.NoError(t, err)

	skills, err := store.EnsureSkills(db, []string{"Python", "SQL"})
	require.NoError(t, err)
	_, err = store.ReplaceJobSkills(db, []types.SkillTag{
		{JobID: stored[0].ID, SkillID: skills[0].ID},
		{JobID: stored[1].ID, SkillID: skills[0].ID},
		{JobID: stored[1].ID, SkillID: skills[1].ID},
	})
	require.NoError(t, err)

	_, err = store.UpsertWeekly(db, []types.WeeklySkillDemand{
		{WeekStart: day("2024-01-01"), SkillID: skills[0].ID, Demand: 2, MedianSalary: ptr(200)},
		{WeekStart: day("2024-01-01"), SkillID: skills[1].ID, Demand: 1, MedianSalary: ptr(300)},
	})
	require.NoError(t, err)

	_, err = store.ReplaceForecasts(db, []types.SkillForecast{
		{SkillID: types.OverallSkillID, DS: day("2024-01-08"), YHat: 3, YHatLower: 2, YHatUpper: 4},
		{SkillID: types.OverallSkillID, DS: day("2024-01-15"), YHat: 4, YHatLower: 2.5, YHatUpper: 5.5},
	})
	require.NoError(t, err)
}

func TestBuild(t *testing.T) {
	db := setupStore(t)
	seed(t, db)

	rep, err := Build(db, Options{Currency: "USD"}, day("2024-01-20"))
	require.NoError(t, err)

	assert.Equal(t, 4, rep.TotalJobs)
	assert.Equal(t, 3, rep.JobsWithSalary)
	require.NotNil(t, rep.AverageSalary)
	assert.InDelta(t, 200, *rep.AverageSalary, 1e-9)
	require.NotNil(t, rep.MedianSalary)
	assert.InDelta(t, 200, *rep.MedianSalary, 1e-9)

	assert.Equal(t, []types.CountEntry{{Label: "Python", Count: 2}, {Label: "SQL", Count: 1}}, rep.TopSkills)
	assert.Equal(t, types.CountEntry{Label: "data analyst", Count: 2}, rep.TopTitles[0])
	assert.Equal(t, types.CountEntry{Label: "Acme", Count: 2}, rep.TopCompanies[0])
	assert.Equal(t, types.CountEntry{Label: "Bengaluru, IN", Count: 2}, rep.TopLocations[0])
	assert.Len(t, rep.TopLocations, 2)

	require.NotNil(t, rep.LatestWeek)
	assert.Equal(t, day("2024-01-01"), *rep.LatestWeek)
	require.Len(t, rep.LatestWeekSkills, 2)
	assert.Equal(t, "Python", rep.LatestWeekSkills[0].SkillName)

	require.NotNil(t, rep.Forecast)
	assert.Equal(t, 2, rep.Forecast.Periods)
	assert.Equal(t, "rising", rep.Forecast.Trend)
	assert.Equal(t, 5.5, rep.Forecast.LastUpper)
}

func TestReporterRunEmpty(t *testing.T) {
	db := setupStore(t)

	rep, err := NewReporter(db, Options{}, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyInput))
	assert.Zero(t, rep.TotalJobs)
	assert.Nil(t, rep.AverageSalary)
	assert.NotNil(t, rep.TopSkills)
	assert.Nil(t, rep.Forecast)
}

func TestRank(t *testing.T) {
	got := Rank(map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}, 3)
	assert.Equal(t, []types.CountEntry{{Label: "c", Count: 5}, {Label: "a", Count: 2}, {Label: "b", Count: 2}}, got)
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name  string
		first float64
		last  float64
		trend string
	}{
		{"rising", 10, 12, "rising"},
		{"falling", 10, 8, "falling"},
		{"flat", 10, 10.2, "flat"},
		{"zero base", 0, 0.5, "rising"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Summarize([]types.SkillForecast{
				{DS: day("2024-01-08"), YHat: tt.first, YHatLower: 0, YHatUpper: tt.first + 1},
				{DS: day("2024-01-15"), YHat: tt.last, YHatLower: 0, YHatUpper: tt.last + 1},
			})
			require.NotNil(t, s)
			assert.Equal(t, tt.trend, s.Trend)
		})
	}
	assert.Nil(t, Summarize(nil))
}

func TestReportFormats(t *testing.T) {
	db := setupStore(t)
	seed(t, db)
	rep, err := Build(db, Options{Currency: "USD"}, day("2024-01-20"))
	require.NoError(t, err)

	registry := formatters.NewFormatterRegistry()

	text, err := registry.Format(rep, "text")
	require.NoError(t, err)
	assert.Contains(t, text, "=== JOB MARKET REPORT ===")
	assert.Contains(t, text, "Median salary: 200 USD")
	assert.Contains(t, text, "1. Python (2)")

	md, err := registry.Format(rep, "markdown")
	require.NoError(t, err)
	assert.Contains(t, md, "# Job Market Analytics Report")
	assert.Contains(t, md, "| 1 | Python | 2 |")

	js, err := registry.Format(rep, "json")
	require.NoError(t, err)
	assert.Contains(t, js, `"total_jobs": 4`)

	empty, err := registry.Format(types.Report{}, "text")
	require.NoError(t, err)
	assert.Contains(t, empty, "No forecast available.")
}
