package aggregate

import (
	"context"
	"database/sql"
	"math"
	"testing"
	"time"

	"skillpulse/internal/errors"
	"skillpulse/internal/store"
	"skillpulse/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) *time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return &t
}

func salary(v float64) *float64 { return &v }

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		start time.Weekday
		want  string
	}{
		{"tuesday to monday", "2024-01-02", time.Monday, "2024-01-01"},
		{"monday stays", "2024-01-01", time.Monday, "2024-01-01"},
		{"sunday belongs to previous monday", "2024-01-07", time.Monday, "2024-01-01"},
		{"sunday start", "2024-01-03", time.Sunday, "2023-12-31"},
		{"across year end", "2024-12-31", time.Monday, "2024-12-30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WeekStart(*date(tt.in), tt.start)
			assert.Equal(t, tt.want, got.Format("2006-01-02"))
		})
	}
}

func TestWeekStartIgnoresTimeOfDay(t *testing.T) {
	late := time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, *date("2024-01-01"), WeekStart(late, time.Monday))
}

func TestQuantile(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		p    float64
		want float64
	}{
		{"single", []float64{5}, 0.5, 5},
		{"two values median", []float64{80000, 100000}, 0.5, 90000},
		{"two values p25", []float64{80000, 100000}, 0.25, 85000},
		{"unsorted input", []float64{4, 1, 3, 2}, 0.5, 2.5},
		{"p75 interpolates", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"p0 is min", []float64{3, 1, 2}, 0, 1},
		{"p1 is max", []float64{3, 1, 2}, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Quantile(tt.xs, tt.p), 1e-9)
		})
	}

	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}

func TestAggregateScenario(t *testing.T) {
	const python, sqlSkill = int64(1), int64(2)
	jobs := []types.CleanedJob{
		{JobID: 1, PostedAt: date("2024-01-02"), SalaryMin: salary(80000)},
		{JobID: 2, PostedAt: date("2024-01-03"), SalaryMin: salary(100000)},
		{JobID: 3, PostedAt: date("2024-01-03")},
	}
	tags := []types.SkillTag{
		{JobID: 1, SkillID: python},
		{JobID: 2, SkillID: python},
		{JobID: 3, SkillID: sqlSkill},
	}

	rows := Aggregate(jobs, tags, time.Monday)
	require.Len(t, rows, 2)

	assert.Equal(t, *date("2024-01-01"), rows[0].WeekStart)
	assert.Equal(t, python, rows[0].SkillID)
	assert.Equal(t, 2, rows[0].Demand)
	require.NotNil(t, rows[0].MedianSalary)
	assert.InDelta(t, 90000, *rows[0].MedianSalary, 1e-9)
	assert.InDelta(t, 85000, *rows[0].P25Salary, 1e-9)
	assert.InDelta(t, 95000, *rows[0].P75Salary, 1e-9)

	assert.Equal(t, sqlSkill, rows[1].SkillID)
	assert.Equal(t, 1, rows[1].Demand)
	assert.Nil(t, rows[1].MedianSalary)
	assert.Nil(t, rows[1].P25Salary)
	assert.Nil(t, rows[1].P75Salary)
}

func TestAggregateRules(t *testing.T) {
	jobs := []types.CleanedJob{
		// max used when min missing
		{JobID: 1, PostedAt: date("2024-01-02"), SalaryMax: salary(70000)},
		{JobID: 2, PostedAt: date("2024-01-09"), SalaryMin: salary(50000), SalaryMax: salary(90000)},
		// undated, dropped
		{JobID: 3},
	}
	tags := []types.SkillTag{
		{JobID: 1, SkillID: 7},
		{JobID: 1, SkillID: 7}, // duplicate tag counts once
		{JobID: 2, SkillID: 7},
		{JobID: 3, SkillID: 7},
		{JobID: 99, SkillID: 7}, // tag for unknown job
	}

	rows := Aggregate(jobs, tags, time.Monday)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Demand)
	assert.InDelta(t, 70000, *rows[0].MedianSalary, 1e-9)
	assert.Equal(t, *date("2024-01-08"), rows[1].WeekStart)
	assert.InDelta(t, 50000, *rows[1].MedianSalary, 1e-9)
}

func TestAggregateProperties(t *testing.T) {
	var jobs []types.CleanedJob
	var tags []types.SkillTag
	start := *date("2024-01-01")
	for i := 0; i < 60; i++ {
		posted := start.AddDate(0, 0, i%20)
		j := types.CleanedJob{JobID: int64(i + 1), PostedAt: &posted}
		if i%3 != 0 {
			j.SalaryMin = salary(float64(40000 + (i*7919)%60000))
		}
		jobs = append(jobs, j)
		tags = append(tags, types.SkillTag{JobID: j.JobID, SkillID: int64(i%4 + 1)})
		if i%5 == 0 {
			tags = append(tags, types.SkillTag{JobID: j.JobID, SkillID: 9})
		}
	}

	rows := Aggregate(jobs, tags, time.Monday)
	demandByWeek := map[time.Time]int{}
	for _, r := range rows {
		assert.Positive(t, r.Demand)
		demandByWeek[r.WeekStart] += r.Demand
		if r.MedianSalary != nil {
			assert.LessOrEqual(t, *r.P25Salary, *r.MedianSalary)
			assert.LessOrEqual(t, *r.MedianSalary, *r.P75Salary)
		} else {
			assert.Nil(t, r.P25Salary)
			assert.Nil(t, r.P75Salary)
		}
	}

	for _, p := range CountJobsByWeek(jobs, time.Monday) {
		assert.GreaterOrEqual(t, float64(demandByWeek[p.Period]), p.Value)
	}

	assert.Equal(t, rows, Aggregate(jobs, tags, time.Monday))
}

func TestCountJobsByWeek(t *testing.T) {
	jobs := []types.CleanedJob{
		{JobID: 1, PostedAt: date("2024-01-02")},
		{JobID: 2, PostedAt: date("2024-01-03")},
		{JobID: 2, PostedAt: date("2024-01-03")},
		{JobID: 3, PostedAt: date("2024-01-15")},
		{JobID: 4},
	}
	points := CountJobsByWeek(jobs, time.Monday)
	require.Len(t, points, 2)
	assert.Equal(t, types.Point{Period: *date("2024-01-01"), Value: 2}, points[0])
	assert.Equal(t, types.Point{Period: *date("2024-01-15"), Value: 1}, points[1])
}

func setupStore(t *testing.T) *sql.DB {
	t.Helper()
	db, err := store.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedScenario(t *testing.T, db *sql.DB) {
	t.Helper()
	raw := []types.JobPosting{
		{ExternalID: "1", Source: "test", PostedAt: date("2024-01-02")},
		{ExternalID: "2", Source: "test", PostedAt: date("2024-01-03")},
		{ExternalID: "3", Source: "test", PostedAt: date("2024-01-03")},
	}
	_, err := store.UpsertRawJobs(db, raw)
	require.NoError(t, err)

	_, err = store.ReplaceCleanJobs(db, []types.CleanedJob{
		{JobID: raw[0].ID, PostedAt: raw[0].PostedAt, SalaryMin: salary(80000)},
		{JobID: raw[1].ID, PostedAt: raw[1].PostedAt, SalaryMin: salary(100000)},
		{JobID: raw[2].ID, PostedAt: raw[2].PostedAt},
	})
	require.NoError(t, err)

	skills, err := store.EnsureSkills(db, []string{"python", "sql"})
	require.NoError(t, err)
	_, err = store.ReplaceJobSkills(db, []types.SkillTag{
		{JobID: raw[0].ID, SkillID: skills[0].ID},
		{JobID: raw[1].ID, SkillID: skills[0].ID},
		{JobID: raw[2].ID, SkillID: skills[1].ID},
	})
	require.NoError(t, err)
}

func TestAggregatorRunIsIdempotent(t *testing.T) {
	db := setupStore(t)
	seedScenario(t, db)
	agg := NewAggregator(db, time.Monday, nil)

	res, err := agg.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Rows)
	assert.Equal(t, 1, res.Weeks)

	first, err := store.ListWeekly(db, store.WeeklyFilter{})
	require.NoError(t, err)

	_, err = agg.Run(context.Background())
	require.NoError(t, err)
	second, err := store.ListWeekly(db, store.WeeklyFilter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, second, 2)
	assert.Equal(t, "python", second[0].SkillName)
	assert.InDelta(t, 90000, *second[0].MedianSalary, 1e-9)
}

func TestAggregatorEmptyInputWritesNothing(t *testing.T) {
	db := setupStore(t)
	skills, err := store.EnsureSkills(db, []string{"python"})
	require.NoError(t, err)
	existing := []types.WeeklySkillDemand{{WeekStart: *date("2023-12-25"), SkillID: skills[0].ID, Demand: 4}}
	_, err = store.UpsertWeekly(db, existing)
	require.NoError(t, err)

	_, err = NewAggregator(db, time.Monday, nil).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeEmptyInput))

	rows, err := store.ListWeekly(db, store.WeeklyFilter{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, rows[0].Demand)
}

func BenchmarkAggregate(b *testing.B) {
	var jobs []types.CleanedJob
	var tags []types.SkillTag
	start := *date("2024-01-01")
	for i := 0; i < 5000; i++ {
		posted := start.AddDate(0, 0, i%180)
		jobs = append(jobs, types.CleanedJob{JobID: int64(i), PostedAt: &posted, SalaryMin: salary(float64(30000 + i%70000))})
		for s := 0; s < 3; s++ {
			tags = append(tags, types.SkillTag{JobID: int64(i), SkillID: int64((i + s) % 24)})
		}
	}
	for b.Loop() {
		_ = Aggregate(jobs, tags, time.Monday)
	}
}
