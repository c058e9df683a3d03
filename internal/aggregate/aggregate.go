// Package aggregate buckets tagged jobs into weekly per-skill demand and salary quantiles.
package aggregate

import (
	"math"
	"sort"
	"time"

	"skillpulse/internal/types"
)

// WeekStart returns midnight UTC of the weekday start on or before t's calendar date.
func WeekStart(t time.Time, start time.Weekday) time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) - int(start) + 7) % 7
	return d.AddDate(0, 0, -offset)
}

type bucketKey struct {
	week    time.Time
	skillID int64
}

type jobInfo struct {
	week   time.Time
	salary *float64
}

// Aggregate produces one row per (week, skill) that has at least one contributing job.
// Jobs without posted_at are dropped. Output is ordered by week then skill id.
func Aggregate(jobs []types.CleanedJob, tags []types.SkillTag, weekStart time.Weekday) []types.WeeklySkillDemand {
	dated := make(map[int64]jobInfo, len(jobs))
	for _, j := range jobs {
		if j.PostedAt == nil {
			continue
		}
		dated[j.JobID] = jobInfo{
			week:   WeekStart(*j.PostedAt, weekStart),
			salary: j.RepresentativeSalary(),
		}
	}

	buckets := make(map[bucketKey]map[int64]struct{})
	for _, tag := range tags {
		info, ok := dated[tag.JobID]
		if !ok {
			continue
		}
		key := bucketKey{week: info.week, skillID: tag.SkillID}
		members, ok := buckets[key]
		if !ok {
			members = make(map[int64]struct{})
			buckets[key] = members
		}
		members[tag.JobID] = struct{}{}
	}

	out := make([]types.WeeklySkillDemand, 0, len(buckets))
	for key, members := range buckets {
		salaries := make([]float64, 0, len(members))
		for jobID := range members {
			if s := dated[jobID].salary; s != nil && !math.IsNaN(*s) && !math.IsInf(*s, 0) {
				salaries = append(salaries, *s)
			}
		}

		row := types.WeeklySkillDemand{
			WeekStart: key.week,
			SkillID:   key.skillID,
			Demand:    len(members),
		}
		if len(salaries) > 0 {
			sort.Float64s(salaries)
			row.P25Salary = floatPtr(QuantileSorted(salaries, 0.25))
			row.MedianSalary = floatPtr(QuantileSorted(salaries, 0.5))
			row.P75Salary = floatPtr(QuantileSorted(salaries, 0.75))
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, k int) bool {
		if !out[i].WeekStart.Equal(out[k].WeekStart) {
			return out[i].WeekStart.Before(out[k].WeekStart)
		}
		return out[i].SkillID < out[k].SkillID
	})
	return out
}

// CountJobsByWeek returns the number of distinct dated jobs per week, ignoring skills.
func CountJobsByWeek(jobs []types.CleanedJob, weekStart time.Weekday) []types.Point {
	seen := make(map[int64]bool, len(jobs))
	counts := make(map[time.Time]int)
	for _, j := range jobs {
		if j.PostedAt == nil || seen[j.JobID] {
			continue
		}
		seen[j.JobID] = true
		counts[WeekStart(*j.PostedAt, weekStart)]++
	}

	out := make([]types.Point, 0, len(counts))
	for week, n := range counts {
		out = append(out, types.Point{Period: week, Value: float64(n)})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Period.Before(out[k].Period) })
	return out
}

func floatPtr(v float64) *float64 { return &v }
