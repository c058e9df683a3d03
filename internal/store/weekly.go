package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"skillpulse/internal/types"
)

// UpsertWeekly writes weekly rows keyed by (week_start, skill_id). Keys not in rows are left alone.
// Callers wrap it in a transaction to make the batch atomic.
func UpsertWeekly(db DBExecutor, rows []types.WeeklySkillDemand) (int, error) {
	for i, r := range rows {
		_, err := db.Exec(`INSERT INTO weekly_skill_demand (week_start, skill_id, demand, median_salary, p25_salary, p75_salary)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(week_start, skill_id) DO UPDATE SET
				demand = excluded.demand,
				median_salary = excluded.median_salary,
				p25_salary = excluded.p25_salary,
				p75_salary = excluded.p75_salary`,
			formatDate(r.WeekStart), r.SkillID, r.Demand,
			nullableFloat(r.MedianSalary), nullableFloat(r.P25Salary), nullableFloat(r.P75Salary))
		if err != nil {
			return i, fmt.Errorf("upsert weekly (%s, %d): %w", formatDate(r.WeekStart), r.SkillID, err)
		}
	}
	return len(rows), nil
}

// WeeklyFilter narrows ListWeekly. The zero value returns everything.
type WeeklyFilter struct {
	SkillID    *int64
	LatestOnly bool
}

// ListWeekly returns weekly rows ordered by week ascending then skill id.
func ListWeekly(db DBExecutor, filter WeeklyFilter) ([]types.WeeklySkillDemand, error) {
	var where []string
	var args []any
	if filter.SkillID != nil {
		where = append(where, "w.skill_id = ?")
		args = append(args, *filter.SkillID)
	}
	if filter.LatestOnly {
		where = append(where, "w.week_start = (SELECT MAX(week_start) FROM weekly_skill_demand)")
	}

	query := `SELECT w.week_start, w.skill_id, s.name, w.demand, w.median_salary, w.p25_salary, w.p75_salary
		FROM weekly_skill_demand w JOIN skills s ON s.id = w.skill_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY w.week_start, w.skill_id"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.WeeklySkillDemand{}
	for rows.Next() {
		var r types.WeeklySkillDemand
		var week string
		var median, p25, p75 sql.NullFloat64
		if err := rows.Scan(&week, &r.SkillID, &r.SkillName, &r.Demand, &median, &p25, &p75); err != nil {
			return nil, err
		}
		if r.WeekStart, err = parseDate(week); err != nil {
			return nil, err
		}
		r.MedianSalary = scanFloat(median)
		r.P25Salary = scanFloat(p25)
		r.P75Salary = scanFloat(p75)
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestWeek returns the most recent aggregated week. ok is false when the table is empty.
func LatestWeek(db DBExecutor) (week time.Time, ok bool, err error) {
	var s sql.NullString
	if err := db.QueryRow(`SELECT MAX(week_start) FROM weekly_skill_demand`).Scan(&s); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	if !s.Valid {
		return time.Time{}, false, nil
	}
	week, err = parseDate(s.String)
	if err != nil {
		return time.Time{}, false, err
	}
	return week, true, nil
}

// TopSkills returns the highest-demand skills for week, ties broken by name.
func TopSkills(db DBExecutor, week time.Time, limit int) ([]types.SkillDemandRow, error) {
	rows, err := db.Query(`SELECT w.skill_id, s.name, w.demand, w.median_salary
		FROM weekly_skill_demand w JOIN skills s ON s.id = w.skill_id
		WHERE w.week_start = ?
		ORDER BY w.demand DESC, s.name ASC
		LIMIT ?`, formatDate(week), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.SkillDemandRow{}
	for rows.Next() {
		var r types.SkillDemandRow
		var median sql.NullFloat64
		if err := rows.Scan(&r.SkillID, &r.SkillName, &r.Demand, &median); err != nil {
			return nil, err
		}
		r.MedianSalary = scanFloat(median)
		out = append(out, r)
	}
	return out, rows.Err()
}
