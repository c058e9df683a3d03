package store

import (
	"fmt"

	"skillpulse/internal/types"
)

// ReplaceForecasts deletes every stored forecast and inserts rows. An empty rows clears the table.
func ReplaceForecasts(db DBExecutor, rows []types.SkillForecast) (int, error) {
	if _, err := db.Exec(`DELETE FROM skill_forecasts`); err != nil {
		return 0, fmt.Errorf("clear forecasts: %w", err)
	}

	for i, r := range rows {
		if r.YHatLower > r.YHat || r.YHat > r.YHatUpper {
			return i, fmt.Errorf("forecast (%d, %s): interval [%.3f, %.3f] does not contain %.3f",
				r.SkillID, formatDate(r.DS), r.YHatLower, r.YHatUpper, r.YHat)
		}
		_, err := db.Exec(`INSERT INTO skill_forecasts (skill_id, ds, yhat, yhat_lower, yhat_upper) VALUES (?, ?, ?, ?, ?)`,
			r.SkillID, formatDate(r.DS), r.YHat, r.YHatLower, r.YHatUpper)
		if err != nil {
			return i, fmt.Errorf("insert forecast (%d, %s): %w", r.SkillID, formatDate(r.DS), err)
		}
	}
	return len(rows), nil
}

// ListForecasts returns forecast rows ordered by skill then ds. A nil skillID returns all skills.
func ListForecasts(db DBExecutor, skillID *int64) ([]types.SkillForecast, error) {
	query := `SELECT f.skill_id, COALESCE(s.name, ?), f.ds, f.yhat, f.yhat_lower, f.yhat_upper
		FROM skill_forecasts f LEFT JOIN skills s ON s.id = f.skill_id`
	args := []any{types.OverallSkillName}
	if skillID != nil {
		query += " WHERE f.skill_id = ?"
		args = append(args, *skillID)
	}
	query += " ORDER BY f.skill_id, f.ds"

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.SkillForecast{}
	for rows.Next() {
		var f types.SkillForecast
		var ds string
		if err := rows.Scan(&f.SkillID, &f.SkillName, &ds, &f.YHat, &f.YHatLower, &f.YHatUpper); err != nil {
			return nil, err
		}
		if f.DS, err = parseDate(ds); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
