package store

import (
	"fmt"
	"strings"

	"skillpulse/internal/types"
)

// EnsureSkills makes sure every vocabulary entry has a row and returns them in input order.
func EnsureSkills(db DBExecutor, names []string) ([]types.Skill, error) {
	out := make([]types.Skill, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		var id int64
		err := db.QueryRow(`INSERT INTO skills (name) VALUES (?)
			ON CONFLICT(name) DO UPDATE SET name = excluded.name
			RETURNING id`, name).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("upsert skill %q: %w", name, err)
		}
		out = append(out, types.Skill{ID: id, Name: name})
	}
	return out, nil
}

// ListSkills returns all known skills ordered by name.
func ListSkills(db DBExecutor) ([]types.Skill, error) {
	rows, err := db.Query(`SELECT id, name FROM skills ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.Skill{}
	for rows.Next() {
		var s types.Skill
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReplaceJobSkills swaps the entire job_skills association for tags.
func ReplaceJobSkills(db DBExecutor, tags []types.SkillTag) (int, error) {
	if _, err := db.Exec(`DELETE FROM job_skills`); err != nil {
		return 0, fmt.Errorf("clear job_skills: %w", err)
	}
	inserted := 0
	for _, t := range tags {
		res, err := db.Exec(`INSERT OR IGNORE INTO job_skills (job_id, skill_id) VALUES (?, ?)`, t.JobID, t.SkillID)
		if err != nil {
			return inserted, fmt.Errorf("insert job skill (%d, %d): %w", t.JobID, t.SkillID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}
	return inserted, nil
}

// ListJobSkills returns the job to skill association ordered by job then skill.
func ListJobSkills(db DBExecutor) ([]types.SkillTag, error) {
	rows, err := db.Query(`SELECT job_id, skill_id FROM job_skills ORDER BY job_id, skill_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.SkillTag{}
	for rows.Next() {
		var t types.SkillTag
		if err := rows.Scan(&t.JobID, &t.SkillID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SkillTotals counts tagged jobs per skill over all time, highest first.
func SkillTotals(db DBExecutor, limit int) ([]types.CountEntry, error) {
	rows, err := db.Query(`SELECT s.name, COUNT(DISTINCT js.job_id) AS n
		FROM job_skills js JOIN skills s ON s.id = js.skill_id
		GROUP BY s.id
		ORDER BY n DESC, s.name ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []types.CountEntry{}
	for rows.Next() {
		var e types.CountEntry
		if err := rows.Scan(&e.Label, &e.Count); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
