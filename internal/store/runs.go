package store

import (
	"database/sql"
	"fmt"
	"time"
)

// StageRecord is one row of the pipeline run log
type StageRecord struct {
	RunID      string    `json:"run_id"`
	Stage      string    `json:"stage"`
	Status     string    `json:"status"`
	Rows       int       `json:"rows"`
	Detail     string    `json:"detail,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// RecordStage appends a stage outcome to pipeline_runs.
func RecordStage(db DBExecutor, rec StageRecord) error {
	_, err := db.Exec(`INSERT INTO pipeline_runs (run_id, stage, status, rows, detail, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.Stage, rec.Status, rec.Rows, nullableString(rec.Detail),
		rec.StartedAt.UTC().Format(timeLayout), rec.FinishedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("record stage %s: %w", rec.Stage, err)
	}
	return nil
}

// ListStageRecords returns the log entries of one run in insertion order.
func ListStageRecords(db DBExecutor, runID string) ([]StageRecord, error) {
	rows, err := db.Query(`SELECT run_id, stage, status, rows, detail, started_at, finished_at
		FROM pipeline_runs WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []StageRecord{}
	for rows.Next() {
		var r StageRecord
		var detail sql.NullString
		var started, finished string
		if err := rows.Scan(&r.RunID, &r.Stage, &r.Status, &r.Rows, &detail, &started, &finished); err != nil {
			return nil, err
		}
		r.Detail = detail.String
		r.StartedAt, _ = time.Parse(timeLayout, started)
		r.FinishedAt, _ = time.Parse(timeLayout, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TableCounts reports row counts per table
type TableCounts struct {
	RawJobs   int `json:"jobs_raw"`
	CleanJobs int `json:"jobs_clean"`
	Skills    int `json:"skills"`
	JobSkills int `json:"job_skills"`
	Weekly    int `json:"weekly_skill_demand"`
	Forecasts int `json:"skill_forecasts"`
	Runs      int `json:"pipeline_runs"`
}

// Counts returns the row count of every pipeline table.
func Counts(db DBExecutor) (TableCounts, error) {
	var c TableCounts
	err := db.QueryRow(`SELECT
		(SELECT COUNT(*) FROM jobs_raw),
		(SELECT COUNT(*) FROM jobs_clean),
		(SELECT COUNT(*) FROM skills),
		(SELECT COUNT(*) FROM job_skills),
		(SELECT COUNT(*) FROM weekly_skill_demand),
		(SELECT COUNT(*) FROM skill_forecasts),
		(SELECT COUNT(DISTINCT run_id) FROM pipeline_runs)`).
		Scan(&c.RawJobs, &c.CleanJobs, &c.Skills, &c.JobSkills, &c.Weekly, &c.Forecasts, &c.Runs)
	if err != nil {
		return c, fmt.Errorf("count tables: %w", err)
	}
	return c, nil
}
