package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration is one forward step of the schema
type Migration struct {
	Version     int
	Description string
	Up          string
}

// Migrations is the ordered schema history. Append only.
var Migrations = []Migration{
	{
		Version:     1,
		Description: "raw and cleaned jobs, skills",
		Up: `
CREATE TABLE IF NOT EXISTS jobs_raw (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	external_id TEXT NOT NULL,
	source TEXT NOT NULL,
	company TEXT,
	title TEXT,
	location_raw TEXT,
	posted_at TEXT,
	url TEXT,
	description TEXT,
	salary_min REAL,
	salary_max REAL,
	salary_text TEXT,
	raw_payload TEXT,
	search_role TEXT,
	search_country TEXT,
	fetched_at TEXT NOT NULL,
	UNIQUE(source, external_id)
);
CREATE TABLE IF NOT EXISTS jobs_clean (
	job_id INTEGER PRIMARY KEY REFERENCES jobs_raw(id) ON DELETE CASCADE,
	title_norm TEXT,
	company TEXT,
	city TEXT,
	state TEXT,
	country TEXT,
	posted_at TEXT,
	salary_min REAL,
	salary_max REAL,
	salary_period TEXT,
	currency TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_clean_posted_at ON jobs_clean(posted_at);
CREATE TABLE IF NOT EXISTS skills (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS job_skills (
	job_id INTEGER NOT NULL REFERENCES jobs_raw(id) ON DELETE CASCADE,
	skill_id INTEGER NOT NULL REFERENCES skills(id),
	PRIMARY KEY (job_id, skill_id)
)`,
	},
	{
		Version:     2,
		Description: "weekly demand and forecasts",
		Up: `
CREATE TABLE IF NOT EXISTS weekly_skill_demand (
	week_start TEXT NOT NULL,
	skill_id INTEGER NOT NULL REFERENCES skills(id),
	demand INTEGER NOT NULL,
	median_salary REAL,
	p25_salary REAL,
	p75_salary REAL,
	PRIMARY KEY (week_start, skill_id)
);
CREATE TABLE IF NOT EXISTS skill_forecasts (
	skill_id INTEGER NOT NULL,
	ds TEXT NOT NULL,
	yhat REAL NOT NULL,
	yhat_lower REAL NOT NULL,
	yhat_upper REAL NOT NULL,
	PRIMARY KEY (skill_id, ds)
)`,
	},
	{
		Version:     3,
		Description: "pipeline run log",
		Up: `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id TEXT NOT NULL,
	stage TEXT NOT NULL,
	status TEXT NOT NULL,
	rows INTEGER NOT NULL DEFAULT 0,
	detail TEXT,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_run_id ON pipeline_runs(run_id)`,
	},
}

// Migrate applies every migration not yet recorded in schema_migrations.
func Migrate(db *sql.DB) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		applied_at TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := AppliedMigrations(db)
	if err != nil {
		return err
	}

	for _, m := range Migrations {
		if _, ok := applied[m.Version]; ok {
			continue
		}
		if err := applyMigration(db, m); err != nil {
			return err
		}
	}
	return nil
}

// AppliedMigrations returns the applied versions with their application time.
func AppliedMigrations(db DBExecutor) (map[int]string, error) {
	rows, err := db.Query(`SELECT version, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]string)
	for rows.Next() {
		var version int
		var appliedAt string
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[version] = appliedAt
	}
	return applied, rows.Err()
}

func applyMigration(db *sql.DB, m Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range splitStatements(m.Up) {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}
	}
	if _, err := tx.Exec(
		`INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)`,
		m.Version, m.Description, time.Now().UTC().Format(timeLayout),
	); err != nil {
		return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
	}
	return tx.Commit()
}
