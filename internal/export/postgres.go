package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS weekly_skill_demand (
	week_start    DATE             NOT NULL,
	skill_id      BIGINT           NOT NULL,
	skill_name    TEXT             NOT NULL DEFAULT '',
	demand        INTEGER          NOT NULL,
	median_salary DOUBLE PRECISION,
	p25_salary    DOUBLE PRECISION,
	p75_salary    DOUBLE PRECISION,
	exported_at   TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
	PRIMARY KEY (week_start, skill_id)
);

CREATE TABLE IF NOT EXISTS skill_forecasts (
	skill_id    BIGINT           NOT NULL,
	skill_name  TEXT             NOT NULL DEFAULT '',
	ds          DATE             NOT NULL,
	yhat        DOUBLE PRECISION NOT NULL,
	yhat_lower  DOUBLE PRECISION NOT NULL,
	yhat_upper  DOUBLE PRECISION NOT NULL,
	exported_at TIMESTAMPTZ      NOT NULL DEFAULT NOW(),
	PRIMARY KEY (skill_id, ds)
);

CREATE INDEX IF NOT EXISTS idx_weekly_skill ON weekly_skill_demand(skill_id);
`

// PostgresSink upserts the dataset into a PostgreSQL warehouse
type PostgresSink struct {
	db        *sql.DB
	batchSize int
}

// NewPostgresSink opens a connection, waits for the server and creates the tables if absent
func NewPostgresSink(ctx context.Context, dsn string, batchSize int) (*PostgresSink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres: export.postgresDSN is not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 5; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	if batchSize <= 0 {
		batchSize = 500
	}
	return &PostgresSink{db: db, batchSize: batchSize}, nil
}

func (s *PostgresSink) Name() string { return "postgres" }

// Write upserts every row in batches inside one transaction
func (s *PostgresSink) Write(ctx context.Context, ds Dataset) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	weekly := weeklyUpsert()
	for start := 0; start < len(ds.Weekly); start += s.batchSize {
		end := min(start+s.batchSize, len(ds.Weekly))
		rows := make([][]any, 0, end-start)
		for _, r := range ds.Weekly[start:end] {
			rows = append(rows, []any{r.WeekStart.Format(dateLayout), r.SkillID, r.SkillName, r.Demand,
				nullFloat(r.MedianSalary), nullFloat(r.P25Salary), nullFloat(r.P75Salary)})
		}
		query, args := weekly.build(rows)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: upsert weekly batch at %d: %w", start, err)
		}
	}

	forecasts := forecastUpsert()
	for start := 0; start < len(ds.Forecasts); start += s.batchSize {
		end := min(start+s.batchSize, len(ds.Forecasts))
		rows := make([][]any, 0, end-start)
		for _, r := range ds.Forecasts[start:end] {
			rows = append(rows, []any{r.SkillID, r.SkillName, r.DS.Format(dateLayout), r.YHat, r.YHatLower, r.YHatUpper})
		}
		query, args := forecasts.build(rows)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("postgres: upsert forecast batch at %d: %w", start, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	return s.db.Close()
}

// upsert describes a multi-row INSERT ... ON CONFLICT DO UPDATE
type upsert struct {
	table    string
	columns  []string
	conflict []string
}

func weeklyUpsert() upsert {
	return upsert{
		table:    "weekly_skill_demand",
		columns:  []string{"week_start", "skill_id", "skill_name", "demand", "median_salary", "p25_salary", "p75_salary"},
		conflict: []string{"week_start", "skill_id"},
	}
}

func forecastUpsert() upsert {
	return upsert{
		table:    "skill_forecasts",
		columns:  []string{"skill_id", "skill_name", "ds", "yhat", "yhat_lower", "yhat_upper"},
		conflict: []string{"skill_id", "ds"},
	}
}

// build renders the statement for rows with $n placeholders
func (u upsert) build(rows [][]any) (string, []any) {
	width := len(u.columns)
	values := make([]string, 0, len(rows))
	args := make([]any, 0, len(rows)*width)
	for i, row := range rows {
		ph := make([]string, width)
		for j := range ph {
			ph[j] = fmt.Sprintf("$%d", i*width+j+1)
		}
		values = append(values, "("+strings.Join(ph, ",")+")")
		args = append(args, row...)
	}

	isKey := make(map[string]bool, len(u.conflict))
	for _, c := range u.conflict {
		isKey[c] = true
	}
	var sets []string
	for _, c := range u.columns {
		if !isKey[c] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
		}
	}
	sets = append(sets, "exported_at = NOW()")

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT (%s) DO UPDATE SET %s",
		u.table,
		strings.Join(u.columns, ", "),
		strings.Join(values, ","),
		strings.Join(u.conflict, ", "),
		strings.Join(sets, ", "))
	return query, args
}
