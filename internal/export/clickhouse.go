package export

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

var clickhouseSchema = []string{
	`CREATE TABLE IF NOT EXISTS weekly_skill_demand (
		week_start    Date,
		skill_id      Int64,
		skill_name    String,
		demand        Int32,
		median_salary Nullable(Float64),
		p25_salary    Nullable(Float64),
		p75_salary    Nullable(Float64),
		exported_at   DateTime
	) ENGINE = ReplacingMergeTree(exported_at)
	ORDER BY (week_start, skill_id)`,
	`CREATE TABLE IF NOT EXISTS skill_forecasts (
		skill_id    Int64,
		skill_name  String,
		ds          Date,
		yhat        Float64,
		yhat_lower  Float64,
		yhat_upper  Float64,
		exported_at DateTime
	) ENGINE = ReplacingMergeTree(exported_at)
	ORDER BY (skill_id, ds)`,
}

// ClickHouseSink appends the dataset to ReplacingMergeTree tables keyed like the local store
type ClickHouseSink struct {
	conn      clickhouse.Conn
	batchSize int
}

// NewClickHouseSink connects over the native protocol and creates the tables if absent
func NewClickHouseSink(ctx context.Context, dsn string, batchSize int) (*ClickHouseSink, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("clickhouse: export.clickhouseDSN is not set")
	}
	opts, err := clickhouse.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: parse dsn: %w", err)
	}
	opts.Protocol = clickhouse.Native
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 30 * time.Second
	}
	if opts.Settings == nil {
		opts.Settings = clickhouse.Settings{}
	}
	opts.Settings["max_execution_time"] = 60

	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create clickhouse connection: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping clickhouse: %w", err)
	}
	for _, stmt := range clickhouseSchema {
		if err := conn.Exec(ctx, stmt); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("clickhouse: migrate: %w", err)
		}
	}

	if batchSize <= 0 {
		batchSize = 500
	}
	return &ClickHouseSink{conn: conn, batchSize: batchSize}, nil
}

func (s *ClickHouseSink) Name() string { return "clickhouse" }

func (s *ClickHouseSink) Write(ctx context.Context, ds Dataset) error {
	exportedAt := ds.GeneratedAt.UTC()
	if exportedAt.IsZero() {
		exportedAt = time.Now().UTC()
	}

	for start := 0; start < len(ds.Weekly); start += s.batchSize {
		end := min(start+s.batchSize, len(ds.Weekly))
		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO weekly_skill_demand")
		if err != nil {
			return fmt.Errorf("clickhouse: prepare weekly batch: %w", err)
		}
		for _, r := range ds.Weekly[start:end] {
			if err := batch.Append(r.WeekStart, r.SkillID, r.SkillName, int32(r.Demand),
				r.MedianSalary, r.P25Salary, r.P75Salary, exportedAt); err != nil {
				_ = batch.Abort()
				return fmt.Errorf("clickhouse: append weekly row: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("clickhouse: send weekly batch at %d: %w", start, err)
		}
	}

	for start := 0; start < len(ds.Forecasts); start += s.batchSize {
		end := min(start+s.batchSize, len(ds.Forecasts))
		batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO skill_forecasts")
		if err != nil {
			return fmt.Errorf("clickhouse: prepare forecast batch: %w", err)
		}
		for _, r := range ds.Forecasts[start:end] {
			if err := batch.Append(r.SkillID, r.SkillName, r.DS, r.YHat, r.YHatLower, r.YHatUpper, exportedAt); err != nil {
				_ = batch.Abort()
				return fmt.Errorf("clickhouse: append forecast row: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("clickhouse: send forecast batch at %d: %w", start, err)
		}
	}
	return nil
}

func (s *ClickHouseSink) Close() error {
	return s.conn.Close()
}
