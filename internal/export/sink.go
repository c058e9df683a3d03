// Package export writes the aggregated and forecast tables to external sinks.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/store"
	"skillpulse/internal/types"
)

// Dataset is the exported snapshot
type Dataset struct {
	Weekly      []types.WeeklySkillDemand `json:"weekly_skill_demand"`
	Forecasts   []types.SkillForecast     `json:"skill_forecasts"`
	GeneratedAt time.Time                 `json:"generated_at"`
}

// Empty reports whether there is nothing to export
func (d Dataset) Empty() bool {
	return len(d.Weekly) == 0 && len(d.Forecasts) == 0
}

// Sink receives a Dataset
type Sink interface {
	Name() string
	Write(ctx context.Context, ds Dataset) error
	Close() error
}

// LoadDataset reads every weekly and forecast row from the store
func LoadDataset(db store.DBExecutor, now time.Time) (Dataset, error) {
	weekly, err := store.ListWeekly(db, store.WeeklyFilter{})
	if err != nil {
		return Dataset{}, fmt.Errorf("list weekly demand: %w", err)
	}
	forecasts, err := store.ListForecasts(db, nil)
	if err != nil {
		return Dataset{}, fmt.Errorf("list forecasts: %w", err)
	}
	return Dataset{Weekly: weekly, Forecasts: forecasts, GeneratedAt: now.UTC()}, nil
}

// OpenSink builds one configured sink by name
func OpenSink(ctx context.Context, name string, cfg config.ExportConfig) (Sink, error) {
	switch name {
	case "csv":
		return NewCSVSink(cfg.Dir), nil
	case "json":
		return NewJSONSink(cfg.Dir), nil
	case "postgres":
		return NewPostgresSink(ctx, cfg.PostgresDSN, cfg.BatchSize)
	case "clickhouse":
		return NewClickHouseSink(ctx, cfg.ClickHouseDSN, cfg.BatchSize)
	default:
		return nil, fmt.Errorf("unknown export sink %q", name)
	}
}

const dateLayout = "2006-01-02"

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
