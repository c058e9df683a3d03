package export

import (
	"context"
	"database/sql"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"
)

// SinkFailure records one sink that could not be written
type SinkFailure struct {
	Sink  string `json:"sink"`
	Error string `json:"error"`
}

// Result summarizes one export run
type Result struct {
	Weekly    int           `json:"weekly_rows"`
	Forecasts int           `json:"forecast_rows"`
	Sinks     []string      `json:"sinks"`
	Failures  []SinkFailure `json:"failures,omitempty"`
}

// Opener builds a sink by name
type Opener func(ctx context.Context, name string, cfg config.ExportConfig) (Sink, error)

// Exporter copies the weekly and forecast tables to every configured sink
type Exporter struct {
	db     *sql.DB
	cfg    config.ExportConfig
	open   Opener
	logger *errors.Logger
	now    func() time.Time
}

// NewExporter creates an Exporter using the built-in sinks
func NewExporter(db *sql.DB, cfg config.ExportConfig, logger *errors.Logger) *Exporter {
	if len(cfg.Sinks) == 0 {
		cfg.Sinks = []string{"csv"}
	}
	return &Exporter{db: db, cfg: cfg, open: OpenSink, logger: logger, now: time.Now}
}

// WithOpener replaces the sink factory
func (e *Exporter) WithOpener(open Opener) *Exporter {
	e.open = open
	return e
}

// Run loads the dataset once and writes it to each sink in order.
// A sink failure is recorded and the next sink still runs; the run fails only when no sink succeeds.
func (e *Exporter) Run(ctx context.Context) (Result, error) {
	ds, err := LoadDataset(e.db, e.now())
	if err != nil {
		return Result{}, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to load export dataset", err)
	}
	if ds.Empty() {
		e.logInfo("Nothing to export")
		return Result{}, errors.NewEmptyInputError("no weekly demand or forecasts to export")
	}

	result := Result{Weekly: len(ds.Weekly), Forecasts: len(ds.Forecasts)}
	for _, name := range e.cfg.Sinks {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if err := e.writeSink(ctx, name, ds); err != nil {
			result.Failures = append(result.Failures, SinkFailure{Sink: name, Error: err.Error()})
			e.logError(err, "Export sink failed", "sink", name)
			continue
		}
		result.Sinks = append(result.Sinks, name)
	}

	if len(result.Sinks) == 0 {
		return result, errors.NewIOError(errors.ErrCodeExportFailed, "every export sink failed", nil).
			WithContext("sinks", e.cfg.Sinks)
	}

	e.logInfo("Export complete",
		"weekly_rows", result.Weekly,
		"forecast_rows", result.Forecasts,
		"sinks", result.Sinks,
		"failed_sinks", len(result.Failures))
	return result, nil
}

func (e *Exporter) writeSink(ctx context.Context, name string, ds Dataset) (err error) {
	sink, err := e.open(ctx, name, e.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sink.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return sink.Write(ctx, ds)
}

func (e *Exporter) logInfo(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Info(msg, args...)
	}
}

func (e *Exporter) logError(err error, msg string, args ...any) {
	if e.logger != nil {
		e.logger.LogError(err, msg, args...)
	}
}
