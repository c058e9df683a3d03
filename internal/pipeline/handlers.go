package pipeline

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	"skillpulse/internal/aggregate"
	"skillpulse/internal/common"
	"skillpulse/internal/config"
	"skillpulse/internal/errors"
	"skillpulse/internal/export"
	"skillpulse/internal/fetch"
	"skillpulse/internal/forecast"
	"skillpulse/internal/ingest"
	"skillpulse/internal/observability"
	"skillpulse/internal/process"
	"skillpulse/internal/report"
	"skillpulse/internal/skills"
	"skillpulse/internal/types"
)

// LandingDir is where fetched pages are written and ingest reads from
func LandingDir(cfg *config.Config) string {
	return filepath.Join(cfg.App.DataDir, "raw")
}

// DefaultReportOutput is the report destination used by `all`
func DefaultReportOutput(cfg *config.Config) common.CommandConfig {
	ext := map[string]string{"json": ".json", "markdown": ".md"}[cfg.App.DefaultFormat]
	if ext == "" {
		ext = ".txt"
	}
	return common.CommandConfig{
		OutputFile:   filepath.Join(cfg.App.DataDir, "reports", "job_market_report"+ext),
		OutputFormat: cfg.App.DefaultFormat,
	}
}

func sliceFailure(key, cause string) types.SliceFailure {
	return types.SliceFailure{Key: key, Cause: cause}
}

// Deps are the shared collaborators of the default handlers
type Deps struct {
	Config       *config.Config
	DB           *sql.DB
	Logger       *errors.Logger
	Obs          *observability.ObservabilityManager
	ReportOutput common.CommandConfig
}

// DefaultHandlers wires every stage to its component
func DefaultHandlers(d Deps) (map[Stage]Handler, error) {
	weekStart, err := config.ParseWeekday(d.Config.Aggregate.WeekStart)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid aggregate.weekStart", err)
	}
	if d.ReportOutput.OutputFormat == "" {
		d.ReportOutput = DefaultReportOutput(d.Config)
	}

	return map[Stage]Handler{
		StageFetch:     fetchHandler(d),
		StageIngest:    ingestHandler(d),
		StageProcess:   processHandler(d),
		StageSkills:    skillsHandler(d),
		StageAggregate: aggregateHandler(d, weekStart),
		StageForecast:  forecastHandler(d, weekStart),
		StageExport:    exportHandler(d),
		StageReport:    reportHandler(d),
	}, nil
}

func fetchHandler(d Deps) Handler {
	return func(ctx context.Context) (Outcome, error) {
		cfg := d.Config
		opts := []fetch.ClientOption{
			fetch.WithMetrics(d.Obs.GetMetrics()),
			fetch.WithTransport(d.Obs.HTTPTransport(nil)),
		}
		cache, err := fetch.NewCache(ctx, cfg.Cache)
		if err != nil {
			if d.Logger != nil {
				d.Logger.Warn("Fetch cache unavailable, continuing without it", "error", err.Error())
			}
		} else if cache != nil {
			defer func() { _ = cache.Close() }()
			opts = append(opts, fetch.WithCache(cache, cfg.Cache.TTL))
		}

		client := fetch.NewClient(cfg.Adzuna, d.Logger, opts...)
		fetcher := fetch.NewFetcher(client, fetch.Options{
			OutputDir:   LandingDir(cfg),
			Roles:       cfg.Adzuna.Roles,
			Countries:   cfg.Adzuna.Countries,
			Pages:       cfg.Adzuna.Pages,
			Concurrency: cfg.Adzuna.Concurrency,
		}, d.Logger)

		res, err := fetcher.Run(ctx)
		out := Outcome{Rows: res.Jobs, Detail: res}
		for _, f := range res.Failures {
			out.Slices = append(out.Slices, sliceFailure(fmt.Sprintf("%s/%s/page-%d", f.Role, f.Country, f.Page), f.Error))
		}
		return out, err
	}
}

func ingestHandler(d Deps) Handler {
	return func(ctx context.Context) (Outcome, error) {
		res, err := ingest.NewIngester(d.DB, ingest.Options{
			Path:        LandingDir(d.Config),
			MaxFileSize: d.Config.App.MaxFileSize,
		}, d.Logger).Run(ctx)
		return Outcome{Rows: res.Rows, Detail: res}, err
	}
}

func processHandler(d Deps) Handler {
	return func(ctx context.Context) (Outcome, error) {
		res, err := process.NewProcessor(d.DB, process.Options{
			ReportingCurrency: d.Config.Process.ReportingCurrency,
			Convert:           d.Config.Process.ConvertCurrency,
			Rates:             d.Config.Process.CurrencyRates,
		}, d.Logger).Run(ctx)
		return Outcome{Rows: res.Rows, Detail: res}, err
	}
}

func skillsHandler(d Deps) Handler {
	return func(ctx context.Context) (Outcome, error) {
		res, err := skills.NewTagger(d.DB, d.Config.Skills.Vocabulary, d.Logger).Run(ctx)
		return Outcome{Rows: res.Tags, Detail: res}, err
	}
}

func aggregateHandler(d Deps, weekStart time.Weekday) Handler {
	return func(ctx context.Context) (Outcome, error) {
		res, err := aggregate.NewAggregator(d.DB, weekStart, d.Logger).Run(ctx)
		return Outcome{Rows: res.Rows, Detail: res}, err
	}
}

func forecastHandler(d Deps, weekStart time.Weekday) Handler {
	return func(ctx context.Context) (Outcome, error) {
		res, err := forecast.NewForecaster(d.DB, forecast.Options{
			Horizon:       d.Config.Forecast.Horizon,
			MinHistory:    d.Config.Forecast.MinHistory,
			IntervalWidth: d.Config.Forecast.IntervalWidth,
			WeekStart:     weekStart,
		}, d.Logger).Run(ctx)

		metrics := d.Obs.GetMetrics()
		metrics.RecordForecastSeries(ctx, "forecasted", res.Forecasted)
		metrics.RecordForecastSeries(ctx, "skipped", res.Skipped)
		metrics.RecordForecastSeries(ctx, "failed", len(res.Failures))

		out := Outcome{Rows: res.Rows, Detail: res}
		for _, f := range res.Failures {
			out.Slices = append(out.Slices, sliceFailure(fmt.Sprintf("skill %d (%s)", f.SkillID, f.SkillName), f.Error))
		}
		return out, err
	}
}

func exportHandler(d Deps) Handler {
	return func(ctx context.Context) (Outcome, error) {
		res, err := export.NewExporter(d.DB, d.Config.Export, d.Logger).Run(ctx)
		out := Outcome{Rows: res.Weekly + res.Forecasts, Detail: res}
		for _, f := range res.Failures {
			out.Slices = append(out.Slices, sliceFailure("sink "+f.Sink, f.Error))
		}
		return out, err
	}
}

func reportHandler(d Deps) Handler {
	return func(ctx context.Context) (Outcome, error) {
		rep, err := report.NewReporter(d.DB, report.Options{Currency: d.Config.Process.ReportingCurrency}, d.Logger).Run(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if err := common.NewOutputHandler(d.Logger).HandleOutput(rep, d.ReportOutput); err != nil {
			return Outcome{Rows: rep.TotalJobs}, err
		}
		return Outcome{Rows: rep.TotalJobs, Detail: map[string]any{"output": d.ReportOutput.OutputFile, "format": d.ReportOutput.OutputFormat}}, nil
	}
}
