package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"skillpulse/internal/common"
	"skillpulse/internal/pipeline"
	"skillpulse/internal/types"

	"github.com/spf13/cobra"
)

var stageDescriptions = map[pipeline.Stage]string{
	pipeline.StageFetch:     "Fetch job postings from Adzuna into landing files",
	pipeline.StageIngest:    "Load landing files into the raw jobs table",
	pipeline.StageProcess:   "Clean raw jobs: locations, dates and annualized salaries",
	pipeline.StageSkills:    "Tag cleaned jobs with skills from the vocabulary",
	pipeline.StageAggregate: "Aggregate weekly demand and salary per skill",
	pipeline.StageForecast:  "Forecast weekly demand per skill and overall",
	pipeline.StageExport:    "Export weekly demand and forecasts to the configured sinks",
	pipeline.StageAll:       "Run fetch, ingest, process, skills, aggregate, forecast, export and report in order",
}

// summaryConfig is where stage commands print their run summary
var summaryConfig common.CommandConfig

// stageCommands builds one command per batch stage plus 'all'
func stageCommands() []*cobra.Command {
	stages := []pipeline.Stage{
		pipeline.StageFetch, pipeline.StageIngest, pipeline.StageProcess, pipeline.StageSkills,
		pipeline.StageAggregate, pipeline.StageForecast, pipeline.StageExport, pipeline.StageAll,
	}

	cmds := make([]*cobra.Command, 0, len(stages))
	for _, stage := range stages {
		cmd := &cobra.Command{
			Use:     stage.String(),
			Short:   stageDescriptions[stage],
			Args:    cobra.NoArgs,
			PreRunE: validateSummaryFormat,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runStage(cmd, stage, pipeline.Deps{}, os.Stdout)
			},
		}
		cmd.Flags().StringVarP(&summaryConfig.OutputFile, "output", "o", "", "Write the run summary to a file (default: stdout)")
		cmd.Flags().StringVar(&summaryConfig.OutputFormat, "format", "", "Summary format: json, text, or markdown")

		switch stage {
		case pipeline.StageAggregate:
			addWeekStartFlag(cmd)
		case pipeline.StageForecast, pipeline.StageAll:
			addWeekStartFlag(cmd)
			addForecastFlags(cmd)
		}
		cmds = append(cmds, cmd)
	}
	return cmds
}

func validateSummaryFormat(cmd *cobra.Command, _ []string) error {
	cfg := getConfigFromContext(cmd.Context())
	if summaryConfig.OutputFormat == "" {
		summaryConfig.OutputFormat = "text"
	}
	return common.ValidateOutputFormat(summaryConfig.OutputFormat, cfg.App.SupportedFormats)
}

// runStage runs stage with the default handlers and prints the summary to w.
// deps may carry a report destination; store, config and telemetry are filled in here.
func runStage(cmd *cobra.Command, stage pipeline.Stage, deps pipeline.Deps, w io.Writer) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	deps.Config = rt.cfg
	deps.DB = rt.db
	deps.Logger = rt.logger
	deps.Obs = rt.om
	handlers, err := pipeline.DefaultHandlers(deps)
	if err != nil {
		return err
	}

	opts := []pipeline.RunnerOption{pipeline.WithObservability(rt.om)}
	publisher, err := pipeline.NewNATSPublisher(rt.cfg.Events.NATS, rt.logger)
	if err != nil {
		rt.logger.Warn("Stage events disabled, NATS unavailable", "error", err.Error())
	} else if publisher != nil {
		opts = append(opts, pipeline.WithPublisher(publisher))
	}

	runner := pipeline.NewRunner(rt.db, handlers, rt.logger, opts...)
	defer func() {
		if err := runner.Close(); err != nil {
			rt.logger.LogError(err, "Failed to close event publisher")
		}
	}()

	run := func(ctx context.Context) (types.RunSummary, error) {
		return runner.Run(ctx, stage)
	}
	if err := common.RunPipelineCommandTo(cmd.Context(), rt.logger, w, summaryConfig, run); err != nil {
		return fmt.Errorf("%s: %w", stage, err)
	}
	return nil
}
