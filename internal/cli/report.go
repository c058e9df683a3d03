package cli

import (
	"os"

	"skillpulse/internal/common"
	"skillpulse/internal/pipeline"

	"github.com/spf13/cobra"
)

var reportConfig common.CommandConfig

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize the store as a job market report",
	Long: `Build a job market report from the store: job and salary totals, the most
frequent skills, titles, companies and locations, the top skills of the latest
week and the overall demand forecast.

The report is printed to stdout unless --output is given; the run summary then
goes to stderr.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfigFromContext(cmd.Context())
		// Apply default format if not specified
		if reportConfig.OutputFormat == "" {
			reportConfig.OutputFormat = cfg.App.DefaultFormat
		}
		summaryConfig.OutputFormat = "text"
		return common.ValidateOutputFormat(reportConfig.OutputFormat, cfg.App.SupportedFormats)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runStage(cmd, pipeline.StageReport, pipeline.Deps{ReportOutput: reportConfig}, os.Stderr)
	},
}

func init() {
	reportCmd.Flags().StringVarP(&reportConfig.OutputFile, "output", "o", "", "Output file path (default: stdout)")
	reportCmd.Flags().StringVar(&reportConfig.OutputFormat, "format", "", "Output format: json, text, or markdown")

	// Add completion for format flag
	_ = reportCmd.RegisterFlagCompletionFunc("format", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return common.NewOutputHandler(nil).GetSupportedFormats(), cobra.ShellCompDirectiveNoFileComp
	})
}
