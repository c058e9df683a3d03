package cli

import (
	"context"
	"fmt"
	"os"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"

	"github.com/spf13/cobra"
)

// Define custom private types for context keys.
type configKeyType struct{}
type loggerKeyType struct{}

// Use variables of these types as the keys.
var configKey = configKeyType{}
var loggerKey = loggerKeyType{}

// skipConfigAnnotation marks commands that run without loading configuration
const skipConfigAnnotation = "skillpulse/skip-config"

var configFile string

// activeLogger is the logger of the running command, used to report its failure
var activeLogger *errors.Logger

var rootCmd = &cobra.Command{
	Use:   "skillpulse",
	Short: "Job market analytics: fetch postings, track skill demand and forecast it",
	Long: `skillpulse collects job postings from Adzuna, cleans them, tags them with
skills from a fixed vocabulary, aggregates weekly demand and salary per skill
and forecasts demand for the coming weeks.

Each stage is its own command and reads what the previous one left in the
store, so stages can be run one at a time or all together with 'all'.
Results are exported as files or to warehouses, summarized in a report and
served through a query API and dashboard.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadRuntime,
}

// Execute runs the command line. Failures are logged before being returned.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		if activeLogger != nil {
			activeLogger.LogError(err, "Command failed")
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	return err
}

// loadRuntime loads configuration, applies flag overrides and attaches config and
// logger to the command context
func loadRuntime(cmd *cobra.Command, _ []string) error {
	if skipsConfig(cmd) {
		return nil
	}

	cfg, err := config.LoadConfigFrom(configFile)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load configuration", err)
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "invalid configuration after flag overrides", err)
	}

	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to initialize logger", err)
	}
	activeLogger = logger

	if err := config.ApplyVaultSecrets(cfg, logger); err != nil {
		return errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to load secrets from Vault", err)
	}

	logger.Info("Starting skillpulse",
		"version", Version,
		"command", cmd.Name(),
		"log_level", cfg.App.LogLevel,
		"store", cfg.Store.Path)

	ctx := context.WithValue(cmd.Context(), configKey, cfg)
	ctx = context.WithValue(ctx, loggerKey, logger)
	cmd.SetContext(ctx)
	return nil
}

// skipsConfig reports whether cmd runs without configuration: version, help and shell completion
func skipsConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[skipConfigAnnotation] == "true" || c.Name() == "help" || c.Name() == "completion" {
			return true
		}
	}
	return false
}

// getConfigFromContext is a helper function to get config from context
func getConfigFromContext(ctx context.Context) *config.Config {
	if cfg, ok := ctx.Value(configKey).(*config.Config); ok {
		return cfg
	}
	panic("config not found in context") // Should not happen if properly initialized
}

// getLoggerFromContext is a helper function to get logger from context
func getLoggerFromContext(ctx context.Context) *errors.Logger {
	if logger, ok := ctx.Value(loggerKey).(*errors.Logger); ok {
		return logger
	}
	panic("logger not found in context") // Should not happen if properly initialized
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default: ./config.yaml, $HOME/.skillpulse or /etc/skillpulse)")
	rootCmd.PersistentFlags().String("db", "", "SQLite store path (overrides store.path)")

	for _, stage := range stageCommands() {
		rootCmd.AddCommand(stage)
	}
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(versionCmd)
}
