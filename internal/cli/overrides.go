package cli

import (
	"skillpulse/internal/config"

	"github.com/spf13/cobra"
)

// flagOverride copies one explicitly set flag into the configuration
type flagOverride struct {
	flag  string
	apply func(cmd *cobra.Command, cfg *config.Config) error
}

var flagOverrides = []flagOverride{
	{"db", func(cmd *cobra.Command, cfg *config.Config) (err error) {
		cfg.Store.Path, err = cmd.Flags().GetString("db")
		return
	}},
	{"horizon", func(cmd *cobra.Command, cfg *config.Config) (err error) {
		cfg.Forecast.Horizon, err = cmd.Flags().GetInt("horizon")
		return
	}},
	{"min-history", func(cmd *cobra.Command, cfg *config.Config) (err error) {
		cfg.Forecast.MinHistory, err = cmd.Flags().GetInt("min-history")
		return
	}},
	{"week-start", func(cmd *cobra.Command, cfg *config.Config) (err error) {
		cfg.Aggregate.WeekStart, err = cmd.Flags().GetString("week-start")
		return
	}},
	{"port", func(cmd *cobra.Command, cfg *config.Config) (err error) {
		cfg.Server.Port, err = cmd.Flags().GetString("port")
		return
	}},
	{"host", func(cmd *cobra.Command, cfg *config.Config) (err error) {
		cfg.Server.Host, err = cmd.Flags().GetString("host")
		return
	}},
}

// applyFlagOverrides applies the flags set on the command line. Defaults of unset
// flags leave the configuration untouched.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	for _, o := range flagOverrides {
		if f := cmd.Flags().Lookup(o.flag); f == nil || !f.Changed {
			continue
		}
		if err := o.apply(cmd, cfg); err != nil {
			return err
		}
	}
	return nil
}

func addForecastFlags(cmd *cobra.Command) {
	cmd.Flags().Int("horizon", 0, "Weeks to forecast (overrides forecast.horizon)")
	cmd.Flags().Int("min-history", 0, "Minimum weeks of history a series needs (overrides forecast.minHistory)")
}

func addWeekStartFlag(cmd *cobra.Command) {
	cmd.Flags().String("week-start", "", "First day of a week bucket, e.g. monday (overrides aggregate.weekStart)")
}
