package cli

import (
	"skillpulse/internal/server"

	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the query API and the HTML dashboard",
	Long: `Start an HTTP server over the store with a read-only JSON API and an HTML dashboard.

Available endpoints:
- GET /: dashboard with this week's top skills, a skill's history and its 26-week forecast
- GET /api/skills, /api/skills/top, /api/weekly, /api/forecasts, /api/jobs
- GET /health: Health check endpoint
- GET /stats: Table sizes, cache and rate limiting info

The server runs until interrupted. Cached query results are dropped whenever
the database file changes.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	dashboardCmd.Flags().StringP("port", "p", "", "Port to listen on (default from config)")
	dashboardCmd.Flags().String("host", "", "Host to bind to (default from config)")
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	rt, err := openRuntime(cmd.Context())
	if err != nil {
		return err
	}
	defer rt.Close()

	srv := server.NewServer(rt.cfg, server.ServerConfigFrom(rt.cfg, Version), rt.db, rt.om, rt.logger)
	return srv.Run(cmd.Context())
}
