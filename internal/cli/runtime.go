package cli

import (
	"context"
	"database/sql"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"
	"skillpulse/internal/observability"
	"skillpulse/internal/store"
)

// runtime holds what every command that touches the store needs
type runtime struct {
	cfg    *config.Config
	logger *errors.Logger
	db     *sql.DB
	om     *observability.ObservabilityManager
}

// openRuntime opens the store and starts observability
func openRuntime(ctx context.Context) (*runtime, error) {
	cfg := getConfigFromContext(ctx)
	logger := getLoggerFromContext(ctx)

	om, err := observability.NewObservabilityManager(observability.GetObservabilityConfig(cfg, Version), cfg,
		observability.WithLogger(logger))
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidConfig, "failed to initialize observability", err)
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		shutdownObservability(om, logger)
		return nil, errors.NewIOError(errors.ErrCodeStoreFailed, "failed to open store", err).
			WithContext("path", cfg.Store.Path)
	}
	logger.Debug("Store opened", "path", cfg.Store.Path)

	return &runtime{cfg: cfg, logger: logger, db: db, om: om}, nil
}

// Close closes the store and flushes telemetry
func (rt *runtime) Close() {
	if err := rt.db.Close(); err != nil {
		rt.logger.LogError(err, "Failed to close store")
	}
	shutdownObservability(rt.om, rt.logger)
}

func shutdownObservability(om *observability.ObservabilityManager, logger *errors.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := om.Shutdown(ctx); err != nil {
		logger.LogError(err, "Failed to shutdown observability")
	}
}
