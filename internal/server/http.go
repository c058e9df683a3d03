// Package server serves the read-only query API and the HTML dashboard over the analytics store.
package server

import (
	"database/sql"
	"time"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"
	"skillpulse/internal/observability"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// Server holds configuration for the HTTP server
type Server struct {
	Host    string
	Port    string
	Version string

	// Full application configuration
	AppConfig *config.Config

	// Analytics store the API reads from
	DB        *sql.DB
	StorePath string

	// Timeout configurations
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	// Request size limit
	MaxRequestSize int64

	// Rate limiting
	RateLimit   *config.RateLimitConfig
	RateLimiter *RateLimiter

	// Cached query results, invalidated by the store watcher
	Cache        *QueryCache
	StoreWatcher *StoreWatcher

	Obs    *observability.ObservabilityManager
	Logger *errors.Logger
}

// ServerConfig holds configuration for creating a Server instance
type ServerConfig struct {
	Host           string
	Port           string
	Version        string
	StorePath      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxRequestSize int64
	CacheTTL       time.Duration
	WatchStore     bool
	RateLimit      *config.RateLimitConfig
}

// ServerConfigFrom builds a ServerConfig from the application configuration
func ServerConfigFrom(cfg *config.Config, version string) ServerConfig {
	rl := cfg.Server.RateLimit
	return ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		Version:        version,
		StorePath:      cfg.Store.Path,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxRequestSize: cfg.Server.MaxRequestSize,
		CacheTTL:       cfg.Server.CacheTTL,
		WatchStore:     cfg.Server.WatchStore,
		RateLimit:      &rl,
	}
}

// NewServer creates a new Server instance from a ServerConfig struct.
// om may be nil, in which case requests are served without instrumentation.
func NewServer(appCfg *config.Config, cfg ServerConfig, db *sql.DB, om *observability.ObservabilityManager, logger *errors.Logger) *Server {
	var rateLimiter *RateLimiter
	if cfg.RateLimit != nil && cfg.RateLimit.Enabled {
		rateLimiter = NewRateLimiter(
			cfg.RateLimit.RequestsPerMin,
			cfg.RateLimit.BurstCapacity,
			logger,
		)
	}

	s := &Server{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Version:        cfg.Version,
		AppConfig:      appCfg,
		DB:             db,
		StorePath:      cfg.StorePath,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		RateLimit:      cfg.RateLimit,
		RateLimiter:    rateLimiter,
		Cache:          NewQueryCache(cfg.CacheTTL),
		Obs:            om,
		Logger:         logger,
	}

	if cfg.WatchStore && cfg.StorePath != "" && cfg.StorePath != ":memory:" {
		s.StoreWatcher = NewStoreWatcher(cfg.StorePath, s.Cache.Invalidate, logger)
	}
	return s
}
