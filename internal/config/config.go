package config

import (
	"fmt"
	"log"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
// Adzuna credential precedence order:
// 1. Vault (if configured) - Highest priority
// 2. Config file values / SKILLPULSE_ADZUNA_APPID, SKILLPULSE_ADZUNA_APPKEY
// 3. ADZUNA_APP_ID, ADZUNA_APP_KEY (also read from .env)
// 4. Default values (empty) - Lowest priority
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Store         StoreConfig         `mapstructure:"store"`
	Adzuna        AdzunaConfig        `mapstructure:"adzuna"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Process       ProcessConfig       `mapstructure:"process"`
	Skills        SkillsConfig        `mapstructure:"skills"`
	Aggregate     AggregateConfig     `mapstructure:"aggregate"`
	Forecast      ForecastConfig      `mapstructure:"forecast"`
	Export        ExportConfig        `mapstructure:"export"`
	Events        EventsConfig        `mapstructure:"events"`
	Server        ServerConfig        `mapstructure:"server"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DataDir          string   `mapstructure:"dataDir"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// StoreConfig holds the persistent store location
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// AdzunaConfig holds job source configuration
type AdzunaConfig struct {
	BaseURL        string               `mapstructure:"baseURL"`
	AppID          string               `mapstructure:"appId"`
	AppKey         string               `mapstructure:"appKey"`
	Roles          []string             `mapstructure:"roles"`
	Countries      []string             `mapstructure:"countries"`
	Pages          int                  `mapstructure:"pages"`
	ResultsPerPage int                  `mapstructure:"resultsPerPage"`
	Timeout        time.Duration        `mapstructure:"timeout"`
	Concurrency    int                  `mapstructure:"concurrency"`
	RateLimit      OutboundLimitConfig  `mapstructure:"rateLimit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// OutboundLimitConfig throttles requests to the job source
type OutboundLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requestsPerSecond"`
	Burst             int     `mapstructure:"burst"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// CacheConfig holds the fetch response cache configuration
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Backend       string        `mapstructure:"backend"` // "redis" or "memory"
	RedisAddr     string        `mapstructure:"redisAddr"`
	RedisPassword string        `mapstructure:"redisPassword"`
	RedisDB       int           `mapstructure:"redisDB"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// ProcessConfig holds cleaning and salary normalization settings
type ProcessConfig struct {
	ReportingCurrency string             `mapstructure:"reportingCurrency"`
	ConvertCurrency   bool               `mapstructure:"convertCurrency"`
	CurrencyRates     map[string]float64 `mapstructure:"currencyRates"` // units of reporting currency per unit
}

// SkillsConfig holds the skill vocabulary
type SkillsConfig struct {
	Vocabulary []string `mapstructure:"vocabulary"`
}

// AggregateConfig holds weekly aggregation settings
type AggregateConfig struct {
	WeekStart string `mapstructure:"weekStart"`
}

// ForecastConfig holds forecaster settings
type ForecastConfig struct {
	Horizon       int     `mapstructure:"horizon"`
	MinHistory    int     `mapstructure:"minHistory"`
	IntervalWidth float64 `mapstructure:"intervalWidth"`
}

// ExportConfig holds export sink settings
type ExportConfig struct {
	Dir           string   `mapstructure:"dir"`
	Sinks         []string `mapstructure:"sinks"`
	PostgresDSN   string   `mapstructure:"postgresDSN"`
	ClickHouseDSN string   `mapstructure:"clickhouseDSN"`
	BatchSize     int      `mapstructure:"batchSize"`
}

// EventsConfig holds pipeline event publication settings
type EventsConfig struct {
	NATS NATSConfig `mapstructure:"nats"`
}

// NATSConfig holds NATS connection settings
type NATSConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           string        `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"readTimeout"`
	WriteTimeout   time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout    time.Duration `mapstructure:"idleTimeout"`
	MaxRequestSize int64         `mapstructure:"maxRequestSize"`
	WatchStore     bool          `mapstructure:"watchStore"`
	CacheTTL       time.Duration `mapstructure:"cacheTTL"`

	// Rate Limiting Configuration
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`        // Enable/disable rate limiting
	RequestsPerMin int  `mapstructure:"requestsPerMin"` // Requests allowed per minute
	BurstCapacity  int  `mapstructure:"burstCapacity"`  // Burst capacity for token bucket
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool              `mapstructure:"enabled"`
	ServiceName     string            `mapstructure:"serviceName"`
	ServiceVersion  string            `mapstructure:"serviceVersion"`
	ServiceInstance string            `mapstructure:"serviceInstance"`
	ConsoleOutput   bool              `mapstructure:"consoleOutput"`
	SampleRate      float64           `mapstructure:"sampleRate"`
	Metrics         MetricsConfig     `mapstructure:"metrics"`
	Console         ConsoleConfig     `mapstructure:"console"`
	Prometheus      PrometheusConfig  `mapstructure:"prometheus"`
	OTLP            OTLPConfig        `mapstructure:"otlp"`
	HealthCheck     HealthCheckConfig `mapstructure:"healthCheck"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// HealthCheckConfig holds health check configuration
type HealthCheckConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
}

var validWeekStarts = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

var validSinks = []string{"csv", "json", "postgres", "clickhouse"}

// LoadConfig loads configuration from .env, environment variables and a config file
// found in the standard locations
func LoadConfig() (*Config, error) {
	return LoadConfigFrom("")
}

// LoadConfigFrom is LoadConfig with an explicit config file. An empty path searches
// /etc/skillpulse, $HOME/.skillpulse and the working directory.
func LoadConfigFrom(path string) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	if err := godotenv.Load(); err != nil {
		log.Println("[CONFIG] No .env file found, using process environment only")
	} else {
		log.Println("[CONFIG] Loaded variables from .env")
	}

	v := viper.New()
	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	// Set up environment variable handling
	v.SetEnvPrefix("SKILLPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Println("[CONFIG] Configured environment variable handling with prefix 'SKILLPULSE'")

	// Set up config file handling
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/skillpulse/")
		v.AddConfigPath("$HOME/.skillpulse")
		v.AddConfigPath(".")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	config, err := unmarshalConfig(v)
	if err != nil {
		return nil, err
	}

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return config, nil
}

// Default returns the configuration produced by defaults alone
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	config, err := unmarshalConfig(v)
	if err != nil {
		// defaults are static and always decode
		panic(err)
	}
	return config
}

func unmarshalConfig(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.applyFallbacks()
	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store path is required")
	}

	if _, err := ParseWeekday(c.Aggregate.WeekStart); err != nil {
		return err
	}

	if c.Forecast.Horizon <= 0 {
		return fmt.Errorf("forecast horizon must be positive")
	}
	if c.Forecast.MinHistory < 2 {
		return fmt.Errorf("forecast minHistory must be at least 2")
	}
	if c.Forecast.IntervalWidth <= 0 || c.Forecast.IntervalWidth >= 1 {
		return fmt.Errorf("forecast intervalWidth must be between 0 and 1")
	}

	if c.Adzuna.Timeout <= 0 {
		return fmt.Errorf("adzuna timeout must be positive")
	}
	if c.Adzuna.Pages <= 0 || c.Adzuna.ResultsPerPage <= 0 {
		return fmt.Errorf("adzuna pages and resultsPerPage must be positive")
	}
	if c.Adzuna.RateLimit.RequestsPerSecond < 0 || math.IsNaN(c.Adzuna.RateLimit.RequestsPerSecond) {
		return fmt.Errorf("adzuna rateLimit requestsPerSecond must not be negative")
	}

	for _, sink := range c.Export.Sinks {
		if !slices.Contains(validSinks, sink) {
			return fmt.Errorf("unknown export sink: %s", sink)
		}
	}

	if c.Cache.Enabled {
		switch c.Cache.Backend {
		case "redis", "memory":
		default:
			return fmt.Errorf("invalid cache backend: %s (must be 'redis' or 'memory')", c.Cache.Backend)
		}
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if !slices.Contains(c.App.SupportedFormats, c.App.DefaultFormat) {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	return nil
}

// HasAdzunaCredentials reports whether both job source secrets are set
func (c *Config) HasAdzunaCredentials() bool {
	return strings.TrimSpace(c.Adzuna.AppID) != "" && strings.TrimSpace(c.Adzuna.AppKey) != ""
}

// ParseWeekday converts a configured week-start name into a time.Weekday
func ParseWeekday(name string) (time.Weekday, error) {
	idx := slices.Index(validWeekStarts, strings.ToLower(strings.TrimSpace(name)))
	if idx < 0 {
		return time.Monday, fmt.Errorf("invalid weekStart: %q (must be a weekday name)", name)
	}
	// validWeekStarts begins on Monday, time.Weekday begins on Sunday
	return time.Weekday((idx + 1) % 7), nil
}
