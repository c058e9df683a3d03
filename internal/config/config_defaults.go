package config

import (
	"time"

	"github.com/spf13/viper"
)

// DefaultSkillVocabulary is the fixed list of skills matched against descriptions
var DefaultSkillVocabulary = []string{
	"Python", "SQL", "Excel", "Machine Learning", "Deep Learning", "AI",
	"TensorFlow", "PyTorch", "NLP", "Data Analysis", "Statistics",
	"Tableau", "Power BI", "AWS", "Azure", "GCP", "Java", "C++",
	"R", "Hadoop", "Spark", "Scala", "Docker", "Kubernetes",
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// App Configuration
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.dataDir", "data")
	v.SetDefault("app.defaultFormat", "text")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 64*1024*1024) // 64MB per landing file

	// Store
	v.SetDefault("store.path", "data/jobs.db")

	// Job source
	v.SetDefault("adzuna.baseURL", "https://api.adzuna.com/v1/api/jobs")
	v.SetDefault("adzuna.appId", "")
	v.SetDefault("adzuna.appKey", "")
	v.SetDefault("adzuna.roles", []string{
		"data analyst", "data scientist", "machine learning engineer",
		"business analyst", "software engineer",
	})
	v.SetDefault("adzuna.countries", []string{"in", "us", "gb", "ca", "au"})
	v.SetDefault("adzuna.pages", 1)
	v.SetDefault("adzuna.resultsPerPage", 50)
	v.SetDefault("adzuna.timeout", 15*time.Second)
	v.SetDefault("adzuna.concurrency", 1)
	v.SetDefault("adzuna.rateLimit.requestsPerSecond", 1.0)
	v.SetDefault("adzuna.rateLimit.burst", 1)

	v.SetDefault("adzuna.circuitBreaker.enabled", true)
	v.SetDefault("adzuna.circuitBreaker.maxRequests", 1)
	v.SetDefault("adzuna.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("adzuna.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("adzuna.circuitBreaker.minRequests", 5)
	v.SetDefault("adzuna.circuitBreaker.failureThreshold", 0.6)

	// Fetch cache
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.backend", "redis")
	v.SetDefault("cache.redisAddr", "localhost:6379")
	v.SetDefault("cache.redisPassword", "")
	v.SetDefault("cache.redisDB", 0)
	v.SetDefault("cache.ttl", 6*time.Hour)

	// Process
	v.SetDefault("process.reportingCurrency", "USD")
	v.SetDefault("process.convertCurrency", true)
	v.SetDefault("process.currencyRates", map[string]float64{
		"USD": 1.0,
		"GBP": 1.27,
		"CAD": 0.73,
		"AUD": 0.66,
		"INR": 0.012,
	})

	// Skills
	v.SetDefault("skills.vocabulary", DefaultSkillVocabulary)

	// Aggregate
	v.SetDefault("aggregate.weekStart", "monday")

	// Forecast
	v.SetDefault("forecast.horizon", 26)
	v.SetDefault("forecast.minHistory", 5)
	v.SetDefault("forecast.intervalWidth", 0.8)

	// Export
	v.SetDefault("export.dir", "data/export")
	v.SetDefault("export.sinks", []string{"csv"})
	v.SetDefault("export.postgresDSN", "")
	v.SetDefault("export.clickhouseDSN", "")
	v.SetDefault("export.batchSize", 500)

	// Events
	v.SetDefault("events.nats.enabled", false)
	v.SetDefault("events.nats.url", "nats://127.0.0.1:4222")
	v.SetDefault("events.nats.subject", "skillpulse.stage.completed")

	// Server Configuration
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8501")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.maxRequestSize", 1024*1024) // 1MB
	v.SetDefault("server.watchStore", true)
	v.SetDefault("server.cacheTTL", 5*time.Minute)
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 120)
	v.SetDefault("server.rateLimit.burstCapacity", 20)

	// Vault Configuration
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.adzuna", "")
	v.SetDefault("vault.secrets.export", "")
	v.SetDefault("vault.secrets.cache", "")

	// Observability Configuration
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "skillpulse")
	v.SetDefault("observability.serviceVersion", "")  // Will use app version if empty
	v.SetDefault("observability.serviceInstance", "") // Will be auto-generated if empty
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", false)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
	v.SetDefault("observability.healthCheck.timeout", 5*time.Second)
}
