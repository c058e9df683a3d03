package config

import (
	"fmt"
	"log"
	"os"
	"strings"
)

// applyFallbacks applies environment variable fallbacks
func (c *Config) applyFallbacks() {
	c.applyAdzunaCredentialFallbacks()
	c.applyProcessDefaults()
	c.applyObservabilityDefaults()
}

// applyAdzunaCredentialFallbacks reads the conventional ADZUNA_* variables
// when the prefixed configuration left the credentials empty.
func (c *Config) applyAdzunaCredentialFallbacks() {
	if c.Adzuna.AppID == "" {
		c.Adzuna.AppID = strings.TrimSpace(os.Getenv("ADZUNA_APP_ID"))
	}
	if c.Adzuna.AppKey == "" {
		c.Adzuna.AppKey = strings.TrimSpace(os.Getenv("ADZUNA_APP_KEY"))
	}
}

// applyProcessDefaults normalizes currency codes; viper lowercases map keys
func (c *Config) applyProcessDefaults() {
	c.Process.ReportingCurrency = strings.ToUpper(strings.TrimSpace(c.Process.ReportingCurrency))
	if len(c.Process.CurrencyRates) == 0 {
		return
	}
	rates := make(map[string]float64, len(c.Process.CurrencyRates))
	for code, rate := range c.Process.CurrencyRates {
		rates[strings.ToUpper(code)] = rate
	}
	c.Process.CurrencyRates = rates
}

// applyObservabilityDefaults applies default observability configuration values
func (c *Config) applyObservabilityDefaults() {
	if c.Observability.ServiceInstance == "" {
		c.Observability.ServiceInstance = generateServiceInstanceID(c.Observability.ServiceName)
	}
}

// generateServiceInstanceID generates a unique service instance ID
func generateServiceInstanceID(serviceName string) string {
	// Try to get hostname, fallback to default
	if hostname, err := os.Hostname(); err == nil {
		return fmt.Sprintf("%s-%s", serviceName, hostname)
	}
	return fmt.Sprintf("%s-1", serviceName)
}

// logConfigurationSources logs a summary of configuration sources being used
func (c *Config) logConfigurationSources(configFileUsed string) {
	log.Println("[CONFIG] === Configuration Sources Summary ===")

	if configFileUsed != "" {
		log.Printf("[CONFIG] Config file: %s", configFileUsed)
	} else {
		log.Println("[CONFIG] Config file: None (using defaults)")
	}

	envVars := []string{
		"SKILLPULSE_ADZUNA_APPID",
		"SKILLPULSE_ADZUNA_APPKEY",
		"SKILLPULSE_STORE_PATH",
		"SKILLPULSE_SERVER_PORT",
		"SKILLPULSE_SERVER_HOST",
		"SKILLPULSE_APP_LOGLEVEL",
		"SKILLPULSE_VAULT_ENABLED",
		"ADZUNA_APP_ID",
		"ADZUNA_APP_KEY",
	}

	log.Println("[CONFIG] Environment variables:")
	hasEnvVars := false
	for _, envVar := range envVars {
		if value := os.Getenv(envVar); value != "" {
			if isSensitiveEnvVar(envVar) {
				log.Printf("[CONFIG]   %s=***MASKED***", envVar)
			} else {
				log.Printf("[CONFIG]   %s=%s", envVar, value)
			}
			hasEnvVars = true
		}
	}
	if !hasEnvVars {
		log.Println("[CONFIG]   None set")
	}

	log.Println("[CONFIG] === Key Configuration Values ===")
	log.Printf("[CONFIG] Store Path: %s", c.Store.Path)
	if c.HasAdzunaCredentials() {
		log.Println("[CONFIG] Adzuna Credentials: ***CONFIGURED***")
	} else {
		log.Println("[CONFIG] Adzuna Credentials: ***NOT SET***")
	}
	log.Printf("[CONFIG] Adzuna Countries: %s", strings.Join(c.Adzuna.Countries, ","))
	log.Printf("[CONFIG] Forecast Horizon: %d, Min History: %d", c.Forecast.Horizon, c.Forecast.MinHistory)
	log.Printf("[CONFIG] Week Start: %s", c.Aggregate.WeekStart)
	log.Printf("[CONFIG] Export Sinks: %s", strings.Join(c.Export.Sinks, ","))
	log.Printf("[CONFIG] Server: %s:%s", c.Server.Host, c.Server.Port)
	log.Printf("[CONFIG] Log Level: %s", c.App.LogLevel)
	log.Printf("[CONFIG] Vault Enabled: %t", c.Vault.Enabled)
	log.Printf("[CONFIG] Observability Enabled: %t", c.Observability.Enabled)
	log.Println("[CONFIG] =====================================")
}

func isSensitiveEnvVar(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "key") || strings.Contains(lower, "appid") || strings.Contains(lower, "app_id")
}
