package fetch

import (
	"fmt"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"

	"github.com/sony/gobreaker/v2"
)

// SourceBreaker wraps job source page requests with the circuit breaker pattern
type SourceBreaker struct {
	cb *gobreaker.CircuitBreaker[[]byte]
}

// NewSourceBreaker creates a breaker for the named source. It returns nil when disabled.
func NewSourceBreaker(source string, cfg config.CircuitBreakerConfig, logger *errors.Logger) *SourceBreaker {
	if !cfg.Enabled {
		return nil
	}

	settings := gobreaker.Settings{
		Name:        fmt.Sprintf("Source-%s", source),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests == 0 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests &&
				failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Info("Circuit breaker state changed",
				"name", name,
				"source", source,
				"from", from.String(),
				"to", to.String(),
				"max_requests", cfg.MaxRequests,
				"failure_threshold", cfg.FailureThreshold)
		},
	}

	return &SourceBreaker{
		cb: gobreaker.NewCircuitBreaker[[]byte](settings),
	}
}

// Execute executes fn with circuit breaker protection
func (b *SourceBreaker) Execute(fn func() ([]byte, error)) ([]byte, error) {
	if b == nil || b.cb == nil {
		return fn()
	}
	return b.cb.Execute(fn)
}

// GetStats returns circuit breaker statistics
func (b *SourceBreaker) GetStats() map[string]any {
	if b == nil || b.cb == nil {
		return map[string]any{
			"enabled": false,
		}
	}

	return map[string]any{
		"name":    b.cb.Name(),
		"state":   b.cb.State().String(),
		"counts":  b.cb.Counts(),
		"enabled": true,
	}
}

// IsHealthy returns true if the circuit breaker is in closed state
func (b *SourceBreaker) IsHealthy() bool {
	if b == nil || b.cb == nil {
		return true
	}
	return b.cb.State() == gobreaker.StateClosed
}
