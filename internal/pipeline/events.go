package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"skillpulse/internal/config"
	"skillpulse/internal/errors"
	"skillpulse/internal/types"
)

const (
	// DefaultSubject carries one message per finished stage
	DefaultSubject = "skillpulse.stage.completed"
	connectTimeout = 10 * time.Second
)

// StageEvent is published after every stage
type StageEvent struct {
	RunID string `json:"run_id"`
	types.StageResult
}

// Publisher announces finished stages
type Publisher interface {
	Publish(ctx context.Context, event StageEvent) error
	Close() error
}

// NATSPublisher publishes stage events as JSON on a NATS subject
type NATSPublisher struct {
	nc      *nats.Conn
	subject string
	logger  *errors.Logger
}

// NewNATSPublisher connects to NATS. It returns nil when publication is disabled.
func NewNATSPublisher(cfg config.NATSConfig, logger *errors.Logger) (*NATSPublisher, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	opts := []nats.Option{
		nats.Name("skillpulse"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(3),
	}
	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, errors.NewNetworkError("NATS_CONNECT_FAILED", fmt.Sprintf("connecting to NATS at %s", cfg.URL), err)
	}

	subject := cfg.Subject
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{nc: nc, subject: subject, logger: logger}, nil
}

func (p *NATSPublisher) Publish(_ context.Context, event StageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.NewInternalError("EVENT_ENCODE_FAILED", "marshaling stage event", err)
	}
	if err := p.nc.Publish(p.subject, data); err != nil {
		return errors.NewNetworkError("EVENT_PUBLISH_FAILED", "publishing stage event", err).
			WithContext("subject", p.subject)
	}
	if p.logger != nil {
		p.logger.Debug("Published stage event", "subject", p.subject, "stage", event.Stage, "status", event.Status)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if p.nc == nil {
		return nil
	}
	err := p.nc.FlushTimeout(connectTimeout)
	p.nc.Close()
	return err
}
