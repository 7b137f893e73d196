// Package eventbus broadcasts committed incident timeline events to subscribers.
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bissquit/ops-triage-hub/internal/domain"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var publishedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "opstriage",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Timeline events published to the message bus",
	},
	[]string{"result"},
)

// Config holds NATS connection settings.
type Config struct {
	URL            string
	Name           string
	SubjectPrefix  string
	ConnectTimeout time.Duration
	ReconnectWait  time.Duration
	MaxReconnects  int
}

// Message is the JSON payload sent for every timeline event.
type Message struct {
	Event    *domain.TimelineEvent `json:"event"`
	Incident *domain.Incident      `json:"incident"`
}

// NATSPublisher publishes timeline events to <prefix>.<event_type>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects to NATS.
func NewNATSPublisher(cfg Config) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.ConnectTimeout),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.MaxReconnects(cfg.MaxReconnects),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	return &NATSPublisher{conn: conn, prefix: normalizePrefix(cfg.SubjectPrefix)}, nil
}

// Publish sends one message per event, in order. Errors are joined.
func (p *NATSPublisher) Publish(_ context.Context, incident *domain.Incident, events []*domain.TimelineEvent) error {
	var errs []error
	for _, e := range events {
		subject, payload, err := encode(p.prefix, incident, e)
		if err == nil {
			err = p.conn.Publish(subject, payload)
		}
		if err != nil {
			publishedTotal.WithLabelValues("error").Inc()
			errs = append(errs, fmt.Errorf("publish %s: %w", subject, err))
			continue
		}
		publishedTotal.WithLabelValues("ok").Inc()
	}
	return errors.Join(errs...)
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}

// NoopPublisher discards events.
type NoopPublisher struct{}

// Publish implements incidents.EventPublisher.
func (NoopPublisher) Publish(context.Context, *domain.Incident, []*domain.TimelineEvent) error {
	return nil
}

// Subject returns the subject an event type is published on.
func Subject(prefix string, eventType domain.TimelineEventType) string {
	return normalizePrefix(prefix) + "." + string(eventType)
}

func encode(prefix string, incident *domain.Incident, e *domain.TimelineEvent) (string, []byte, error) {
	subject := Subject(prefix, e.Type)
	payload, err := json.Marshal(Message{Event: e, Incident: incident})
	if err != nil {
		return subject, nil, fmt.Errorf("encode message: %w", err)
	}
	return subject, payload, nil
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return "opstriage.incidents"
	}
	return prefix
}
