// Package events announces dataset lifecycle changes on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/weiwangfds/datashare/config"
	"github.com/weiwangfds/datashare/internal/logger"
)

// Event types, appended to the subject prefix
const (
	TypeCreated    = "created"
	TypeUpdated    = "updated"
	TypeDeleted    = "deleted"
	TypeDownloaded = "downloaded"
)

// Event dataset notification payload
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	DatasetID  string    `json:"datasetId"`
	UserID     string    `json:"userId,omitempty"`
	Size       int64     `json:"size,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewEvent stamps an event with a fresh id and the current time
func NewEvent(eventType, datasetID, userID string, size int64) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		DatasetID:  datasetID,
		UserID:     userID,
		Size:       size,
		OccurredAt: time.Now().UTC(),
	}
}

// Publisher delivers events
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// New connects to cfg.NATSURL, or returns a no-op publisher when it is empty
func New(cfg config.EventsConfig) (Publisher, error) {
	if cfg.NATSURL == "" {
		return Noop{}, nil
	}
	return NewNATSPublisher(cfg.NATSURL, cfg.SubjectPrefix)
}

// NATSPublisher core NATS publisher
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

// NewNATSPublisher connects with unlimited reconnects
func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("datashare"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warnf("nats disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Infof("nats reconnected to %s", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Infof("connected to nats at %s", conn.ConnectedUrl())
	return &NATSPublisher{conn: conn, prefix: strings.Trim(prefix, ".")}, nil
}

// Subject subject an event type is published on
func (p *NATSPublisher) Subject(eventType string) string {
	return Subject(p.prefix, eventType)
}

// Publish encodes event as JSON and publishes it
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.conn.Publish(p.Subject(event.Type), data)
}

// Close flushes pending messages and closes the connection
func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

// Subject joins prefix and event type with a dot
func Subject(prefix, eventType string) string {
	if prefix == "" {
		return eventType
	}
	return prefix + "." + eventType
}

// Noop discards events
type Noop struct{}

// Publish does nothing
func (Noop) Publish(context.Context, Event) error { return nil }

// Close does nothing
func (Noop) Close() error { return nil }
