// Package events publishes domain events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/hlin/internal/domain"
	"github.com/nats-io/nats.go"
)

// msgPublisher is the subset of *nats.Conn used for publishing.
type msgPublisher interface {
	PublishMsg(m *nats.Msg) error
}

// NATSPublisher publishes events as JSON messages.
type NATSPublisher struct {
	conn   msgPublisher
	logger *slog.Logger
}

var _ domain.EventPublisher = (*NATSPublisher)(nil)

// Connect dials NATS with reconnects enabled.
func Connect(url string, logger *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("hlin"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return conn, nil
}

func NewNATSPublisher(conn msgPublisher, logger *slog.Logger) *NATSPublisher {
	return &NATSPublisher{conn: conn, logger: logger}
}

func (p *NATSPublisher) PublishOrderCreated(ctx context.Context, event domain.OrderCreatedEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal order created event: %w", err)
	}

	msg := nats.NewMsg(domain.SubjectOrderCreated)
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, event.PaymentAuthorizationID)
	if reqID := domain.RequestIDFromContext(ctx); reqID != "" {
		msg.Header.Set("X-Request-ID", reqID)
	}

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", domain.SubjectOrderCreated, err)
	}

	p.logger.Debug("event published",
		"subject", domain.SubjectOrderCreated,
		"order_id", event.OrderID,
	)
	return nil
}

// LogPublisher logs events instead of sending them. Used when NATS is not configured.
type LogPublisher struct {
	logger *slog.Logger
}

var _ domain.EventPublisher = (*LogPublisher)(nil)

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishOrderCreated(_ context.Context, event domain.OrderCreatedEvent) error {
	p.logger.Info("order created",
		"order_id", event.OrderID,
		"owner_id", event.OwnerID,
		"total", event.TotalAmount.StringFixed(2),
		"currency", event.Currency,
	)
	return nil
}
