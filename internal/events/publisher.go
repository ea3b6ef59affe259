package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

const DefaultSubject = "tictactoe.match.ended"

type Publisher interface {
	Publish(ctx context.Context, result entity.MatchResult) error
	Close()
}

// NATSPublisher sends finished match results to a NATS subject as JSON.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(url, subject string) (*NATSPublisher, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("tictactoe-server"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	return &NATSPublisher{
		conn:    conn,
		subject: subject,
	}, nil
}

func (that *NATSPublisher) Publish(ctx context.Context, result entity.MatchResult) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("publish cancelled: %w", err)
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal match result: %w", err)
	}

	if err = that.conn.Publish(that.subject, data); err != nil {
		return fmt.Errorf("failed to publish match result: %w", err)
	}

	return nil
}

// Close flushes pending messages before closing the connection.
func (that *NATSPublisher) Close() {
	_ = that.conn.Drain()
}

// NoopPublisher is used when NATS is not configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, entity.MatchResult) error {
	return nil
}

func (NoopPublisher) Close() {}
