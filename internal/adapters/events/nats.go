package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/adboard/billing-engine/internal/core/domain"
	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/nats-io/nats.go"
)

// subjectPrefix namespaces billing audit events on the bus.
const subjectPrefix = "billing.ledger."

// NATSPublisher emits ledger audit events for downstream consumers. Publishing
// is fire-and-forget: a committed balance mutation is never rolled back
// because the bus was unavailable.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the bus at the given URL.
func NewNATSPublisher(natsURL string) (*NATSPublisher, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

var _ portssvc.LedgerEventPublisher = (*NATSPublisher)(nil)

// Publish sends the event on billing.ledger.<type>.
func (p *NATSPublisher) Publish(_ context.Context, event domain.LedgerEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to serialize ledger event: %w", err)
	}
	if err := p.conn.Publish(subjectPrefix+string(event.Type), payload); err != nil {
		return fmt.Errorf("failed to publish ledger event: %w", err)
	}
	return nil
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	_ = p.conn.Drain()
}

// NoopPublisher is used when no event bus is configured.
type NoopPublisher struct{}

var _ portssvc.LedgerEventPublisher = (*NoopPublisher)(nil)

func (NoopPublisher) Publish(context.Context, domain.LedgerEvent) error {
	return nil
}
