package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEventType names the billing events published for downstream audit consumers.
type LedgerEventType string

const (
	EventCreditSettled LedgerEventType = "settled"
	EventDebitCharged  LedgerEventType = "charged"
)

// LedgerEvent is the audit record emitted after a committed balance mutation.
type LedgerEvent struct {
	Type          LedgerEventType `json:"type"`
	AccountID     string          `json:"accountID"`
	Amount        decimal.Decimal `json:"amount"`
	CorrelationID string          `json:"correlationID"`
	Kind          ChargeKind      `json:"kind,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}
