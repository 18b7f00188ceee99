package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryMethod tags how a balance mutation originated.
type EntryMethod string

const (
	// MethodGateway marks credits settled by the external payment gateway.
	MethodGateway EntryMethod = "gateway"
	// MethodInternal marks debits applied by this engine (activation, boost, recurring).
	MethodInternal EntryMethod = "internal"
)

// EntryStatus is the lifecycle state of a ledger entry.
type EntryStatus string

const (
	// StatusPending is the initial state of a gateway top-up awaiting settlement.
	StatusPending EntryStatus = "pending"
	// StatusCompleted means the balance mutation has been applied exactly once.
	StatusCompleted EntryStatus = "completed"
	// StatusExpired means a pending entry aged past the expiry window unsettled.
	// A late webhook may still settle an expired entry.
	StatusExpired EntryStatus = "expired"
)

// ChargeKind names the purchase that produced an entry.
type ChargeKind string

const (
	ChargeTopUp      ChargeKind = "topup"
	ChargeActivation ChargeKind = "activation"
	ChargeBoost      ChargeKind = "boost"
	ChargeRecurring  ChargeKind = "recurring"
)

// LedgerEntry is the immutable record of one balance mutation. Positive
// amounts are credits, negative amounts are debits. CorrelationID is globally
// unique and is the idempotency key: a replayed mutation with the same id is a
// no-op, never a double apply.
type LedgerEntry struct {
	EntryID       string          `json:"entryID"`
	AccountID     string          `json:"accountID"`
	Amount        decimal.Decimal `json:"amount"`
	CorrelationID string          `json:"correlationID"`
	Method        EntryMethod     `json:"method"`
	Status        EntryStatus     `json:"status"`
	Kind          ChargeKind      `json:"kind"`

	// Gateway audit metadata, control-flow-inert.
	TxHash     string          `json:"txHash,omitempty"`
	NetworkFee decimal.Decimal `json:"networkFee,omitempty"`
	Asset      string          `json:"asset,omitempty"`

	CreatedAt time.Time  `json:"createdAt"`
	SettledAt *time.Time `json:"settledAt,omitempty"`
}

// CreditSettlement is the outcome of reconciling a gateway webhook against a
// pending entry.
type CreditSettlement struct {
	AccountID      string
	Amount         decimal.Decimal
	NewBalance     decimal.Decimal
	AlreadyApplied bool
	// Unverified is set when no gateway secret is configured and the
	// notification was accepted without a signature check.
	Unverified bool
}

// SettlementAudit carries the gateway's transaction metadata onto the settled
// entry. Stored for operational review only.
type SettlementAudit struct {
	TxHash     string
	NetworkFee decimal.Decimal
	Asset      string
	SettledAt  time.Time
}
