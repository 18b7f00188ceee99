package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerEntry represents one balance mutation as stored in the ledger_entries
// table. correlation_id carries a unique index; it is the idempotency key.
type LedgerEntry struct {
	EntryID       string          `db:"entry_id"`
	AccountID     string          `db:"account_id"`
	Amount        decimal.Decimal `db:"amount"`
	CorrelationID string          `db:"correlation_id"`
	Method        string          `db:"method"`
	Status        string          `db:"status"`
	Kind          string          `db:"kind"`
	TxHash        string          `db:"tx_hash"`
	NetworkFee    decimal.Decimal `db:"network_fee"`
	Asset         string          `db:"asset"`
	CreatedAt     time.Time       `db:"created_at"`
	SettledAt     *time.Time      `db:"settled_at"`
}
