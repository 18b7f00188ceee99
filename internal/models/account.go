package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind mirrors domain.AccountKind at the storage layer.
type AccountKind string

// Account represents a balance-holding party as stored in the accounts table.
type Account struct {
	AccountID     string          `db:"account_id"`
	Kind          AccountKind     `db:"kind"`
	Balance       decimal.Decimal `db:"balance"`
	CreatedAt     time.Time       `db:"created_at"`
	LastUpdatedAt time.Time       `db:"last_updated_at"`
}
