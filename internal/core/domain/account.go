package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountKind defines what a party is allowed to do with its balance.
type AccountKind string

const (
	// ListingOwner is the only kind permitted to hold balance and purchase billing actions.
	ListingOwner AccountKind = "listing_owner"
	// Visitor accounts exist for identity only and never hold balance.
	Visitor AccountKind = "visitor"
)

// Account represents a party that can hold a balance.
//
// Invariant: Balance is never mutated outside a ledger entry; every mutation
// has a corresponding entry keyed by a unique correlation id.
type Account struct {
	AccountID     string          `json:"accountID"`
	Kind          AccountKind     `json:"kind"`
	Balance       decimal.Decimal `json:"balance"`
	CreatedAt     time.Time       `json:"createdAt"`
	LastUpdatedAt time.Time       `json:"lastUpdatedAt"`
}

// CanPurchase reports whether this account kind may spend balance.
func (a Account) CanPurchase() bool {
	return a.Kind == ListingOwner
}
