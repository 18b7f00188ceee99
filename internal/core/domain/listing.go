package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Listing is the billable resource.
//
// Invariants: an active listing has been charged, or sits inside a still-valid
// recurring window anchored at LastChargedAt; BoostUntil, when set, is always
// the result of a completed debit.
type Listing struct {
	ListingID     string     `json:"listingID"`
	AccountID     string     `json:"accountID"`
	IsActive      bool       `json:"isActive"`
	LastChargedAt *time.Time `json:"lastChargedAt,omitempty"`
	BoostUntil    *time.Time `json:"boostUntil,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastUpdatedAt time.Time  `json:"lastUpdatedAt"`
}

// WithinPaidWindow reports whether a previous charge still covers the listing
// at the given instant. Used to re-activate for free instead of double-billing
// a listing toggled off and back on inside its paid period.
func (l Listing) WithinPaidWindow(now time.Time, window time.Duration) bool {
	return l.LastChargedAt != nil && now.Sub(*l.LastChargedAt) < window
}

// ChargeOutcome is the result of one atomic debit-and-state-change.
type ChargeOutcome struct {
	NewBalance     decimal.Decimal
	AlreadyApplied bool
}
