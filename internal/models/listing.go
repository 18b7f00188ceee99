package models

import "time"

// Listing represents a billable listing as stored in the listings table.
// last_charged_at anchors the recurring window; boost_until is the
// independent promotional window.
type Listing struct {
	ListingID     string     `db:"listing_id"`
	AccountID     string     `db:"account_id"`
	IsActive      bool       `db:"is_active"`
	LastChargedAt *time.Time `db:"last_charged_at"`
	BoostUntil    *time.Time `db:"boost_until"`
	CreatedAt     time.Time  `db:"created_at"`
	LastUpdatedAt time.Time  `db:"last_updated_at"`
}
