package dto

import "time"

// BillingRunSummary is the per-batch outcome of one scheduler trigger.
// One listing's failure never fails the batch; it is counted here instead.
type BillingRunSummary struct {
	Charged   int       `json:"charged"`
	Skipped   int       `json:"skipped"`
	Errors    int       `json:"errors"`
	Expired   int64     `json:"expired"`
	CheckedAt time.Time `json:"checkedAt"`
}
