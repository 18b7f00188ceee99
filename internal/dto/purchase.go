package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateTopUpIntentRequest asks for a new pending top-up keyed by a fresh order id.
type CreateTopUpIntentRequest struct {
	Amount decimal.Decimal `json:"amount" binding:"required,amountgtzero"`
}

// TopUpIntentResponse is handed to the gateway's client-side widget. The order
// id is the correlation record the webhook will later resolve.
type TopUpIntentResponse struct {
	OrderID    string          `json:"orderID"`
	MerchantID string          `json:"merchantID"`
	Amount     decimal.Decimal `json:"amount"`
}

// PurchaseResponse reports the listing state and balance after a purchase.
type PurchaseResponse struct {
	ListingID     string          `json:"listingID"`
	IsActive      bool            `json:"isActive"`
	NewBalance    decimal.Decimal `json:"newBalance"`
	BoostUntil    *time.Time      `json:"boostUntil,omitempty"`
	ChargedFee    decimal.Decimal `json:"chargedFee"`
	ReusedWindow  bool            `json:"reusedWindow"`
	LastChargedAt *time.Time      `json:"lastChargedAt,omitempty"`
}

// BalanceResponse is the authoritative balance read backing the session cache.
type BalanceResponse struct {
	AccountID string          `json:"accountID"`
	Balance   decimal.Decimal `json:"balance"`
}
