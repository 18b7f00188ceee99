package dto

import "github.com/shopspring/decimal"

// GatewayStatusConfirmed is the gateway's "confirmed on-chain" status code,
// the only code documented to trigger a webhook delivery at all.
const GatewayStatusConfirmed = 100

// GatewayWebhookPayload is the gateway-defined JSON body of a payment
// notification. It is parsed only after the signature over the raw bytes has
// been verified; the raw bytes, not this structure, are what the HMAC covers.
type GatewayWebhookPayload struct {
	OrderID    string          `json:"order_id"`
	Status     int             `json:"status"`
	Amount     decimal.Decimal `json:"amount"`
	MerchantID string          `json:"merchant_id,omitempty"`

	// Audit-only metadata, never used in control flow.
	TxHash     string          `json:"txid,omitempty"`
	NetworkFee decimal.Decimal `json:"network_fee,omitempty"`
	Asset      string          `json:"currency,omitempty"`
}

// WebhookResponse acknowledges an accepted notification, including the
// idempotent-duplicate case.
type WebhookResponse struct {
	Status         string `json:"status"`
	AlreadyApplied bool   `json:"alreadyApplied"`
}
