package services

import (
	"context"

	"github.com/adboard/billing-engine/internal/core/domain"
	"github.com/adboard/billing-engine/internal/dto"
	"github.com/shopspring/decimal"
)

// ReconciliationSvcFacade accepts inbound payment-gateway notifications and
// applies the credit exactly once.
type ReconciliationSvcFacade interface {
	// Reconcile verifies authenticity over the exact transport-layer bytes,
	// correlates the claimed order id to a pending entry, and settles it
	// idempotently. sourceAddr is logged on rejection for operational review.
	Reconcile(ctx context.Context, rawBody []byte, signature string, sourceAddr string) (*domain.CreditSettlement, error)
}

// PurchaseSvcFacade covers user-initiated billing actions.
type PurchaseSvcFacade interface {
	// CreateTopUpIntent prepares the correlation record a later webhook will
	// resolve and returns what the gateway widget needs.
	CreateTopUpIntent(ctx context.Context, accountID string, req dto.CreateTopUpIntentRequest) (*dto.TopUpIntentResponse, error)

	// GetBalance reads the requester's authoritative balance.
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)

	// ActivateListing charges the activation fee and activates the listing, or
	// re-activates for free inside a still-valid paid window.
	ActivateListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error)

	// BoostListing charges the boost fee and opens a promotional window.
	BoostListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error)

	// DeactivateListing turns a listing off without charging or refunding.
	DeactivateListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error)
}

// BillingRunSvcFacade is the scheduler entry point invoked by an external
// time-based trigger.
type BillingRunSvcFacade interface {
	Run(ctx context.Context) (*dto.BillingRunSummary, error)
}

// SessionCache reflects a committed balance into whatever session snapshot the
// outer application keeps. Contract: given {accountID, newBalance}, it must be
// visible the next time the account's session is read.
type SessionCache interface {
	RefreshBalance(ctx context.Context, accountID string, balance decimal.Decimal) error
}

// LedgerEventPublisher emits audit events for committed balance mutations.
type LedgerEventPublisher interface {
	Publish(ctx context.Context, event domain.LedgerEvent) error
}

// ServiceContainer groups the billing service facades for route registration.
type ServiceContainer struct {
	Reconciliation ReconciliationSvcFacade
	Purchase       PurchaseSvcFacade
	BillingRun     BillingRunSvcFacade
}
