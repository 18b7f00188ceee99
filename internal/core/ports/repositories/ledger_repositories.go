package repositories

import (
	"context"
	"time"

	"github.com/adboard/billing-engine/internal/core/domain"
	"github.com/shopspring/decimal"
)

// ChargeListingParams describes one atomic debit-and-state-change: conditional
// balance decrement, completed internal ledger entry, and listing update in a
// single transaction.
type ChargeListingParams struct {
	ListingID     string
	AccountID     string
	Fee           decimal.Decimal
	CorrelationID string
	Kind          domain.ChargeKind
	Now           time.Time

	// Listing state to apply with the debit.
	Activate       bool
	SetLastCharged bool
	BoostUntil     *time.Time
}

// LedgerReader defines read operations against the ledger store.
type LedgerReader interface {
	// FindAccountByID retrieves an account by its unique identifier.
	FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error)

	// GetBalance reads the current balance of an account.
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)

	// FindEntryByOrderID retrieves a ledger entry by its external correlation id.
	FindEntryByOrderID(ctx context.Context, orderID string) (*domain.LedgerEntry, error)
}

// LedgerWriter defines the balance-mutating primitives. Each of these is
// executed as one store transaction; nothing upstream may split them into a
// read-then-write pair.
type LedgerWriter interface {
	// InsertPendingEntry persists a new pending gateway entry keyed by its
	// correlation id. A duplicate id yields apperrors.ErrDuplicate.
	InsertPendingEntry(ctx context.Context, entry domain.LedgerEntry) error

	// AtomicAdjustBalance applies delta to the account balance together with a
	// completed ledger entry keyed by idempotencyKey, in one transaction. A
	// duplicate key is a safe no-op reported as applied=false. A debit that
	// would take the balance negative fails with apperrors.ErrInsufficientBalance
	// instead of going below zero.
	AtomicAdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal, idempotencyKey string, kind domain.ChargeKind) (newBalance decimal.Decimal, applied bool, err error)

	// SettleCredit transitions the entry identified by orderID from
	// pending/expired to completed and increments the account balance by the
	// entry's amount, in one transaction. An already-completed entry is an
	// idempotent no-op reported via CreditSettlement.AlreadyApplied.
	SettleCredit(ctx context.Context, orderID string, audit domain.SettlementAudit) (*domain.CreditSettlement, error)

	// ChargeListing debits the fee and applies the listing state change
	// atomically; see ChargeListingParams.
	ChargeListing(ctx context.Context, params ChargeListingParams) (*domain.ChargeOutcome, error)

	// ExpirePendingEntries flips pending entries created before cutoff to
	// expired and reports how many were swept.
	ExpirePendingEntries(ctx context.Context, cutoff time.Time) (int64, error)
}

// LedgerRepositoryFacade combines all ledger store operations.
type LedgerRepositoryFacade interface {
	LedgerReader
	LedgerWriter
}
