package services_test

import (
	"context"
	"time"

	"github.com/adboard/billing-engine/internal/core/domain"
	portsrepo "github.com/adboard/billing-engine/internal/core/ports/repositories"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// --- Mock LedgerRepository ---
type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) FindAccountByID(ctx context.Context, accountID string) (*domain.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) FindEntryByOrderID(ctx context.Context, orderID string) (*domain.LedgerEntry, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.LedgerEntry), args.Error(1)
}

func (m *MockLedgerRepository) InsertPendingEntry(ctx context.Context, entry domain.LedgerEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockLedgerRepository) AtomicAdjustBalance(ctx context.Context, accountID string, delta decimal.Decimal, idempotencyKey string, kind domain.ChargeKind) (decimal.Decimal, bool, error) {
	args := m.Called(ctx, accountID, delta, idempotencyKey, kind)
	return args.Get(0).(decimal.Decimal), args.Bool(1), args.Error(2)
}

func (m *MockLedgerRepository) SettleCredit(ctx context.Context, orderID string, audit domain.SettlementAudit) (*domain.CreditSettlement, error) {
	args := m.Called(ctx, orderID, audit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditSettlement), args.Error(1)
}

func (m *MockLedgerRepository) ChargeListing(ctx context.Context, params portsrepo.ChargeListingParams) (*domain.ChargeOutcome, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeOutcome), args.Error(1)
}

func (m *MockLedgerRepository) ExpirePendingEntries(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// --- Mock ListingRepository ---
type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) FindListingByID(ctx context.Context, listingID string) (*domain.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Listing), args.Error(1)
}

func (m *MockListingRepository) ListActiveListingsDueForCharge(ctx context.Context, cutoff time.Time) ([]domain.Listing, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Listing), args.Error(1)
}

func (m *MockListingRepository) SetListingActive(ctx context.Context, listingID string, active bool, now time.Time) error {
	args := m.Called(ctx, listingID, active, now)
	return args.Error(0)
}

// --- Mock SessionCache ---
type MockSessionCache struct {
	mock.Mock
}

func (m *MockSessionCache) RefreshBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	args := m.Called(ctx, accountID, balance)
	return args.Error(0)
}

// --- Mock LedgerEventPublisher ---
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, event domain.LedgerEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
