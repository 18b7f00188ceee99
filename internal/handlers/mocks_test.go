package handlers_test

import (
	"context"

	"github.com/adboard/billing-engine/internal/core/domain"
	"github.com/adboard/billing-engine/internal/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
)

// --- Mock ReconciliationService ---
type MockReconciliationService struct {
	mock.Mock
}

func (m *MockReconciliationService) Reconcile(ctx context.Context, rawBody []byte, signature string, sourceAddr string) (*domain.CreditSettlement, error) {
	args := m.Called(ctx, rawBody, signature, sourceAddr)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditSettlement), args.Error(1)
}

var _ portssvc.ReconciliationSvcFacade = (*MockReconciliationService)(nil)

// --- Mock PurchaseService ---
type MockPurchaseService struct {
	mock.Mock
}

func (m *MockPurchaseService) CreateTopUpIntent(ctx context.Context, accountID string, req dto.CreateTopUpIntentRequest) (*dto.TopUpIntentResponse, error) {
	args := m.Called(ctx, accountID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.TopUpIntentResponse), args.Error(1)
}

func (m *MockPurchaseService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockPurchaseService) ActivateListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error) {
	args := m.Called(ctx, requesterID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.PurchaseResponse), args.Error(1)
}

func (m *MockPurchaseService) BoostListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error) {
	args := m.Called(ctx, requesterID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.PurchaseResponse), args.Error(1)
}

func (m *MockPurchaseService) DeactivateListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error) {
	args := m.Called(ctx, requesterID, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.PurchaseResponse), args.Error(1)
}

var _ portssvc.PurchaseSvcFacade = (*MockPurchaseService)(nil)

// --- Mock BillingRunService ---
type MockBillingRunService struct {
	mock.Mock
}

func (m *MockBillingRunService) Run(ctx context.Context) (*dto.BillingRunSummary, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.BillingRunSummary), args.Error(1)
}

var _ portssvc.BillingRunSvcFacade = (*MockBillingRunService)(nil)
