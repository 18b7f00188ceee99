package services_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"testing"

	"github.com/adboard/billing-engine/internal/apperrors"
	"github.com/adboard/billing-engine/internal/core/domain"
	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/adboard/billing-engine/internal/core/services"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

const (
	testMerchantID    = "merchant-001"
	testWebhookSecret = "test-webhook-secret"
)

func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// --- Test Suite ---
type ReconciliationServiceTestSuite struct {
	suite.Suite
	mockLedgerRepo *MockLedgerRepository
	mockSessions   *MockSessionCache
	mockEvents     *MockEventPublisher
	service        portssvc.ReconciliationSvcFacade
}

func (suite *ReconciliationServiceTestSuite) SetupTest() {
	suite.mockLedgerRepo = new(MockLedgerRepository)
	suite.mockSessions = new(MockSessionCache)
	suite.mockEvents = new(MockEventPublisher)
	suite.service = services.NewReconciliationService(suite.mockLedgerRepo, suite.mockSessions, suite.mockEvents, testMerchantID, testWebhookSecret)
}

// --- Test Cases ---

func (suite *ReconciliationServiceTestSuite) TestReconcile_Success() {
	ctx := context.Background()
	orderID := uuid.NewString()
	accountID := uuid.NewString()
	body := []byte(fmt.Sprintf(`{"order_id":%q,"status":100,"amount":"25.00","merchant_id":%q,"txid":"0xabc"}`, orderID, testMerchantID))

	pending := &domain.LedgerEntry{
		CorrelationID: orderID,
		AccountID:     accountID,
		Amount:        decimal.RequireFromString("25.00"),
		Status:        domain.StatusPending,
	}
	settlement := &domain.CreditSettlement{
		AccountID:  accountID,
		Amount:     pending.Amount,
		NewBalance: decimal.RequireFromString("25.00"),
	}

	suite.mockLedgerRepo.On("FindEntryByOrderID", ctx, orderID).Return(pending, nil).Once()
	suite.mockLedgerRepo.On("SettleCredit", ctx, orderID, mock.MatchedBy(func(a domain.SettlementAudit) bool {
		return a.TxHash == "0xabc"
	})).Return(settlement, nil).Once()
	suite.mockSessions.On("RefreshBalance", ctx, accountID, settlement.NewBalance).Return(nil).Once()
	suite.mockEvents.On("Publish", ctx, mock.MatchedBy(func(e domain.LedgerEvent) bool {
		return e.Type == domain.EventCreditSettled && e.CorrelationID == orderID && e.Amount.Equal(pending.Amount)
	})).Return(nil).Once()

	result, err := suite.service.Reconcile(ctx, body, signPayload(body, testWebhookSecret), "203.0.113.7")

	suite.Require().NoError(err)
	suite.Require().NotNil(result)
	suite.Equal(accountID, result.AccountID)
	suite.False(result.AlreadyApplied)
	suite.False(result.Unverified)
	suite.mockLedgerRepo.AssertExpectations(suite.T())
	suite.mockSessions.AssertExpectations(suite.T())
	suite.mockEvents.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_TamperedBody() {
	ctx := context.Background()
	body := []byte(`{"order_id":"ord-1","status":100,"amount":"25.00"}`)
	signature := signPayload(body, testWebhookSecret)

	// Flip one byte after signing.
	tampered := append([]byte(nil), body...)
	tampered[len(tampered)-3] = '9'

	result, err := suite.service.Reconcile(ctx, tampered, signature, "203.0.113.7")

	suite.Require().Error(err)
	suite.Nil(result)
	suite.ErrorIs(err, apperrors.ErrUnauthenticated)
	suite.mockLedgerRepo.AssertNotCalled(suite.T(), "SettleCredit", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_MissingSignature() {
	ctx := context.Background()
	body := []byte(`{"order_id":"ord-1","status":100}`)

	result, err := suite.service.Reconcile(ctx, body, "", "203.0.113.7")

	suite.Require().Error(err)
	suite.Nil(result)
	suite.ErrorIs(err, apperrors.ErrUnauthenticated)
	suite.mockLedgerRepo.AssertNotCalled(suite.T(), "FindEntryByOrderID", mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_MalformedPayload() {
	ctx := context.Background()
	body := []byte(`not json at all`)

	result, err := suite.service.Reconcile(ctx, body, signPayload(body, testWebhookSecret), "203.0.113.7")

	suite.Require().Error(err)
	suite.Nil(result)
	suite.ErrorIs(err, apperrors.ErrValidation)
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_UnknownOrder() {
	ctx := context.Background()
	body := []byte(`{"order_id":"ord-unknown","status":100}`)

	suite.mockLedgerRepo.On("FindEntryByOrderID", ctx, "ord-unknown").Return(nil, apperrors.ErrNotFound).Once()

	result, err := suite.service.Reconcile(ctx, body, signPayload(body, testWebhookSecret), "203.0.113.7")

	suite.Require().Error(err)
	suite.Nil(result)
	suite.ErrorIs(err, apperrors.ErrNotFound)
	suite.mockLedgerRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_MerchantMismatch() {
	ctx := context.Background()
	orderID := uuid.NewString()
	body := []byte(fmt.Sprintf(`{"order_id":%q,"status":100,"merchant_id":"someone-else"}`, orderID))

	pending := &domain.LedgerEntry{CorrelationID: orderID, Amount: decimal.RequireFromString("10.00")}
	suite.mockLedgerRepo.On("FindEntryByOrderID", ctx, orderID).Return(pending, nil).Once()

	result, err := suite.service.Reconcile(ctx, body, signPayload(body, testWebhookSecret), "203.0.113.7")

	suite.Require().Error(err)
	suite.Nil(result)
	suite.ErrorIs(err, apperrors.ErrForbidden)
	suite.mockLedgerRepo.AssertNotCalled(suite.T(), "SettleCredit", mock.Anything, mock.Anything, mock.Anything)
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_DuplicateDelivery() {
	ctx := context.Background()
	orderID := uuid.NewString()
	accountID := uuid.NewString()
	body := []byte(fmt.Sprintf(`{"order_id":%q,"status":100,"merchant_id":%q}`, orderID, testMerchantID))

	entry := &domain.LedgerEntry{CorrelationID: orderID, AccountID: accountID, Amount: decimal.RequireFromString("25.00")}
	settlement := &domain.CreditSettlement{
		AccountID:      accountID,
		Amount:         entry.Amount,
		NewBalance:     decimal.RequireFromString("25.00"),
		AlreadyApplied: true,
	}

	suite.mockLedgerRepo.On("FindEntryByOrderID", ctx, orderID).Return(entry, nil).Once()
	suite.mockLedgerRepo.On("SettleCredit", ctx, orderID, mock.AnythingOfType("domain.SettlementAudit")).Return(settlement, nil).Once()

	result, err := suite.service.Reconcile(ctx, body, signPayload(body, testWebhookSecret), "203.0.113.7")

	suite.Require().NoError(err)
	suite.Require().NotNil(result)
	suite.True(result.AlreadyApplied)
	suite.mockSessions.AssertNotCalled(suite.T(), "RefreshBalance", mock.Anything, mock.Anything, mock.Anything)
	suite.mockEvents.AssertNotCalled(suite.T(), "Publish", mock.Anything, mock.Anything)
	suite.mockLedgerRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_UnexpectedStatusStillSettles() {
	ctx := context.Background()
	orderID := uuid.NewString()
	accountID := uuid.NewString()
	body := []byte(fmt.Sprintf(`{"order_id":%q,"status":42,"merchant_id":%q}`, orderID, testMerchantID))

	entry := &domain.LedgerEntry{CorrelationID: orderID, AccountID: accountID, Amount: decimal.RequireFromString("5.00")}
	settlement := &domain.CreditSettlement{AccountID: accountID, Amount: entry.Amount, NewBalance: decimal.RequireFromString("5.00")}

	suite.mockLedgerRepo.On("FindEntryByOrderID", ctx, orderID).Return(entry, nil).Once()
	suite.mockLedgerRepo.On("SettleCredit", ctx, orderID, mock.AnythingOfType("domain.SettlementAudit")).Return(settlement, nil).Once()
	suite.mockSessions.On("RefreshBalance", ctx, accountID, settlement.NewBalance).Return(nil).Once()
	suite.mockEvents.On("Publish", ctx, mock.AnythingOfType("domain.LedgerEvent")).Return(nil).Once()

	result, err := suite.service.Reconcile(ctx, body, signPayload(body, testWebhookSecret), "203.0.113.7")

	suite.Require().NoError(err)
	suite.Require().NotNil(result)
	suite.False(result.AlreadyApplied)
	suite.mockLedgerRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_NoSecretAcceptsUnverified() {
	ctx := context.Background()
	orderID := uuid.NewString()
	accountID := uuid.NewString()
	body := []byte(fmt.Sprintf(`{"order_id":%q,"status":100,"merchant_id":%q}`, orderID, testMerchantID))

	unverifiedSvc := services.NewReconciliationService(suite.mockLedgerRepo, suite.mockSessions, suite.mockEvents, testMerchantID, "")

	entry := &domain.LedgerEntry{CorrelationID: orderID, AccountID: accountID, Amount: decimal.RequireFromString("3.00")}
	settlement := &domain.CreditSettlement{AccountID: accountID, Amount: entry.Amount, NewBalance: decimal.RequireFromString("3.00")}

	suite.mockLedgerRepo.On("FindEntryByOrderID", ctx, orderID).Return(entry, nil).Once()
	suite.mockLedgerRepo.On("SettleCredit", ctx, orderID, mock.AnythingOfType("domain.SettlementAudit")).Return(settlement, nil).Once()
	suite.mockSessions.On("RefreshBalance", ctx, accountID, settlement.NewBalance).Return(nil).Once()
	suite.mockEvents.On("Publish", ctx, mock.AnythingOfType("domain.LedgerEvent")).Return(nil).Once()

	result, err := unverifiedSvc.Reconcile(ctx, body, "", "203.0.113.7")

	suite.Require().NoError(err)
	suite.Require().NotNil(result)
	suite.True(result.Unverified)
	suite.mockLedgerRepo.AssertExpectations(suite.T())
}

func (suite *ReconciliationServiceTestSuite) TestReconcile_CacheFailureDoesNotFailSettlement() {
	ctx := context.Background()
	orderID := uuid.NewString()
	accountID := uuid.NewString()
	body := []byte(fmt.Sprintf(`{"order_id":%q,"status":100,"merchant_id":%q}`, orderID, testMerchantID))

	entry := &domain.LedgerEntry{CorrelationID: orderID, AccountID: accountID, Amount: decimal.RequireFromString("8.00")}
	settlement := &domain.CreditSettlement{AccountID: accountID, Amount: entry.Amount, NewBalance: decimal.RequireFromString("8.00")}

	suite.mockLedgerRepo.On("FindEntryByOrderID", ctx, orderID).Return(entry, nil).Once()
	suite.mockLedgerRepo.On("SettleCredit", ctx, orderID, mock.AnythingOfType("domain.SettlementAudit")).Return(settlement, nil).Once()
	suite.mockSessions.On("RefreshBalance", ctx, accountID, settlement.NewBalance).Return(fmt.Errorf("redis down")).Once()
	suite.mockEvents.On("Publish", ctx, mock.AnythingOfType("domain.LedgerEvent")).Return(nil).Once()

	result, err := suite.service.Reconcile(ctx, body, signPayload(body, testWebhookSecret), "203.0.113.7")

	suite.Require().NoError(err)
	suite.Require().NotNil(result)
	suite.mockSessions.AssertExpectations(suite.T())
}

// --- Run Suite ---
func TestReconciliationService(t *testing.T) {
	suite.Run(t, new(ReconciliationServiceTestSuite))
}
