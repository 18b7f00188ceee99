package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/adboard/billing-engine/internal/apperrors"
	"github.com/adboard/billing-engine/internal/core/domain"
	portsrepo "github.com/adboard/billing-engine/internal/core/ports/repositories"
	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/adboard/billing-engine/internal/dto"
	"github.com/adboard/billing-engine/internal/middleware"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BillingPolicy carries the fee amounts and time windows shared by the
// purchase service and the billing scheduler.
type BillingPolicy struct {
	MerchantID         string
	ActivationFee      decimal.Decimal
	BoostFee           decimal.Decimal
	RecurringWindow    time.Duration
	BoostDuration      time.Duration
	PendingEntryExpiry time.Duration
}

// purchaseService implements the synchronous, user-initiated billing flows:
// top-up intents, activation, boost, deactivation.
type purchaseService struct {
	ledgerRepo  portsrepo.LedgerRepositoryFacade
	listingRepo portsrepo.ListingRepositoryFacade
	sessions    portssvc.SessionCache
	events      portssvc.LedgerEventPublisher
	policy      BillingPolicy
	now         func() time.Time
}

// NewPurchaseService creates a new PurchaseService.
func NewPurchaseService(ledgerRepo portsrepo.LedgerRepositoryFacade, listingRepo portsrepo.ListingRepositoryFacade, sessions portssvc.SessionCache, events portssvc.LedgerEventPublisher, policy BillingPolicy) portssvc.PurchaseSvcFacade {
	return &purchaseService{
		ledgerRepo:  ledgerRepo,
		listingRepo: listingRepo,
		sessions:    sessions,
		events:      events,
		policy:      policy,
		now:         time.Now,
	}
}

var _ portssvc.PurchaseSvcFacade = (*purchaseService)(nil)

// CreateTopUpIntent persists a pending gateway entry keyed by a fresh order id
// and returns what the gateway widget needs. The engine never calls the
// gateway here; the webhook resolves the correlation later.
func (s *purchaseService) CreateTopUpIntent(ctx context.Context, accountID string, req dto.CreateTopUpIntentRequest) (*dto.TopUpIntentResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: top-up amount must be positive", apperrors.ErrValidation)
	}
	if _, err := s.purchasingAccount(ctx, accountID); err != nil {
		return nil, err
	}

	orderID := uuid.NewString()
	entry := domain.LedgerEntry{
		EntryID:       uuid.NewString(),
		AccountID:     accountID,
		Amount:        req.Amount,
		CorrelationID: orderID,
		Method:        domain.MethodGateway,
		Status:        domain.StatusPending,
		Kind:          domain.ChargeTopUp,
		CreatedAt:     s.now().UTC(),
	}
	if err := s.ledgerRepo.InsertPendingEntry(ctx, entry); err != nil {
		return nil, err
	}

	logger.Info("Top-up intent created",
		slog.String("order_id", orderID),
		slog.String("amount", req.Amount.String()),
	)
	return &dto.TopUpIntentResponse{
		OrderID:    orderID,
		MerchantID: s.policy.MerchantID,
		Amount:     req.Amount,
	}, nil
}

// GetBalance reads the authoritative balance for an account.
func (s *purchaseService) GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return s.ledgerRepo.GetBalance(ctx, accountID)
}

// ActivateListing activates an inactive owned listing. If a previous charge
// still covers the listing, activation is free; otherwise the activation fee
// is debited atomically with the state change.
func (s *purchaseService) ActivateListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	listing, err := s.ownedListing(ctx, requesterID, listingID)
	if err != nil {
		return nil, err
	}
	if listing.IsActive {
		return nil, fmt.Errorf("%w: listing %s is already active", apperrors.ErrValidation, listingID)
	}
	if _, err := s.purchasingAccount(ctx, requesterID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if listing.WithinPaidWindow(now, s.policy.RecurringWindow) {
		// Toggled off and back on inside the paid period: no second charge.
		if err := s.listingRepo.SetListingActive(ctx, listingID, true, now); err != nil {
			return nil, err
		}
		balance, err := s.ledgerRepo.GetBalance(ctx, requesterID)
		if err != nil {
			return nil, err
		}
		logger.Info("Listing re-activated inside paid window", slog.String("listing_id", listingID))
		return &dto.PurchaseResponse{
			ListingID:     listingID,
			IsActive:      true,
			NewBalance:    balance,
			ChargedFee:    decimal.Zero,
			ReusedWindow:  true,
			LastChargedAt: listing.LastChargedAt,
		}, nil
	}

	correlationID := fmt.Sprintf("activation:%s:%s", listingID, uuid.NewString())
	outcome, err := s.charge(ctx, portsrepo.ChargeListingParams{
		ListingID:      listingID,
		AccountID:      requesterID,
		Fee:            s.policy.ActivationFee,
		CorrelationID:  correlationID,
		Kind:           domain.ChargeActivation,
		Now:            now,
		Activate:       true,
		SetLastCharged: true,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Listing activated",
		slog.String("listing_id", listingID),
		slog.String("fee", s.policy.ActivationFee.String()),
	)
	return &dto.PurchaseResponse{
		ListingID:     listingID,
		IsActive:      true,
		NewBalance:    outcome.NewBalance,
		ChargedFee:    s.policy.ActivationFee,
		LastChargedAt: &now,
	}, nil
}

// BoostListing charges the boost fee on an active owned listing and opens a
// promotional window independent of the activation charge.
func (s *purchaseService) BoostListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	listing, err := s.ownedListing(ctx, requesterID, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.IsActive {
		return nil, fmt.Errorf("%w: listing %s must be active to boost", apperrors.ErrValidation, listingID)
	}
	if _, err := s.purchasingAccount(ctx, requesterID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	boostUntil := now.Add(s.policy.BoostDuration)
	correlationID := fmt.Sprintf("boost:%s:%s", listingID, uuid.NewString())
	outcome, err := s.charge(ctx, portsrepo.ChargeListingParams{
		ListingID:     listingID,
		AccountID:     requesterID,
		Fee:           s.policy.BoostFee,
		CorrelationID: correlationID,
		Kind:          domain.ChargeBoost,
		Now:           now,
		BoostUntil:    &boostUntil,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Listing boosted",
		slog.String("listing_id", listingID),
		slog.Time("boost_until", boostUntil),
	)
	return &dto.PurchaseResponse{
		ListingID:  listingID,
		IsActive:   true,
		NewBalance: outcome.NewBalance,
		ChargedFee: s.policy.BoostFee,
		BoostUntil: &boostUntil,
	}, nil
}

// DeactivateListing turns a listing off. Free: the paid window is preserved so
// re-activation inside it costs nothing.
func (s *purchaseService) DeactivateListing(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error) {
	logger := middleware.GetLoggerFromCtx(ctx)

	listing, err := s.ownedListing(ctx, requesterID, listingID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if err := s.listingRepo.SetListingActive(ctx, listingID, false, now); err != nil {
		return nil, err
	}
	balance, err := s.ledgerRepo.GetBalance(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	logger.Info("Listing deactivated", slog.String("listing_id", listingID))
	return &dto.PurchaseResponse{
		ListingID:     listingID,
		IsActive:      false,
		NewBalance:    balance,
		ChargedFee:    decimal.Zero,
		LastChargedAt: listing.LastChargedAt,
	}, nil
}

// charge runs the shared atomic debit step and translates a balance shortfall
// into the user-facing error that carries the exact balance and fee.
func (s *purchaseService) charge(ctx context.Context, params portsrepo.ChargeListingParams) (*domain.ChargeOutcome, error) {
	outcome, err := s.ledgerRepo.ChargeListing(ctx, params)
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientBalance) {
			balance, balErr := s.ledgerRepo.GetBalance(ctx, params.AccountID)
			if balErr != nil {
				balance = decimal.Zero
			}
			return nil, &apperrors.InsufficientFundsError{Balance: balance, Required: params.Fee}
		}
		return nil, err
	}

	logger := middleware.GetLoggerFromCtx(ctx)
	if err := s.sessions.RefreshBalance(ctx, params.AccountID, outcome.NewBalance); err != nil {
		logger.Error("Failed to refresh session balance cache", slog.String("error", err.Error()))
	}
	if !outcome.AlreadyApplied {
		if err := s.events.Publish(ctx, domain.LedgerEvent{
			Type:          domain.EventDebitCharged,
			AccountID:     params.AccountID,
			Amount:        params.Fee.Neg(),
			CorrelationID: params.CorrelationID,
			Kind:          params.Kind,
			OccurredAt:    params.Now,
		}); err != nil {
			logger.Error("Failed to publish ledger event", slog.String("error", err.Error()))
		}
	}
	return outcome, nil
}

// ownedListing loads a listing and enforces the ownership gate.
func (s *purchaseService) ownedListing(ctx context.Context, requesterID, listingID string) (*domain.Listing, error) {
	listing, err := s.listingRepo.FindListingByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.AccountID != requesterID {
		return nil, fmt.Errorf("%w: listing %s does not belong to the requester", apperrors.ErrForbidden, listingID)
	}
	return listing, nil
}

// purchasingAccount loads an account and enforces the account-kind gate.
func (s *purchaseService) purchasingAccount(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.ledgerRepo.FindAccountByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if !account.CanPurchase() {
		return nil, fmt.Errorf("%w: account kind %s cannot purchase billing actions", apperrors.ErrForbidden, account.Kind)
	}
	return account, nil
}
