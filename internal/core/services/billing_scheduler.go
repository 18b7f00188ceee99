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
)

// billingScheduler enforces the recurring-fee invariant for every active
// listing on each external trigger, and sweeps stale pending entries.
//
// Overlapping trigger firings are safe: the charge idempotency key is derived
// from the listing's current window anchor, so the loser of a concurrent run
// lands on a duplicate no-op at the store.
type billingScheduler struct {
	ledgerRepo  portsrepo.LedgerRepositoryFacade
	listingRepo portsrepo.ListingRepositoryFacade
	sessions    portssvc.SessionCache
	events      portssvc.LedgerEventPublisher
	policy      BillingPolicy
	now         func() time.Time
}

// NewBillingScheduler creates a new BillingScheduler.
func NewBillingScheduler(ledgerRepo portsrepo.LedgerRepositoryFacade, listingRepo portsrepo.ListingRepositoryFacade, sessions portssvc.SessionCache, events portssvc.LedgerEventPublisher, policy BillingPolicy) portssvc.BillingRunSvcFacade {
	return &billingScheduler{
		ledgerRepo:  ledgerRepo,
		listingRepo: listingRepo,
		sessions:    sessions,
		events:      events,
		policy:      policy,
		now:         time.Now,
	}
}

var _ portssvc.BillingRunSvcFacade = (*billingScheduler)(nil)

// Run charges every listing whose recurring window has elapsed, isolating
// per-listing failures, then expires stale pending entries.
func (s *billingScheduler) Run(ctx context.Context) (*dto.BillingRunSummary, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	now := s.now().UTC()
	summary := &dto.BillingRunSummary{CheckedAt: now}

	cutoff := now.Add(-s.policy.RecurringWindow)
	due, err := s.listingRepo.ListActiveListingsDueForCharge(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to select listings due for charge: %w", err)
	}

	for _, listing := range due {
		switch outcome := s.chargeListing(ctx, listing, now); outcome {
		case chargeApplied:
			summary.Charged++
		case chargeSkipped:
			summary.Skipped++
		case chargeFailed:
			summary.Errors++
		}
	}

	expired, err := s.ledgerRepo.ExpirePendingEntries(ctx, now.Add(-s.policy.PendingEntryExpiry))
	if err != nil {
		logger.Error("Failed to expire stale pending entries", slog.String("error", err.Error()))
		summary.Errors++
	} else {
		summary.Expired = expired
	}

	logger.Info("Billing run completed",
		slog.Int("charged", summary.Charged),
		slog.Int("skipped", summary.Skipped),
		slog.Int("errors", summary.Errors),
		slog.Int64("expired", summary.Expired),
	)
	return summary, nil
}

type chargeResult int

const (
	chargeApplied chargeResult = iota
	chargeSkipped
	chargeFailed
)

// chargeListing attempts one listing's recurring debit. Insufficient balance
// is a skip, not a failure: the listing stays active with its anchor
// untouched and is retried on every future run.
func (s *billingScheduler) chargeListing(ctx context.Context, listing domain.Listing, now time.Time) chargeResult {
	logger := middleware.GetLoggerFromCtx(ctx).With(slog.String("listing_id", listing.ListingID))

	if listing.LastChargedAt == nil {
		// The due query filters these out; a row changing under us is not an error.
		return chargeSkipped
	}
	correlationID := fmt.Sprintf("recurring:%s:%d", listing.ListingID, listing.LastChargedAt.UTC().Unix())

	outcome, err := s.ledgerRepo.ChargeListing(ctx, portsrepo.ChargeListingParams{
		ListingID:      listing.ListingID,
		AccountID:      listing.AccountID,
		Fee:            s.policy.ActivationFee,
		CorrelationID:  correlationID,
		Kind:           domain.ChargeRecurring,
		Now:            now,
		SetLastCharged: true,
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrInsufficientBalance) {
			logger.Info("Recurring charge skipped: insufficient balance")
			return chargeSkipped
		}
		logger.Error("Recurring charge failed", slog.String("error", err.Error()))
		return chargeFailed
	}
	if outcome.AlreadyApplied {
		// A concurrent run already paid this window.
		logger.Info("Recurring charge already applied for this window")
		return chargeSkipped
	}

	if err := s.sessions.RefreshBalance(ctx, listing.AccountID, outcome.NewBalance); err != nil {
		logger.Error("Failed to refresh session balance cache", slog.String("error", err.Error()))
	}
	if err := s.events.Publish(ctx, domain.LedgerEvent{
		Type:          domain.EventDebitCharged,
		AccountID:     listing.AccountID,
		Amount:        s.policy.ActivationFee.Neg(),
		CorrelationID: correlationID,
		Kind:          domain.ChargeRecurring,
		OccurredAt:    now,
	}); err != nil {
		logger.Error("Failed to publish ledger event", slog.String("error", err.Error()))
	}
	return chargeApplied
}
