package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
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

// reconciliationService verifies inbound gateway notifications and applies the
// credit exactly once. The gateway retries on any non-2xx or timeout, so every
// rejection here must be side-effect-free and every accept idempotent.
type reconciliationService struct {
	ledgerRepo    portsrepo.LedgerRepositoryFacade
	sessions      portssvc.SessionCache
	events        portssvc.LedgerEventPublisher
	merchantID    string
	webhookSecret string
	now           func() time.Time
}

// NewReconciliationService creates a new ReconciliationService.
func NewReconciliationService(ledgerRepo portsrepo.LedgerRepositoryFacade, sessions portssvc.SessionCache, events portssvc.LedgerEventPublisher, merchantID, webhookSecret string) portssvc.ReconciliationSvcFacade {
	return &reconciliationService{
		ledgerRepo:    ledgerRepo,
		sessions:      sessions,
		events:        events,
		merchantID:    merchantID,
		webhookSecret: webhookSecret,
		now:           time.Now,
	}
}

var _ portssvc.ReconciliationSvcFacade = (*reconciliationService)(nil)

// Reconcile runs the webhook protocol gates in order: authenticity over the
// raw transport bytes, payload parse, correlation, merchant match, idempotent
// settle, session refresh.
func (s *reconciliationService) Reconcile(ctx context.Context, rawBody []byte, signature string, sourceAddr string) (*domain.CreditSettlement, error) {
	logger := middleware.GetLoggerFromCtx(ctx)
	now := s.now().UTC()

	verified := false
	if s.webhookSecret != "" {
		if !verifySignature(rawBody, signature, s.webhookSecret) {
			logger.Warn("Webhook signature rejected",
				slog.String("source_addr", sourceAddr),
				slog.Time("received_at", now),
				slog.Bool("signature_present", signature != ""),
			)
			return nil, fmt.Errorf("%w: webhook signature mismatch", apperrors.ErrUnauthenticated)
		}
		verified = true
	} else {
		logger.Warn("No gateway secret configured; accepting webhook unverified", slog.String("source_addr", sourceAddr))
	}

	var payload dto.GatewayWebhookPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed gateway payload: %v", apperrors.ErrValidation, err)
	}
	if payload.OrderID == "" {
		return nil, fmt.Errorf("%w: gateway payload missing order_id", apperrors.ErrValidation)
	}

	logger = logger.With(slog.String("order_id", payload.OrderID))

	entry, err := s.ledgerRepo.FindEntryByOrderID(ctx, payload.OrderID)
	if err != nil {
		logger.Warn("Webhook correlation failed",
			slog.String("source_addr", sourceAddr),
			slog.Time("received_at", now),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	if payload.MerchantID != "" && s.merchantID != "" && payload.MerchantID != s.merchantID {
		logger.Warn("Webhook merchant mismatch",
			slog.String("claimed_merchant", payload.MerchantID),
			slog.String("source_addr", sourceAddr),
		)
		return nil, fmt.Errorf("%w: merchant mismatch", apperrors.ErrForbidden)
	}

	// Delivery itself implies settlement per the gateway contract; any status
	// other than the documented confirmation code is only an audit discrepancy.
	if payload.Status != dto.GatewayStatusConfirmed {
		logger.Warn("Webhook delivered with unexpected status code", slog.Int("status_code", payload.Status))
	}
	if !payload.Amount.IsZero() && !payload.Amount.Equal(entry.Amount) {
		logger.Warn("Webhook amount differs from pending entry",
			slog.String("claimed_amount", payload.Amount.String()),
			slog.String("entry_amount", entry.Amount.String()),
		)
	}

	settlement, err := s.ledgerRepo.SettleCredit(ctx, payload.OrderID, domain.SettlementAudit{
		TxHash:     payload.TxHash,
		NetworkFee: payload.NetworkFee,
		Asset:      payload.Asset,
		SettledAt:  now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to settle credit for order %s: %w", payload.OrderID, err)
	}
	settlement.Unverified = !verified

	if settlement.AlreadyApplied {
		logger.Info("Duplicate webhook delivery; credit already applied")
		return settlement, nil
	}

	logger.Info("Credit settled",
		slog.String("account_id", settlement.AccountID),
		slog.String("amount", settlement.Amount.String()),
		slog.String("new_balance", settlement.NewBalance.String()),
	)

	// The credit is committed; collaborator failures must not turn it into a
	// gateway-visible error, or a retry would be pointless.
	if err := s.sessions.RefreshBalance(ctx, settlement.AccountID, settlement.NewBalance); err != nil {
		logger.Error("Failed to refresh session balance cache", slog.String("error", err.Error()))
	}
	if err := s.events.Publish(ctx, domain.LedgerEvent{
		Type:          domain.EventCreditSettled,
		AccountID:     settlement.AccountID,
		Amount:        settlement.Amount,
		CorrelationID: payload.OrderID,
		Kind:          domain.ChargeTopUp,
		OccurredAt:    now,
	}); err != nil {
		logger.Error("Failed to publish ledger event", slog.String("error", err.Error()))
	}

	return settlement, nil
}

// verifySignature computes HMAC-SHA256 over the exact raw request bytes and
// compares it in constant time against the base64-encoded header value.
func verifySignature(rawBody []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	claimed, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(rawBody)
	return hmac.Equal(mac.Sum(nil), claimed)
}
