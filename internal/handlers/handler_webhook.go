package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/adboard/billing-engine/internal/apperrors"
	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/adboard/billing-engine/internal/dto"
	"github.com/adboard/billing-engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

// webhookHandler handles inbound payment-gateway notifications.
type webhookHandler struct {
	reconciliationService portssvc.ReconciliationSvcFacade
}

// newWebhookHandler creates a new webhookHandler.
func newWebhookHandler(rs portssvc.ReconciliationSvcFacade) *webhookHandler {
	return &webhookHandler{reconciliationService: rs}
}

// registerWebhookRoutes registers the gateway webhook endpoint.
func registerWebhookRoutes(rg *gin.RouterGroup, rs portssvc.ReconciliationSvcFacade) {
	h := newWebhookHandler(rs)
	rg.POST("/payment", h.handlePaymentWebhook)
}

// handlePaymentWebhook godoc
// @Summary Payment gateway webhook
// @Description Accepts a settlement notification from the payment gateway and credits the account exactly once. Duplicate deliveries are acknowledged without re-crediting.
// @Tags webhooks
// @Accept  json
// @Produce  json
// @Param   Signature header string false "base64 HMAC-SHA256 over the raw request body"
// @Success 200 {object} dto.WebhookResponse
// @Failure 400 {object} map[string]string "Malformed payload"
// @Failure 401 {object} map[string]string "Signature verification failed"
// @Failure 403 {object} map[string]string "Merchant mismatch"
// @Failure 404 {object} map[string]string "Unknown order id"
// @Failure 500 {object} map[string]string "Transient failure; gateway should retry"
// @Router /webhooks/payment [post]
func (h *webhookHandler) handlePaymentWebhook(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	// The signature covers the exact transport-layer bytes, so the body must
	// be captured before any JSON parsing.
	rawBody, err := io.ReadAll(c.Request.Body)
	if err != nil {
		logger.Warn("Failed to read webhook body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	signature := c.GetHeader("Signature")
	settlement, err := h.reconciliationService.Reconcile(c.Request.Context(), rawBody, signature, c.ClientIP())
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrUnauthenticated):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Signature verification failed"})
		case errors.Is(err, apperrors.ErrForbidden):
			c.JSON(http.StatusForbidden, gin.H{"error": "Merchant mismatch"})
		case errors.Is(err, apperrors.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Unknown order id"})
		case errors.Is(err, apperrors.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			// Non-2xx makes the gateway redeliver; the idempotent settle makes
			// that retry safe.
			logger.Error("Failed to reconcile webhook", slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process notification"})
		}
		return
	}

	c.JSON(http.StatusOK, dto.WebhookResponse{
		Status:         "ok",
		AlreadyApplied: settlement.AlreadyApplied,
	})
}
