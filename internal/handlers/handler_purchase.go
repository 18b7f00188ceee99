package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/adboard/billing-engine/internal/apperrors"
	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/adboard/billing-engine/internal/dto"
	"github.com/adboard/billing-engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

// purchaseHandler handles user-initiated billing actions.
type purchaseHandler struct {
	purchaseService portssvc.PurchaseSvcFacade
}

// newPurchaseHandler creates a new purchaseHandler.
func newPurchaseHandler(ps portssvc.PurchaseSvcFacade) *purchaseHandler {
	return &purchaseHandler{purchaseService: ps}
}

// registerPurchaseRoutes registers top-up, balance and listing purchase routes.
func registerPurchaseRoutes(rg *gin.RouterGroup, ps portssvc.PurchaseSvcFacade, purchaseGate gin.HandlerFunc) {
	h := newPurchaseHandler(ps)

	rg.POST("/topups/intent", h.createTopUpIntent)
	rg.GET("/accounts/balance", h.getBalance)

	listings := rg.Group("/listings", purchaseGate)
	{
		listings.POST("/:listingID/activate", h.activateListing)
		listings.POST("/:listingID/boost", h.boostListing)
		listings.POST("/:listingID/deactivate", h.deactivateListing)
	}
}

// createTopUpIntent godoc
// @Summary Create a top-up intent
// @Description Prepares a pending ledger entry keyed by a fresh order id for the gateway's client-side widget.
// @Tags billing
// @Accept  json
// @Produce  json
// @Param   intent body dto.CreateTopUpIntentRequest true "Top-up amount"
// @Success 201 {object} dto.TopUpIntentResponse
// @Failure 400 {object} map[string]string "Invalid input format or validation error"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Security BearerAuth
// @Router /topups/intent [post]
func (h *purchaseHandler) createTopUpIntent(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.CreateTopUpIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for CreateTopUpIntent", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	intent, err := h.purchaseService.CreateTopUpIntent(c.Request.Context(), accountID, req)
	if err != nil {
		h.respondPurchaseError(c, err, "Failed to create top-up intent")
		return
	}
	c.JSON(http.StatusCreated, intent)
}

// getBalance godoc
// @Summary Get current balance
// @Description Reads the authenticated account's authoritative balance.
// @Tags billing
// @Produce  json
// @Success 200 {object} dto.BalanceResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 404 {object} map[string]string "Account not found"
// @Security BearerAuth
// @Router /accounts/balance [get]
func (h *purchaseHandler) getBalance(c *gin.Context) {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	balance, err := h.purchaseService.GetBalance(c.Request.Context(), accountID)
	if err != nil {
		h.respondPurchaseError(c, err, "Failed to read balance")
		return
	}
	c.JSON(http.StatusOK, dto.BalanceResponse{AccountID: accountID, Balance: balance})
}

// activateListing godoc
// @Summary Activate a listing
// @Description Charges the activation fee and activates the listing, or re-activates for free inside a still-valid paid window.
// @Tags billing
// @Produce  json
// @Param   listingID path string true "Listing ID"
// @Success 200 {object} dto.PurchaseResponse
// @Failure 400 {object} map[string]string "Listing already active"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 402 {object} map[string]string "Insufficient balance"
// @Failure 403 {object} map[string]string "Listing owned by another account"
// @Failure 404 {object} map[string]string "Listing not found"
// @Security BearerAuth
// @Router /listings/{listingID}/activate [post]
func (h *purchaseHandler) activateListing(c *gin.Context) {
	h.runListingAction(c, h.purchaseService.ActivateListing, "Failed to activate listing")
}

// boostListing godoc
// @Summary Boost a listing
// @Description Charges the boost fee on an active listing and opens a promotional window.
// @Tags billing
// @Produce  json
// @Param   listingID path string true "Listing ID"
// @Success 200 {object} dto.PurchaseResponse
// @Failure 400 {object} map[string]string "Listing not active"
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 402 {object} map[string]string "Insufficient balance"
// @Failure 403 {object} map[string]string "Listing owned by another account"
// @Failure 404 {object} map[string]string "Listing not found"
// @Security BearerAuth
// @Router /listings/{listingID}/boost [post]
func (h *purchaseHandler) boostListing(c *gin.Context) {
	h.runListingAction(c, h.purchaseService.BoostListing, "Failed to boost listing")
}

// deactivateListing godoc
// @Summary Deactivate a listing
// @Description Turns a listing off without charging; the paid window survives for free re-activation.
// @Tags billing
// @Produce  json
// @Param   listingID path string true "Listing ID"
// @Success 200 {object} dto.PurchaseResponse
// @Failure 401 {object} map[string]string "Unauthorized"
// @Failure 403 {object} map[string]string "Listing owned by another account"
// @Failure 404 {object} map[string]string "Listing not found"
// @Security BearerAuth
// @Router /listings/{listingID}/deactivate [post]
func (h *purchaseHandler) deactivateListing(c *gin.Context) {
	h.runListingAction(c, h.purchaseService.DeactivateListing, "Failed to deactivate listing")
}

// runListingAction shares the requester/listing plumbing of the three listing
// operations.
func (h *purchaseHandler) runListingAction(c *gin.Context, action func(ctx context.Context, requesterID, listingID string) (*dto.PurchaseResponse, error), failureMsg string) {
	accountID, ok := middleware.GetAccountIDFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	listingID := c.Param("listingID")

	resp, err := action(c.Request.Context(), accountID, listingID)
	if err != nil {
		h.respondPurchaseError(c, err, failureMsg)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// respondPurchaseError maps service errors onto the purchase error taxonomy.
// Authorization and insufficient-funds cases carry specific, actionable
// messages; everything else is generic to the caller and detailed server-side.
func (h *purchaseHandler) respondPurchaseError(c *gin.Context, err error, genericMsg string) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var insufficientErr *apperrors.InsufficientFundsError
	switch {
	case errors.As(err, &insufficientErr):
		logger.Info("Purchase rejected: insufficient funds", slog.String("error", err.Error()))
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    insufficientErr.Error(),
			"balance":  insufficientErr.Balance.String(),
			"required": insufficientErr.Required.String(),
		})
	case errors.Is(err, apperrors.ErrForbidden):
		logger.Warn("Purchase rejected: forbidden", slog.String("error", err.Error()))
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, apperrors.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		logger.Error(genericMsg, slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": genericMsg})
	}
}
