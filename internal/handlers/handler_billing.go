package handlers

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/adboard/billing-engine/internal/middleware"
	"github.com/gin-gonic/gin"
)

// billingHandler exposes the scheduler entry point to the external time-based
// trigger.
type billingHandler struct {
	billingRunService portssvc.BillingRunSvcFacade
	runSecret         string
}

// newBillingHandler creates a new billingHandler.
func newBillingHandler(bs portssvc.BillingRunSvcFacade, runSecret string) *billingHandler {
	return &billingHandler{billingRunService: bs, runSecret: runSecret}
}

// registerBillingRoutes registers the billing run trigger.
func registerBillingRoutes(rg *gin.RouterGroup, bs portssvc.BillingRunSvcFacade, runSecret string) {
	h := newBillingHandler(bs, runSecret)
	rg.POST("/run", h.runBilling)
}

// runBilling godoc
// @Summary Run the recurring billing sweep
// @Description Charges every active listing whose 24h window has elapsed and expires stale pending entries. Intended for an external cron trigger.
// @Tags billing
// @Produce  json
// @Param   X-Billing-Secret header string false "Shared trigger secret"
// @Success 200 {object} dto.BillingRunSummary
// @Failure 401 {object} map[string]string "Bad trigger secret"
// @Failure 500 {object} map[string]string "Sweep could not start"
// @Router /internal/billing/run [post]
func (h *billingHandler) runBilling(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	if h.runSecret != "" {
		provided := c.GetHeader("X-Billing-Secret")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.runSecret)) != 1 {
			logger.Warn("Billing run trigger rejected: bad secret", slog.String("ip", c.ClientIP()))
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
	}

	summary, err := h.billingRunService.Run(c.Request.Context())
	if err != nil {
		// Partial failures are counted inside the summary; reaching here means
		// the sweep could not even select its batch. The next trigger retries.
		logger.Error("Billing run failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Billing run failed"})
		return
	}

	c.JSON(http.StatusOK, summary)
}
