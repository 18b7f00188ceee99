package handlers

import (
	"github.com/adboard/billing-engine/cmd/docs"
	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/adboard/billing-engine/internal/middleware"
	"github.com/adboard/billing-engine/internal/platform/config"
	"github.com/adboard/billing-engine/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	windowLimiter *ratelimit.SlidingWindowLimiter,
	webhookIPLimiter *limiter.Limiter,
) {
	registerCustomValidators()

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})

	// Gateway webhooks: unauthenticated by design, fronted by the coarse IP
	// limiter; signature verification happens inside the service.
	webhooks := r.Group("/webhooks", middleware.IPRateLimit(webhookIPLimiter))
	registerWebhookRoutes(webhooks, services.Reconciliation)

	// Authenticated billing surface.
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret))
	purchaseGate := middleware.EndpointRateLimit(windowLimiter, config.RateLimitPurchase)
	registerPurchaseRoutes(v1, services.Purchase, purchaseGate)

	// Scheduler trigger, guarded by its own shared secret and preset.
	internalGroup := r.Group("/internal/billing", middleware.EndpointRateLimit(windowLimiter, config.RateLimitBillingRun))
	registerBillingRoutes(internalGroup, services.BillingRun, cfg.BillingRunSecret)

	setupSwaggerRoutes(r, cfg)
}

// setupSwaggerRoutes configures the swagger documentation routes
func setupSwaggerRoutes(r *gin.Engine, cfg *config.Config) {
	if cfg.IsProduction {
		//no swagger in prod
		return
	}
	docs.SwaggerInfo.BasePath = "/api/v1"
	swagger := r.Group("/swagger")
	swagger.GET("/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}
