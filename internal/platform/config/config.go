package config

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/adboard/billing-engine/internal/ratelimit"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Rate limit preset names. These are the endpoint keys of the limiter table;
// call sites refer to presets by name instead of inlining limits.
const (
	RateLimitPurchase   = "purchase"
	RateLimitWebhook    = "webhook"
	RateLimitBillingRun = "billing-run"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL  string
	Port         string
	IsProduction bool
	JWTSecret    string

	// Payment gateway contract.
	GatewayMerchantID    string
	GatewayWebhookSecret string

	// Billing policy.
	BillingRunSecret   string
	ActivationFee      decimal.Decimal
	BoostFee           decimal.Decimal
	RecurringWindow    time.Duration
	PendingEntryExpiry time.Duration
	BoostDuration      time.Duration

	// Optional collaborators.
	RedisURL string
	NATSURL  string

	// Endpoint name -> admission policy, loaded once at startup.
	RateLimits map[string]ratelimit.Config
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("GATEWAY_MERCHANT_ID", "")
	viper.SetDefault("GATEWAY_WEBHOOK_SECRET", "")
	viper.SetDefault("BILLING_RUN_SECRET", "")
	viper.SetDefault("ACTIVATION_FEE", "1.00")
	viper.SetDefault("BOOST_FEE", "1.00")
	viper.SetDefault("RECURRING_WINDOW", "24h")
	viper.SetDefault("PENDING_ENTRY_EXPIRY", "24h")
	viper.SetDefault("BOOST_DURATION", "24h")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("NATS_URL", "")
	viper.SetDefault("RATE_LIMIT_PURCHASE", "10/1m")
	viper.SetDefault("RATE_LIMIT_WEBHOOK", "120/1m")
	viper.SetDefault("RATE_LIMIT_BILLING_RUN", "4/1m")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET not set. Using default insecure key.")
	}

	cfg.GatewayMerchantID = viper.GetString("GATEWAY_MERCHANT_ID")
	cfg.GatewayWebhookSecret = viper.GetString("GATEWAY_WEBHOOK_SECRET")
	if cfg.GatewayWebhookSecret == "" {
		log.Println("Warning: GATEWAY_WEBHOOK_SECRET not set. Webhook signatures will NOT be verified.")
		if cfg.IsProduction {
			return nil, fmt.Errorf("GATEWAY_WEBHOOK_SECRET is required in production")
		}
	}

	cfg.BillingRunSecret = viper.GetString("BILLING_RUN_SECRET")
	if cfg.BillingRunSecret == "" {
		log.Println("Warning: BILLING_RUN_SECRET not set. The billing run endpoint is unauthenticated.")
	}

	cfg.ActivationFee = loadFee("ACTIVATION_FEE")
	cfg.BoostFee = loadFee("BOOST_FEE")
	cfg.RecurringWindow = loadDuration("RECURRING_WINDOW", 24*time.Hour)
	cfg.PendingEntryExpiry = loadDuration("PENDING_ENTRY_EXPIRY", 24*time.Hour)
	cfg.BoostDuration = loadDuration("BOOST_DURATION", 24*time.Hour)

	cfg.RedisURL = viper.GetString("REDIS_URL")
	cfg.NATSURL = viper.GetString("NATS_URL")

	cfg.RateLimits = map[string]ratelimit.Config{
		RateLimitPurchase:   loadRateLimit("RATE_LIMIT_PURCHASE", ratelimit.Config{MaxRequests: 10, Window: time.Minute}),
		RateLimitWebhook:    loadRateLimit("RATE_LIMIT_WEBHOOK", ratelimit.Config{MaxRequests: 120, Window: time.Minute}),
		RateLimitBillingRun: loadRateLimit("RATE_LIMIT_BILLING_RUN", ratelimit.Config{MaxRequests: 4, Window: time.Minute}),
	}

	return cfg, nil
}

// loadFee reads a decimal money amount, falling back to one unit of currency.
func loadFee(key string) decimal.Decimal {
	raw := viper.GetString(key)
	fee, err := decimal.NewFromString(raw)
	if err != nil || fee.LessThanOrEqual(decimal.Zero) {
		fee = decimal.NewFromInt(1)
		log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, fee.String())
	}
	return fee
}

func loadDuration(key string, fallback time.Duration) time.Duration {
	raw := viper.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		d = fallback
		if raw != "" {
			log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %s.\n", key, raw, d.String())
		}
	}
	return d
}

// loadRateLimit parses the "count/window" preset form, e.g. "10/1m".
func loadRateLimit(key string, fallback ratelimit.Config) ratelimit.Config {
	raw := viper.GetString(key)
	parts := strings.SplitN(raw, "/", 2)
	if len(parts) == 2 {
		count, countErr := strconv.Atoi(strings.TrimSpace(parts[0]))
		window, windowErr := time.ParseDuration(strings.TrimSpace(parts[1]))
		if countErr == nil && windowErr == nil && count > 0 && window > 0 {
			return ratelimit.Config{MaxRequests: count, Window: window}
		}
	}
	if raw != "" {
		log.Printf("Warning: Invalid value for %s ('%s'). Defaulting to %d/%s.\n", key, raw, fallback.MaxRequests, fallback.Window)
	}
	return fallback
}
