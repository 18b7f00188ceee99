package cache

import (
	"context"
	"fmt"

	portssvc "github.com/adboard/billing-engine/internal/core/ports/services"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisSessionCache reflects committed balances into the session store the
// outer web application reads. The contract is write-through only: this
// engine never reads the cached value back.
type RedisSessionCache struct {
	client *redis.Client
}

// NewRedisSessionCache connects to the session store at the given URL.
func NewRedisSessionCache(ctx context.Context, redisURL string) (*RedisSessionCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return &RedisSessionCache{client: client}, nil
}

var _ portssvc.SessionCache = (*RedisSessionCache)(nil)

// RefreshBalance writes the new balance under the account's session key so it
// is visible the next time the session is read.
func (c *RedisSessionCache) RefreshBalance(ctx context.Context, accountID string, balance decimal.Decimal) error {
	key := "session:balance:" + accountID
	if err := c.client.Set(ctx, key, balance.String(), 0).Err(); err != nil {
		return fmt.Errorf("failed to refresh session balance for %s: %w", accountID, err)
	}
	return nil
}

// Close releases the underlying connection.
func (c *RedisSessionCache) Close() error {
	return c.client.Close()
}

// NoopSessionCache is used when no session store is configured.
type NoopSessionCache struct{}

var _ portssvc.SessionCache = (*NoopSessionCache)(nil)

func (NoopSessionCache) RefreshBalance(context.Context, string, decimal.Decimal) error {
	return nil
}
