package sellermode

import (
	"context"
	"errors"
	"fmt"
	"github.com/ariefcatur/go-marketplace-core/internal/metrics"
	"github.com/ariefcatur/go-marketplace-core/internal/redisx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"time"
)

type Reader interface {
	OperationalMode(ctx context.Context, sellerID string) (Mode, error)
}

// CachedReader: Redis di depan Reader lain. Redis error tidak fatal, jatuh ke Next.
type CachedReader struct {
	Next    Reader
	Redis   *redis.Client
	TTL     time.Duration
	Metrics *metrics.Metrics
	Log     *zap.Logger
}

func (c *CachedReader) OperationalMode(ctx context.Context, sellerID string) (Mode, error) {
	key := fmt.Sprintf(redisx.KeySellerMode, sellerID)

	s, err := c.Redis.Get(ctx, key).Result()
	switch {
	case err == nil:
		if m, perr := Parse(s); perr == nil {
			c.Metrics.ModeCache.WithLabelValues("hit").Inc()
			return m, nil
		}
		c.Log.Warn("bad cached seller mode", zap.String("seller_id", sellerID), zap.String("value", s))
	case !errors.Is(err, redis.Nil):
		c.Log.Warn("mode cache get failed", zap.String("seller_id", sellerID), zap.Error(err))
	}
	c.Metrics.ModeCache.WithLabelValues("miss").Inc()

	m, err := c.Next.OperationalMode(ctx, sellerID)
	if err != nil {
		return "", err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = redisx.TTLModeCache
	}
	if err := c.Redis.Set(ctx, key, string(m), ttl).Err(); err != nil {
		c.Log.Warn("mode cache set failed", zap.String("seller_id", sellerID), zap.Error(err))
	}
	return m, nil
}

func (c *CachedReader) Invalidate(ctx context.Context, sellerID string) error {
	return c.Redis.Del(ctx, fmt.Sprintf(redisx.KeySellerMode, sellerID)).Err()
}
