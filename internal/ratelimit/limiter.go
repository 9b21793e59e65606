package ratelimit

import (
	"context"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/settlement/internal/config"
	"go.uber.org/zap"
)

const keyAdminWrite = "settlement:ratelimit:write:%s"

// WriteLimiter throttles payout-creating admin calls per operator. A nil
// limiter allows everything.
type WriteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewWriteLimiter returns nil unless rate limiting is enabled and Redis is
// configured.
func NewWriteLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*WriteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled {
		return nil, nil
	}
	if client == nil {
		log.Warn("rate limit enabled without redis, admin writes are not throttled")
		return nil, nil
	}
	if limitCfg.WriteRate <= 0 || limitCfg.WriteBurst <= 0 {
		return nil, errors.New("admin write rate limit must be positive")
	}
	return &WriteLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.WriteRate,
		burst:  limitCfg.WriteBurst,
	}, nil
}

func (l *WriteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *WriteLimiter) AllowActor(ctx context.Context, actor string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyAdminWrite, actor), l.rate, l.burst)
}
