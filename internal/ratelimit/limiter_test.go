package ratelimit

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/settlement/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewWriteLimiterDisabled(t *testing.T) {
	l, err := NewWriteLimiter(config.Config{}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, l)
	assert.False(t, l.Enabled())

	res, err := l.AllowActor(context.Background(), "ops")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestNewWriteLimiterWithoutRedis(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 1, WriteBurst: 1}}
	l, err := NewWriteLimiter(cfg, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Nil(t, l)
}

func TestNewWriteLimiterRejectsBadRate(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true, WriteRate: 0, WriteBurst: 5}}
	_, err := NewWriteLimiter(cfg, client, zap.NewNop())
	assert.Error(t, err)
}

func TestTokenBucketArguments(t *testing.T) {
	var nilBucket *TokenBucket
	_, err := nilBucket.Allow(context.Background(), "k", 1, 1)
	assert.ErrorIs(t, err, ErrNotConfigured)

	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	bucket := NewTokenBucket(client)

	_, err = bucket.Allow(context.Background(), "", 1, 1)
	assert.ErrorIs(t, err, ErrEmptyKey)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.ErrorIs(t, err, ErrInvalidRate)
	_, err = bucket.Allow(context.Background(), "k", 1, 0)
	assert.ErrorIs(t, err, ErrInvalidRate)
}

func TestEvaluateRetryAfter(t *testing.T) {
	denied := evaluate(false, 0.5, 2, 10)
	assert.False(t, denied.Allowed)
	assert.Equal(t, 10, denied.Limit)
	assert.Equal(t, 250*time.Millisecond, denied.RetryAfter)

	allowed := evaluate(true, 3.2, 2, 10)
	assert.True(t, allowed.Allowed)
	assert.Equal(t, 3, allowed.Remaining)
	assert.Zero(t, allowed.RetryAfter)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 10*time.Second, bucketTTL(2, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
}
