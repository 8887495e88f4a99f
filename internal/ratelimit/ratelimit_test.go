package ratelimit

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/posreport/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestDisabledLimitersAllow(t *testing.T) {
	cfg := config.Config{RateLimit: config.RateLimitConfig{Enabled: true}}

	login := NewLoginLimiter(cfg, nil)
	assert.False(t, login.Enabled())
	decision, err := login.Allow(context.Background(), "a@b.c", "127.0.0.1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)

	ingest := NewIngestLimiter(cfg, nil)
	decision, err = ingest.Allow(context.Background(), "B1", "S1", "T1")
	assert.NoError(t, err)
	assert.True(t, decision.Allowed)
}

func TestNilLocker(t *testing.T) {
	var l *Locker
	assert.False(t, l.Enabled())
	_, ok, err := l.TryLock(context.Background(), "k", time.Second)
	assert.False(t, ok)
	assert.Error(t, err)
	assert.NoError(t, l.Release(context.Background(), "k", "t"))
}

func TestLoginKeyHidesEmail(t *testing.T) {
	key := LoginKey("Cashier@Example.com", "10.0.0.1")
	assert.True(t, strings.HasPrefix(key, "posreport:login:"))
	assert.NotContains(t, key, "example")
	assert.Equal(t, key, LoginKey("cashier@example.com ", "10.0.0.1"))
	assert.NotEqual(t, key, LoginKey("cashier@example.com", "10.0.0.2"))
}

func TestIngestKey(t *testing.T) {
	assert.Equal(t, "posreport:ingest:b1:s1:t1", IngestKey(" B1", "S1", "t1"))
	assert.Equal(t, "posreport:ingest:b1:_:_", IngestKey("B1", "", " "))
}

func TestBucketTTLAndRetryAfter(t *testing.T) {
	assert.Equal(t, 50*time.Second, bucketTTL(0.2, 5))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, 5*time.Second, retryAfter(0.2))
	assert.Equal(t, time.Second, retryAfter(50))
}
