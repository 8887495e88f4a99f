package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/posreport/internal/config"
)

const (
	keyLogin  = "posreport:login:%s"
	keyIngest = "posreport:ingest:%s:%s:%s"
)

// LoginLimiter throttles login attempts per email and client address.
type LoginLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewLoginLimiter(cfg config.Config, client *redis.Client) *LoginLimiter {
	if !cfg.RateLimit.Enabled || client == nil {
		return nil
	}
	return &LoginLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.LoginRate,
		burst:  cfg.RateLimit.LoginBurst,
	}
}

func (l *LoginLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *LoginLimiter) Allow(ctx context.Context, email, ip string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Take(ctx, LoginKey(email, ip), l.rate, l.burst)
}

// LoginKey hashes the email so addresses never appear in redis keys.
func LoginKey(email, ip string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email)) + "|" + strings.TrimSpace(ip)))
	return fmt.Sprintf(keyLogin, hex.EncodeToString(sum[:16]))
}

// IngestLimiter throttles POS pushes per terminal.
type IngestLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewIngestLimiter(cfg config.Config, client *redis.Client) *IngestLimiter {
	if !cfg.RateLimit.Enabled || client == nil {
		return nil
	}
	return &IngestLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.RateLimit.IngestRate,
		burst:  cfg.RateLimit.IngestBurst,
	}
}

func (l *IngestLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *IngestLimiter) Allow(ctx context.Context, branch, store, terminal string) (Decision, error) {
	if !l.Enabled() {
		return Decision{Allowed: true}, nil
	}
	return l.bucket.Take(ctx, IngestKey(branch, store, terminal), l.rate, l.burst)
}

func IngestKey(branch, store, terminal string) string {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return "_"
		}
		return s
	}
	return fmt.Sprintf(keyIngest, norm(branch), norm(store), norm(terminal))
}
