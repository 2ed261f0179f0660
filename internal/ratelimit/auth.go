package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/appraisal/internal/config"
	"go.uber.org/fx"
)

const keyAuthEndpoint = "auth:%s:%s"

var ErrLimiterConfig = errors.New("auth rate limit must be positive")

// AuthLimiter throttles the unauthenticated /auth endpoints per client.
// A nil *AuthLimiter allows everything.
type AuthLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

// NewAuthLimiter returns nil when REDIS_ADDR is not configured.
func NewAuthLimiter(lc fx.Lifecycle, cfg config.Config) (*AuthLimiter, error) {
	addr := strings.TrimSpace(cfg.Redis.Addr)
	if addr == "" {
		return nil, nil
	}
	if cfg.Redis.AuthRate <= 0 || cfg.Redis.AuthBurst <= 0 {
		return nil, ErrLimiterConfig
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(context.Context) error {
				return client.Close()
			},
		})
	}

	return &AuthLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.Redis.AuthRate,
		burst:  cfg.Redis.AuthBurst,
	}, nil
}

func (l *AuthLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow takes one token from the bucket of endpoint+client.
func (l *AuthLimiter) Allow(ctx context.Context, endpoint, client string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, authKey(endpoint, client), l.rate, l.burst)
}

func authKey(endpoint, client string) string {
	return fmt.Sprintf(keyAuthEndpoint, strings.Trim(endpoint, "/"), client)
}
