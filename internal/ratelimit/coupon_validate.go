package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/eroom/internal/config"
)

const keyCouponValidateIP = "coupon:validate:ip:%s"

// CouponValidateLimiter throttles public coupon validation per client IP so
// codes cannot be enumerated. A nil limiter allows everything.
type CouponValidateLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
}

func NewCouponValidateLimiter(cfg config.Config, client *redis.Client) *CouponValidateLimiter {
	if client == nil || cfg.CouponValidateRate <= 0 || cfg.CouponValidateBurst <= 0 {
		return nil
	}
	return &CouponValidateLimiter{
		bucket: NewTokenBucket(client),
		rate:   cfg.CouponValidateRate,
		burst:  cfg.CouponValidateBurst,
	}
}

func (l *CouponValidateLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

func (l *CouponValidateLimiter) Allow(ctx context.Context, clientIP string) (*RateLimitResult, error) {
	if !l.Enabled() {
		return &RateLimitResult{Allowed: true}, nil
	}
	return l.bucket.Allow(ctx, fmt.Sprintf(keyCouponValidateIP, strings.TrimSpace(clientIP)), l.rate, l.burst)
}
