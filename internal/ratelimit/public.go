package ratelimit

import (
	"context"
	"strings"

	"github.com/smallbiznis/tablebill/internal/config"
	"go.uber.org/zap"
)

const keyPublicClient = "tablebill:ratelimit:public:"

// PublicLimiter throttles unauthenticated invoice routes per client.
// A nil or disabled limiter allows everything.
type PublicLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

func NewPublicLimiter(cfg config.Config, bucket *TokenBucket, log *zap.Logger) *PublicLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || bucket == nil {
		log.Info("public rate limiting disabled")
		return nil
	}
	if limitCfg.PublicRate <= 0 || limitCfg.PublicBurst <= 0 {
		log.Warn("public rate limit misconfigured, disabling",
			zap.Float64("rate", limitCfg.PublicRate),
			zap.Int("burst", limitCfg.PublicBurst),
		)
		return nil
	}
	return &PublicLimiter{
		bucket: bucket,
		rate:   limitCfg.PublicRate,
		burst:  limitCfg.PublicBurst,
		log:    log.Named("ratelimit.public"),
	}
}

func (l *PublicLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow fails open when Redis is unreachable.
func (l *PublicLimiter) Allow(ctx context.Context, clientKey string) Result {
	if !l.Enabled() {
		return Result{Allowed: true}
	}
	res, err := l.bucket.Allow(ctx, keyPublicClient+strings.TrimSpace(clientKey), l.rate, l.burst)
	if err != nil {
		l.log.Warn("rate limiter unavailable", zap.Error(err))
		return Result{Allowed: true, Limit: l.burst}
	}
	return res
}
