package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"transport-dispatch/internal/config"
	"transport-dispatch/internal/http/middleware/ratelimit"
	"transport-dispatch/internal/logx"
)

func newRateLimiter(cfg *config.Config, clock ratelimit.Clock, logger logx.Logger) ratelimit.Limiter {
	rl := cfg.RateLimit
	if !rl.Enabled {
		logger.Info("rate limiting disabled")
		return ratelimit.NewNopLimiter()
	}
	return ratelimit.NewTokenBucketLimiter(clock, ratelimit.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
}

func newRateLimitClock() ratelimit.Clock {
	return ratelimit.RealClock{}
}

type rateLimitIn struct {
	dig.In

	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
	Limiter ratelimit.Limiter
}

func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	return ratelimit.New(in.Logger, in.Counter, in.Limiter)
}
