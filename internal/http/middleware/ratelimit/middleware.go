package ratelimit

import (
	"io"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"transport-dispatch/internal/logx"
)

const tooManyRequestsBody = `{"success":false,"error":{"code":"rate_limited","message":"too many requests"}}`

// Middleware rejects callers that exhausted their request budget.
type Middleware struct {
	logger  logx.Logger
	counter prometheus.Counter
	limiter Limiter
}

// New creates a Middleware. A nil limiter lets every request through.
func New(logger logx.Logger, counter prometheus.Counter, limiter Limiter) *Middleware {
	if logger == nil {
		logger = logx.Nop()
	}
	if limiter == nil {
		limiter = NopLimiter{}
	}
	return &Middleware{
		logger:  logger,
		counter: counter,
		limiter: limiter,
	}
}

// Handler returns chi-style middleware.
// Transporter calls are limited per identity, everything else per client IP.
func (m *Middleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := limitKey(r)
			if m.limiter.Allow(key) {
				next.ServeHTTP(w, r)
				return
			}

			if m.counter != nil {
				m.counter.Inc()
			}
			m.logger.Warn("rate limit exceeded",
				logx.String("key", key),
				logx.String("method", r.Method),
				logx.String("path", r.URL.Path),
			)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			if _, err := io.WriteString(w, tooManyRequestsBody); err != nil {
				m.logger.Debug("rate limit response write failed",
					logx.String("key", key),
					logx.Err(err),
				)
			}
		})
	}
}

func limitKey(r *http.Request) string {
	if id := r.Header.Get("X-Transporter-ID"); id != "" {
		return "transporter:" + id
	}
	return clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
