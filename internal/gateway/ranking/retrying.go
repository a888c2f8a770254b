package ranking

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/logx"
)

type gateway interface {
	Rank(context.Context, string) ([]domain.Candidate, error)
}

type counter interface {
	Inc()
}

// RetryConfig describes RetryingGateway behaviour.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// AttemptTimeout bounds a single call; zero leaves only the caller deadline.
	AttemptTimeout time.Duration
}

// RetryingGateway retries transient ranking failures with capped exponential backoff.
type RetryingGateway struct {
	next    gateway
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingGateway returns nil when next is nil.
func NewRetryingGateway(next gateway, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingGateway {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &RetryingGateway{next: next, logger: logger, retries: retries, cfg: cfg}
}

// Rank calls the wrapped gateway until it succeeds, fails permanently or
// runs out of attempts.
func (g *RetryingGateway) Rank(ctx context.Context, orderID string) ([]domain.Candidate, error) {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		out, err := g.attempt(ctx, orderID)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("ranking gateway retry",
			logx.String("order_id", orderID),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return nil, lastErr
}

func (g *RetryingGateway) attempt(ctx context.Context, orderID string) ([]domain.Candidate, error) {
	if g.cfg.AttemptTimeout <= 0 {
		return g.next.Rank(ctx, orderID)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, g.cfg.AttemptTimeout)
	defer cancel()
	return g.next.Rank(attemptCtx, orderID)
}

func isRetryable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	st, ok := status.FromError(err)
	if !ok {
		return false
	}
	switch st.Code() {
	case codes.ResourceExhausted,
		codes.Unavailable,
		codes.DeadlineExceeded:
		return true
	default:
		return false
	}
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
