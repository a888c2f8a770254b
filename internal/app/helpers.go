package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"transport-dispatch/internal/logx"
	"transport-dispatch/internal/repository"
)

var newPool = repository.NewPool

type dbConnectFunc func(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error)

func connectDbWithRetry(ctx context.Context, logger logx.Logger, dsn string, retries int, delay time.Duration) (*pgxpool.Pool, error) {
	const attemptTimeout = 3 * time.Second

	var lastErr error
	for i := 1; i <= retries; i++ {
		attemptCtx, cancel := context.WithTimeout(ctx, attemptTimeout)
		pool, err := newPool(attemptCtx, dsn)
		cancel()
		if err == nil {
			logger.Info("db connected", logx.Int("attempt", i))
			return pool, nil
		}
		lastErr = err
		logger.Warn("db connect failed",
			logx.Int("attempt", i),
			logx.Int("retries", retries),
			logx.Err(err),
		)
		if i < retries {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return nil, fmt.Errorf("db connect failed after %d attempts: %w", retries, lastErr)
}

// closers collects cleanup functions of opened resources in open order.
type closers struct {
	fns []namedCloser
}

type namedCloser struct {
	name string
	fn   func() error
}

func newClosers() *closers { return &closers{} }

func (c *closers) add(name string, fn func() error) {
	c.fns = append(c.fns, namedCloser{name: name, fn: fn})
}

// closeAll runs cleanups in reverse open order and logs failures.
func (c *closers) closeAll(logger logx.Logger) {
	for i := len(c.fns) - 1; i >= 0; i-- {
		nc := c.fns[i]
		if err := nc.fn(); err != nil {
			logger.Error("resource close failed", logx.String("resource", nc.name), logx.Err(err))
		}
	}
	c.fns = nil
}
