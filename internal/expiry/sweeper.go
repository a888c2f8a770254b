package expiry

import (
	"context"
	"time"

	"transport-dispatch/internal/logx"
)

// SweepFunc expires every overdue offer and reports how many were handled.
type SweepFunc func(ctx context.Context) (int, error)

// Sweeper periodically runs a SweepFunc.
type Sweeper struct {
	sweep    SweepFunc
	interval time.Duration
	logger   logx.Logger
	runs     counter
}

// NewSweeper creates a Sweeper. runs may be nil.
func NewSweeper(sweep SweepFunc, interval time.Duration, logger logx.Logger, runs counter) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Sweeper{sweep: sweep, interval: interval, logger: logger, runs: runs}
}

// Run sweeps once immediately, then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.once(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.once(ctx)
		}
	}
}

func (s *Sweeper) once(ctx context.Context) {
	if s.runs != nil {
		s.runs.Inc()
	}
	n, err := s.sweep(ctx)
	if err != nil {
		s.logger.Error("expiry sweep failed", logx.Err(err))
		return
	}
	if n > 0 {
		s.logger.Info("expired overdue offers", logx.Int("count", n))
	}
}
