package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"transport-dispatch/internal/expiry"
	"transport-dispatch/internal/logx"
	"transport-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the order events worker.
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun runs the worker and panics on anything but a clean or canceled exit.
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

type workerIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Consumer *kafka.Consumer
	Sweeper  *expiry.Sweeper
	Closers  *closers
}

func runWorker(container *dig.Container) error {
	return container.Invoke(func(in workerIn) error {
		return workerRun(in.Ctx, in.Logger, in.Consumer, in.Sweeper, in.Closers)
	})
}

// workerRun consumes order events. The sweeper runs alongside so offers
// armed by this process still expire after a restart.
func workerRun(
	ctx context.Context,
	logger logx.Logger,
	consumer *kafka.Consumer,
	sweeper *expiry.Sweeper,
	cl *closers,
) error {
	if consumer == nil {
		return fmt.Errorf("kafka consumer is nil: worker container misconfigured")
	}
	if cl != nil {
		defer cl.closeAll(logger)
	}

	logger.Info("transport-dispatch worker started")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return consumer.Run(gctx) })
	if sweeper != nil {
		g.Go(func() error { return sweeper.Run(gctx) })
	}
	return g.Wait()
}
