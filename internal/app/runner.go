package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/dig"
	"golang.org/x/sync/errgroup"

	"transport-dispatch/internal/expiry"
	"transport-dispatch/internal/logx"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the dispatch API.
type Runner struct {
	runFn func(*dig.Container) error
}

// NewRunner returns a Runner for the API container.
func NewRunner() *Runner {
	return &Runner{runFn: run}
}

// MustRun runs the service until its context is done and panics on failure.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}

	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })

	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		panic(err)
	}
}

// MustRun runs the API with a default Runner.
func MustRun(container *dig.Container) {
	NewRunner().MustRun(container)
}

type apiIn struct {
	dig.In

	Ctx      context.Context
	Logger   logx.Logger
	Server   *http.Server
	Pprof    *http.Server `name:"pprof_server" optional:"true"`
	Sweeper  *expiry.Sweeper
	Consumer *expiry.Consumer `optional:"true"`
	Closers  *closers
}

func run(container *dig.Container) error {
	return container.Invoke(appRun)
}

func appRun(in apiIn) error {
	defer in.Closers.closeAll(in.Logger)

	g, ctx := errgroup.WithContext(in.Ctx)

	servers := []*http.Server{in.Server}
	if in.Pprof != nil {
		servers = append(servers, in.Pprof)
	}
	for _, srv := range servers {
		srv := srv
		g.Go(func() error { return serve(srv, in.Logger) })
	}
	g.Go(func() error {
		<-ctx.Done()
		in.Logger.Info("shutting down transport-dispatch")
		for _, srv := range servers {
			gracefulShutdown(srv, in.Logger, shutdownTimeout)
		}
		return ctx.Err()
	})

	g.Go(func() error { return in.Sweeper.Run(ctx) })
	if in.Consumer != nil {
		g.Go(func() error { return in.Consumer.Run(ctx) })
	}

	return g.Wait()
}

func serve(srv *http.Server, logger logx.Logger) error {
	logger.Info("listening", logx.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen %s: %w", srv.Addr, err)
	}
	return nil
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("graceful shutdown error", logx.String("addr", srv.Addr), logx.Err(err))
	}
}
