package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"transport-dispatch/internal/config"
	"transport-dispatch/internal/expiry"
	"transport-dispatch/internal/gateway/notify"
	order "transport-dispatch/internal/gateway/orders"
	"transport-dispatch/internal/gateway/ranking"
	"transport-dispatch/internal/http/handlers"
	httpmw "transport-dispatch/internal/http/middleware"
	"transport-dispatch/internal/http/pprofserver"
	"transport-dispatch/internal/http/router"
	"transport-dispatch/internal/logx"
	"transport-dispatch/internal/metrics"
	"transport-dispatch/internal/ports/offerstore"
	"transport-dispatch/internal/repository"
	"transport-dispatch/internal/service/dispatch"
)

// ContainerBuilder is a dig container builder.
type ContainerBuilder struct {
	dbConnect  dbConnectFunc
	loadConfig func() (*config.Config, error)
	logFatalf  func(string, ...interface{})
}

// NewContainerBuilder returns a new dig container builder
func NewContainerBuilder() *ContainerBuilder {
	return &ContainerBuilder{
		dbConnect:  connectDbWithRetry,
		loadConfig: config.Load,
		logFatalf:  log.Fatalf,
	}
}

// WithConfig replaces flag and environment loading with a fixed config.
func (b *ContainerBuilder) WithConfig(cfg *config.Config) *ContainerBuilder {
	if cfg != nil {
		b.loadConfig = func() (*config.Config, error) { return cfg, nil }
	}
	return b
}

// WithDBConnect sets the database connection function
func (b *ContainerBuilder) WithDBConnect(fn dbConnectFunc) *ContainerBuilder {
	if fn != nil {
		b.dbConnect = fn
	}
	return b
}

// WithLogFatalf sets the log.Fatalf function
func (b *ContainerBuilder) WithLogFatalf(fn func(string, ...interface{})) *ContainerBuilder {
	if fn != nil {
		b.logFatalf = fn
	}
	return b
}

// MustBuild builds the API container.
func (b *ContainerBuilder) MustBuild(ctx context.Context) *dig.Container {
	container, err := b.build(ctx)
	if err != nil {
		b.logFatalf("failed to build container: %v", err)
	}
	return container
}

// MustBuildWorker builds the order events worker container.
func (b *ContainerBuilder) MustBuildWorker(ctx context.Context) *dig.Container {
	container, err := b.buildWorker(ctx)
	if err != nil {
		b.logFatalf("failed to build worker container: %v", err)
	}
	return container
}

func (b *ContainerBuilder) build(ctx context.Context) (*dig.Container, error) {
	container, err := b.buildShared(ctx)
	if err != nil {
		return nil, err
	}
	if err := registerHTTP(container); err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildWorker(ctx context.Context) (*dig.Container, error) {
	container, err := b.buildShared(ctx)
	if err != nil {
		return nil, err
	}
	if err := registerOrderEvents(container); err != nil {
		return nil, fmt.Errorf("order events: %w", err)
	}
	return container, nil
}

func (b *ContainerBuilder) buildShared(ctx context.Context) (*dig.Container, error) {
	container := dig.New()

	if err := registerCore(container, ctx, b.loadConfig); err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}
	if err := registerDb(container, b.dbConnect); err != nil {
		return nil, fmt.Errorf("DB: %w", err)
	}
	if err := registerGateways(container); err != nil {
		return nil, fmt.Errorf("gateways: %w", err)
	}
	if err := registerDomainServices(container); err != nil {
		return nil, fmt.Errorf("service: %w", err)
	}
	return container, nil
}

// MustBuildContainer builds the API container with production dependencies.
func MustBuildContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuild(ctx)
}

// MustBuildWorkerContainer builds the worker container with production dependencies.
func MustBuildWorkerContainer(ctx context.Context) *dig.Container {
	return NewContainerBuilder().MustBuildWorker(ctx)
}

func provideAll(container *dig.Container, providers ...any) error {
	for _, provider := range providers {
		if err := container.Provide(provider); err != nil {
			return fmt.Errorf("provide %T: %w", provider, err)
		}
	}
	return nil
}

func registerCore(container *dig.Container, ctx context.Context, loadConfig func() (*config.Config, error)) error {
	return provideAll(container,
		func() context.Context { return ctx },
		loadConfig,
		NewLogger,
		newClosers,
		provideMetrics,
	)
}

// poolFactory connects to Postgres on first use.
type poolFactory func() (*pgxpool.Pool, error)

func registerDb(container *dig.Container, dbConnect dbConnectFunc) error {
	providerDB := func(ctx context.Context, cfg *config.Config, logger logx.Logger, cl *closers) poolFactory {
		var pool *pgxpool.Pool
		return func() (*pgxpool.Pool, error) {
			if pool != nil {
				return pool, nil
			}
			p, err := dbConnect(ctx, logger, cfg.DB.DSN(), 10, time.Second)
			if err != nil {
				return nil, err
			}
			cl.add("postgres", func() error { p.Close(); return nil })
			pool = p
			return pool, nil
		}
	}
	return provideAll(container, providerDB, newOfferStore)
}

func newOfferStore(ctx context.Context, cfg *config.Config, logger logx.Logger, pools poolFactory) (offerstore.Store, error) {
	if cfg.Store == config.StoreMemory {
		logger.Warn("using in-memory offer store, state is lost on restart")
		return repository.NewMemoryOfferRepo(), nil
	}
	pool, err := pools()
	if err != nil {
		return nil, err
	}
	if cfg.DB.Migrate {
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			return nil, err
		}
	}
	return repository.NewOfferRepo(pool), nil
}

type rankerIn struct {
	dig.In

	Cfg     *config.Config
	Logger  logx.Logger
	Closers *closers
	Retries prometheus.Counter `name:"gateway_retries_total"`
}

func newRanker(in rankerIn) (dispatch.Ranker, error) {
	rc := in.Cfg.Ranking
	if rc.Addr == "" {
		in.Logger.Info("ranking provider not configured, candidates must be supplied by callers")
		return nil, nil
	}
	conn, err := ranking.Dial(rc.Addr)
	if err != nil {
		return nil, err
	}
	in.Closers.add("ranking", conn.Close)

	return ranking.NewRetryingGateway(
		ranking.NewGRPCGateway(conn),
		in.Logger.With(logx.String("gateway", "ranking")),
		in.Retries,
		ranking.RetryConfig{
			MaxAttempts:    rc.MaxAttempts,
			BaseDelay:      rc.BaseDelay,
			MaxDelay:       rc.MaxDelay,
			AttemptTimeout: rc.Timeout,
		},
	), nil
}

func newOrderGateway(cfg *config.Config, logger logx.Logger, cl *closers) (dispatch.OrderGateway, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Kafka.ResultsTopic == "" {
		logger.Warn("kafka results topic not configured, order outcomes are only logged")
		return logOrders{logger: logger}, nil
	}
	producer, err := order.NewSyncProducer(cfg.Kafka.Brokers)
	if err != nil {
		return nil, err
	}
	gw := order.NewKafkaGateway(producer, cfg.Kafka.ResultsTopic)
	cl.add("kafka producer", gw.Close)
	return gw, nil
}

func newNotifier(cfg *config.Config, logger logx.Logger, cl *closers) dispatch.Notifier {
	if cfg.Redis.Addr == "" {
		logger.Warn("redis not configured, notifications are only logged")
		return logNotifier{logger: logger}
	}
	rdb := notify.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	cl.add("redis", rdb.Close)
	return notify.NewRedisGateway(rdb, cfg.Redis.Prefix)
}

func registerGateways(container *dig.Container) error {
	return provideAll(container,
		newRanker,
		newOrderGateway,
		newNotifier,
	)
}

type expiryOut struct {
	dig.Out

	Timers dispatch.Timers
	Local  *expiry.TimerScheduler
	Queue  expiry.QueueClient
}

func newExpiryBackend(cfg *config.Config, logger logx.Logger, cl *closers) expiryOut {
	if cfg.Expiry.Backend == config.ExpiryLmstfy {
		lc := cfg.Expiry.Lmstfy
		c := expiry.NewLmstfyClient(lc.Host, lc.Port, lc.Namespace, lc.Token)
		return expiryOut{
			Timers: expiry.NewLmstfyScheduler(c, lc.Queue),
			Queue:  c,
		}
	}
	local := expiry.NewTimerScheduler(logger.With(logx.String("component", "expiry")), cfg.Dispatch.OperationTimeout)
	cl.add("expiry timers", func() error { local.Stop(); return nil })
	return expiryOut{Timers: local, Local: local}
}

type dispatchIn struct {
	dig.In

	Ctx      context.Context
	Cfg      *config.Config
	Logger   logx.Logger
	Store    offerstore.Store
	Timers   dispatch.Timers
	Local    *expiry.TimerScheduler
	Orders   dispatch.OrderGateway
	Notifier dispatch.Notifier
	Ranker   dispatch.Ranker
	Metrics  *metrics.Dispatch
}

func newDispatchService(in dispatchIn) *dispatch.Service {
	svc := dispatch.NewService(dispatch.Deps{
		Store:    in.Store,
		Timers:   in.Timers,
		Orders:   in.Orders,
		Notifier: in.Notifier,
		Ranker:   in.Ranker,
		Metrics:  in.Metrics,
		Logger:   in.Logger.With(logx.String("component", "dispatch")),
	}, dispatch.Config{
		Tiers:            in.Cfg.Dispatch.Tiers,
		OfferTimeout:     in.Cfg.Dispatch.OfferTimeout,
		OperationTimeout: in.Cfg.Dispatch.OperationTimeout,
		SweepBatch:       in.Cfg.Dispatch.SweepBatch,
	})
	if in.Local != nil {
		in.Local.Bind(in.Ctx, svc.Expire)
	}
	return svc
}

type sweeperIn struct {
	dig.In

	Cfg     *config.Config
	Logger  logx.Logger
	Service *dispatch.Service
	Runs    prometheus.Counter `name:"offer_expiry_sweeps_total"`
}

func newSweeper(in sweeperIn) *expiry.Sweeper {
	return expiry.NewSweeper(
		in.Service.ExpireOverdue,
		in.Cfg.Dispatch.SweepInterval,
		in.Logger.With(logx.String("component", "sweeper")),
		in.Runs,
	)
}

type expiryConsumerIn struct {
	dig.In

	Cfg     *config.Config
	Logger  logx.Logger
	Queue   expiry.QueueClient
	Service *dispatch.Service
}

// newExpiryConsumer returns nil unless expiry runs on lmstfy.
func newExpiryConsumer(in expiryConsumerIn) *expiry.Consumer {
	if in.Queue == nil {
		return nil
	}
	return expiry.NewConsumer(
		in.Queue,
		in.Cfg.Expiry.Lmstfy.Queue,
		in.Service.Expire,
		in.Logger.With(logx.String("component", "expiry-consumer")),
		expiry.ConsumerConfig{},
	)
}

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		newExpiryBackend,
		newDispatchService,
		newSweeper,
		newExpiryConsumer,
	)
}

type pprofOut struct {
	dig.Out

	Server *http.Server `name:"pprof_server"`
}

func newPprofServer(cfg *config.Config) pprofOut {
	if !cfg.Pprof.Enabled {
		return pprofOut{}
	}
	return pprofOut{Server: pprofserver.NewServer(pprofserver.Config{
		Addr: cfg.Pprof.Addr,
		User: cfg.Pprof.User,
		Pass: cfg.Pprof.Pass,
	})}
}

func newHTTPServer(cfg *config.Config, mux http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func newServiceToken(cfg *config.Config, logger logx.Logger) httpmw.ServiceToken {
	if cfg.ServiceToken == "" {
		logger.Warn("INTERNAL_SERVICE_TOKEN not set, /dispatches routes disabled")
	}
	return httpmw.ServiceToken(cfg.ServiceToken)
}

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		handlers.New,
		handlers.NewOfferUsecase,
		handlers.NewOfferHandler,
		handlers.NewDispatchUsecase,
		handlers.NewDispatchHandler,
		newRateLimitClock,
		newRateLimiter,
		newRateLimitMiddleware,
		newServiceToken,
		router.New,
		newHTTPServer,
		newPprofServer,
	)
}
