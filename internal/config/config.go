package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"transport-dispatch/internal/domain"
)

// Config stores service settings.
type Config struct {
	Port       int
	LogLevel   string
	LogBackend string
	Store      string
	// ServiceToken admits the order service on /dispatches. Empty unmounts it.
	ServiceToken string
	DB           DB
	Dispatch     Dispatch
	Expiry       Expiry
	Redis        Redis
	Kafka        Kafka
	Ranking      Ranking
	RateLimit    RateLimit
	Pprof        Pprof
}

// DB stores Postgres connection settings.
type DB struct {
	Host    string
	Port    string
	User    string
	Pass    string
	Name    string
	Migrate bool
}

// DSN builds a postgres connection string.
func (d DB) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Pass),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=disable",
	}
	return u.String()
}

// Dispatch stores escalation engine settings.
type Dispatch struct {
	Tiers            domain.Tiers
	OfferTimeout     time.Duration
	SweepInterval    time.Duration
	SweepBatch       int
	OperationTimeout time.Duration
}

// Expiry selects how offer timeouts are scheduled.
type Expiry struct {
	Backend string
	Lmstfy  Lmstfy
}

// Lmstfy stores delayed job queue settings.
type Lmstfy struct {
	Host      string
	Port      int
	Namespace string
	Token     string
	Queue     string
}

// Redis stores notification publisher settings.
type Redis struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Kafka stores broker settings for order events intake and dispatch results.
type Kafka struct {
	Brokers      []string
	GroupID      string
	OrdersTopic  string
	ResultsTopic string
}

// Ranking stores tier ranking provider settings.
type Ranking struct {
	Addr        string
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RateLimit stores per-IP token bucket settings.
type RateLimit struct {
	Enabled    bool
	Rate       float64
	Burst      int
	TTL        time.Duration
	MaxBuckets int
}

// Pprof stores debug server settings.
type Pprof struct {
	Enabled bool
	Addr    string
	User    string
	Pass    string
}

// Store backends
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Expiry backends
const (
	ExpiryTimer  = "timer"
	ExpiryLmstfy = "lmstfy"
)

// Load reads configuration in order: .env (if present) → environment → flags.
func Load() (*Config, error) {
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	pflag.IntVarP(&cfg.Port, "port", "p", cfg.Port, "port to listen on")
	pflag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	pflag.StringVar(&cfg.Store, "store", cfg.Store, "offer store backend (postgres, memory)")
	pflag.DurationVar(&cfg.Dispatch.OfferTimeout, "offer-timeout", cfg.Dispatch.OfferTimeout, "time a tier holds an offer before escalation")
	if err := pflag.CommandLine.Parse(os.Args[1:]); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	cfg := &Config{
		Port:       DefaultPort(),
		LogLevel:   envOr("LOG_LEVEL", "info"),
		LogBackend: envOr("LOG_BACKEND", "slog"),
		Store:      envOr("STORE_BACKEND", StorePostgres),
		DB:         DefaultDB(),
		Dispatch:   DefaultDispatch(),
		Expiry:     DefaultExpiry(),
		Redis:      DefaultRedis(),
		Kafka:      DefaultKafka(),
		Ranking:    DefaultRanking(),
		RateLimit:  DefaultRateLimit(),
		Pprof:      DefaultPprof(),
	}

	var err error
	if cfg.Port, err = envInt("PORT", cfg.Port); err != nil {
		return nil, err
	}

	cfg.ServiceToken = os.Getenv("INTERNAL_SERVICE_TOKEN")

	cfg.DB.Host = envOr("POSTGRES_HOST", cfg.DB.Host)
	cfg.DB.Port = envOr("POSTGRES_PORT", cfg.DB.Port)
	if _, err := strconv.Atoi(cfg.DB.Port); err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_PORT %q: %w", cfg.DB.Port, err)
	}
	cfg.DB.User = envOr("POSTGRES_USER", cfg.DB.User)
	cfg.DB.Pass = envOr("POSTGRES_PASSWORD", cfg.DB.Pass)
	cfg.DB.Name = envOr("POSTGRES_DB", cfg.DB.Name)
	if cfg.DB.Migrate, err = envBool("DB_MIGRATE", cfg.DB.Migrate); err != nil {
		return nil, err
	}

	if v := os.Getenv("DISPATCH_TIERS"); v != "" {
		if cfg.Dispatch.Tiers, err = domain.ParseTiers(v); err != nil {
			return nil, fmt.Errorf("invalid DISPATCH_TIERS: %w", err)
		}
	}
	if cfg.Dispatch.OfferTimeout, err = envDuration("DISPATCH_OFFER_TIMEOUT", cfg.Dispatch.OfferTimeout); err != nil {
		return nil, err
	}
	if cfg.Dispatch.SweepInterval, err = envDuration("DISPATCH_SWEEP_INTERVAL", cfg.Dispatch.SweepInterval); err != nil {
		return nil, err
	}
	if cfg.Dispatch.SweepBatch, err = envInt("DISPATCH_SWEEP_BATCH", cfg.Dispatch.SweepBatch); err != nil {
		return nil, err
	}
	if cfg.Dispatch.OperationTimeout, err = envDuration("DISPATCH_OPERATION_TIMEOUT", cfg.Dispatch.OperationTimeout); err != nil {
		return nil, err
	}

	cfg.Expiry.Backend = envOr("EXPIRY_BACKEND", cfg.Expiry.Backend)
	cfg.Expiry.Lmstfy.Host = envOr("LMSTFY_HOST", cfg.Expiry.Lmstfy.Host)
	if cfg.Expiry.Lmstfy.Port, err = envInt("LMSTFY_PORT", cfg.Expiry.Lmstfy.Port); err != nil {
		return nil, err
	}
	cfg.Expiry.Lmstfy.Namespace = envOr("LMSTFY_NAMESPACE", cfg.Expiry.Lmstfy.Namespace)
	cfg.Expiry.Lmstfy.Token = envOr("LMSTFY_TOKEN", cfg.Expiry.Lmstfy.Token)
	cfg.Expiry.Lmstfy.Queue = envOr("LMSTFY_QUEUE", cfg.Expiry.Lmstfy.Queue)

	cfg.Redis.Addr = envOr("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = envOr("REDIS_PASSWORD", cfg.Redis.Password)
	if cfg.Redis.DB, err = envInt("REDIS_DB", cfg.Redis.DB); err != nil {
		return nil, err
	}
	cfg.Redis.Prefix = envOr("REDIS_CHANNEL_PREFIX", cfg.Redis.Prefix)

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	cfg.Kafka.GroupID = envOr("KAFKA_GROUP_ID", cfg.Kafka.GroupID)
	cfg.Kafka.OrdersTopic = envOr("KAFKA_ORDERS_TOPIC", cfg.Kafka.OrdersTopic)
	cfg.Kafka.ResultsTopic = envOr("KAFKA_RESULTS_TOPIC", cfg.Kafka.ResultsTopic)

	cfg.Ranking.Addr = envOr("RANKING_ADDR", cfg.Ranking.Addr)
	if cfg.Ranking.Timeout, err = envDuration("RANKING_TIMEOUT", cfg.Ranking.Timeout); err != nil {
		return nil, err
	}
	if cfg.Ranking.MaxAttempts, err = envInt("RANKING_RETRY_MAX_ATTEMPTS", cfg.Ranking.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.Ranking.BaseDelay, err = envDuration("RANKING_RETRY_BASE_DELAY", cfg.Ranking.BaseDelay); err != nil {
		return nil, err
	}
	if cfg.Ranking.MaxDelay, err = envDuration("RANKING_RETRY_MAX_DELAY", cfg.Ranking.MaxDelay); err != nil {
		return nil, err
	}

	if cfg.RateLimit.Enabled, err = envBool("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled); err != nil {
		return nil, err
	}
	if v := os.Getenv("RATE_LIMIT_RATE"); v != "" {
		if cfg.RateLimit.Rate, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid RATE_LIMIT_RATE %q: %w", v, err)
		}
	}
	if cfg.RateLimit.Burst, err = envInt("RATE_LIMIT_BURST", cfg.RateLimit.Burst); err != nil {
		return nil, err
	}
	if cfg.RateLimit.TTL, err = envDuration("RATE_LIMIT_TTL", cfg.RateLimit.TTL); err != nil {
		return nil, err
	}
	if cfg.RateLimit.MaxBuckets, err = envInt("RATE_LIMIT_MAX_BUCKETS", cfg.RateLimit.MaxBuckets); err != nil {
		return nil, err
	}

	if cfg.Pprof.Enabled, err = envBool("PPROF_ENABLED", cfg.Pprof.Enabled); err != nil {
		return nil, err
	}
	cfg.Pprof.Addr = envOr("PPROF_ADDR", cfg.Pprof.Addr)
	cfg.Pprof.User = envOr("PPROF_USER", cfg.Pprof.User)
	cfg.Pprof.Pass = envOr("PPROF_PASS", cfg.Pprof.Pass)

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.Store != StorePostgres && c.Store != StoreMemory {
		return fmt.Errorf("invalid store backend: %q", c.Store)
	}
	if c.Expiry.Backend != ExpiryTimer && c.Expiry.Backend != ExpiryLmstfy {
		return fmt.Errorf("invalid expiry backend: %q", c.Expiry.Backend)
	}
	if len(c.Dispatch.Tiers) == 0 {
		return errors.New("at least one dispatch tier is required")
	}
	if c.Dispatch.OfferTimeout <= 0 {
		return fmt.Errorf("invalid offer timeout: %s", c.Dispatch.OfferTimeout)
	}
	if c.Dispatch.SweepInterval <= 0 {
		return fmt.Errorf("invalid sweep interval: %s", c.Dispatch.SweepInterval)
	}
	if c.Dispatch.SweepBatch <= 0 {
		return fmt.Errorf("invalid sweep batch: %d", c.Dispatch.SweepBatch)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
