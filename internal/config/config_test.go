package config_test

import (
	"io"
	"os"
	"testing"
	"time"

	"transport-dispatch/internal/config"
	"transport-dispatch/internal/domain"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func resetFlags(t *testing.T) {
	t.Helper()
	oldArgs := os.Args
	old := pflag.CommandLine
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	pflag.CommandLine = fs
	os.Args = []string{"cmd"}
	t.Cleanup(func() {
		pflag.CommandLine = old
		os.Args = oldArgs
	})
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "LOG_LEVEL", "LOG_BACKEND", "STORE_BACKEND",
		"POSTGRES_HOST", "POSTGRES_PORT", "POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "DB_MIGRATE",
		"DISPATCH_TIERS", "DISPATCH_OFFER_TIMEOUT", "DISPATCH_SWEEP_INTERVAL", "DISPATCH_SWEEP_BATCH", "DISPATCH_OPERATION_TIMEOUT",
		"EXPIRY_BACKEND", "LMSTFY_HOST", "LMSTFY_PORT", "KAFKA_BROKERS", "RANKING_ADDR",
		"RANKING_TIMEOUT", "RANKING_RETRY_MAX_ATTEMPTS", "RATE_LIMIT_ENABLED", "RATE_LIMIT_RATE", "REDIS_DB", "INTERNAL_SERVICE_TOKEN",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, config.StorePostgres, cfg.Store)
	require.Equal(t, "127.0.0.1", cfg.DB.Host)
	require.Equal(t, "5432", cfg.DB.Port)
	require.Equal(t, "dispatch_db", cfg.DB.Name)
	require.False(t, cfg.DB.Migrate)

	require.Equal(t, domain.DefaultTiers, cfg.Dispatch.Tiers)
	require.Equal(t, 5*time.Minute, cfg.Dispatch.OfferTimeout)
	require.Equal(t, 10*time.Second, cfg.Dispatch.SweepInterval)
	require.Equal(t, 100, cfg.Dispatch.SweepBatch)
	require.Empty(t, cfg.ServiceToken)
	require.Equal(t, 2*time.Second, cfg.Ranking.Timeout)
	require.Equal(t, config.ExpiryTimer, cfg.Expiry.Backend)
	require.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	require.Equal(t, "order-dispatch-results", cfg.Kafka.ResultsTopic)
	require.Equal(t, 4, cfg.Ranking.MaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	resetFlags(t)
	clearEnv(t)

	t.Setenv("PORT", "9090")
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_PORT", "15432")
	t.Setenv("DB_MIGRATE", "true")
	t.Setenv("DISPATCH_TIERS", "Nearby, Regional")
	t.Setenv("DISPATCH_OFFER_TIMEOUT", "90s")
	t.Setenv("EXPIRY_BACKEND", "lmstfy")
	t.Setenv("LMSTFY_PORT", "7070")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("RATE_LIMIT_RATE", "2.5")
	t.Setenv("DISPATCH_SWEEP_BATCH", "25")
	t.Setenv("RANKING_TIMEOUT", "750ms")
	t.Setenv("INTERNAL_SERVICE_TOKEN", "svc-secret")

	cfg, err := config.Load()
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, config.StoreMemory, cfg.Store)
	require.Equal(t, "db", cfg.DB.Host)
	require.Equal(t, "15432", cfg.DB.Port)
	require.True(t, cfg.DB.Migrate)
	require.Equal(t, domain.Tiers{"nearby", "regional"}, cfg.Dispatch.Tiers)
	require.Equal(t, 90*time.Second, cfg.Dispatch.OfferTimeout)
	require.Equal(t, config.ExpiryLmstfy, cfg.Expiry.Backend)
	require.Equal(t, 7070, cfg.Expiry.Lmstfy.Port)
	require.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	require.InDelta(t, 2.5, cfg.RateLimit.Rate, 0.0001)
	require.Equal(t, 25, cfg.Dispatch.SweepBatch)
	require.Equal(t, 750*time.Millisecond, cfg.Ranking.Timeout)
	require.Equal(t, "svc-secret", cfg.ServiceToken)
}

func TestLoad_FlagOverridesEnv(t *testing.T) {
	resetFlags(t)
	clearEnv(t)
	t.Setenv("PORT", "9090")
	os.Args = []string{"cmd", "--port=7000", "--offer-timeout=1m"}

	cfg, err := config.Load()
	require.NoError(t, err)
	require.Equal(t, 7000, cfg.Port)
	require.Equal(t, time.Minute, cfg.Dispatch.OfferTimeout)
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string]map[string]string{
		"port out of range":    {"PORT": "70000"},
		"postgres port":        {"POSTGRES_PORT": "not-a-number"},
		"offer timeout":        {"DISPATCH_OFFER_TIMEOUT": "bad"},
		"non-positive timeout": {"DISPATCH_OFFER_TIMEOUT": "0s"},
		"duplicate tiers":      {"DISPATCH_TIERS": "a,a"},
		"store backend":        {"STORE_BACKEND": "mongo"},
		"expiry backend":       {"EXPIRY_BACKEND": "cron"},
		"migrate flag":         {"DB_MIGRATE": "maybe"},
		"rate limit rate":      {"RATE_LIMIT_RATE": "fast"},
		"ranking attempts":     {"RANKING_RETRY_MAX_ATTEMPTS": "x"},
		"sweep batch":          {"DISPATCH_SWEEP_BATCH": "0"},
		"ranking timeout":      {"RANKING_TIMEOUT": "soon"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			resetFlags(t)
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}

			cfg, err := config.Load()
			require.Error(t, err)
			require.Nil(t, cfg)
		})
	}
}

func TestLoad_FlagsParseError(t *testing.T) {
	resetFlags(t)
	clearEnv(t)
	os.Args = []string{"cmd", "--port=not-a-number"}

	cfg, err := config.Load()

	require.Error(t, err)
	require.Nil(t, cfg)
	require.Contains(t, err.Error(), "parse flags")
}

func TestDB_DSN(t *testing.T) {
	db := config.DB{Host: "h", Port: "5432", User: "u", Pass: "p@ss", Name: "d"}
	require.Equal(t, "postgres://u:p%40ss@h:5432/d?sslmode=disable", db.DSN())
}
