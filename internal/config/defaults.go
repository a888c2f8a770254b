package config

import (
	"time"

	"transport-dispatch/internal/domain"
)

const defaultPort = 8080

var defaultDB = DB{
	Host: "127.0.0.1",
	Port: "5432",
	User: "myuser",
	Pass: "mypassword",
	Name: "dispatch_db",
}

var defaultDispatch = Dispatch{
	OfferTimeout:     5 * time.Minute,
	SweepInterval:    10 * time.Second,
	SweepBatch:       100,
	OperationTimeout: 3 * time.Second,
}

var defaultRanking = Ranking{
	Addr:        "localhost:50051",
	Timeout:     2 * time.Second,
	MaxAttempts: 4,
	BaseDelay:   150 * time.Millisecond,
	MaxDelay:    time.Second,
}

var defaultRateLimit = RateLimit{
	Enabled:    true,
	Rate:       5,
	Burst:      10,
	TTL:        5 * time.Minute,
	MaxBuckets: 10000,
}

// DefaultPort returns the default port.
func DefaultPort() int {
	return defaultPort
}

// DefaultDB returns the default database settings.
func DefaultDB() DB {
	return defaultDB
}

// DefaultDispatch returns the default escalation settings with the
// primary, secondary and tertiary tiers.
func DefaultDispatch() Dispatch {
	d := defaultDispatch
	d.Tiers = append(domain.Tiers(nil), domain.DefaultTiers...)
	return d
}

// DefaultExpiry returns in-process timers with lmstfy settings prefilled.
func DefaultExpiry() Expiry {
	return Expiry{
		Backend: ExpiryTimer,
		Lmstfy: Lmstfy{
			Host:      "127.0.0.1",
			Port:      7777,
			Namespace: "dispatch",
			Queue:     "offer-expiry",
		},
	}
}

// DefaultRedis returns the default notification publisher settings.
func DefaultRedis() Redis {
	return Redis{Addr: "127.0.0.1:6379", Prefix: "notifications"}
}

// DefaultKafka returns the default broker settings.
func DefaultKafka() Kafka {
	return Kafka{
		Brokers:      []string{"localhost:9092"},
		GroupID:      "transport-dispatch",
		OrdersTopic:  "orders",
		ResultsTopic: "order-dispatch-results",
	}
}

// DefaultRanking returns the default ranking provider settings.
func DefaultRanking() Ranking {
	return defaultRanking
}

// DefaultRateLimit returns the default rate limiter settings.
func DefaultRateLimit() RateLimit {
	return defaultRateLimit
}

// DefaultPprof returns the default debug server settings.
func DefaultPprof() Pprof {
	return Pprof{Addr: "127.0.0.1:6060"}
}
