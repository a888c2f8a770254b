package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"transport-dispatch/internal/expiry"
	"transport-dispatch/internal/logx"
	"transport-dispatch/internal/transport/kafka"
)

func TestWorkerRunner_MustRun_NoPanicOnNil(t *testing.T) {
	r := &WorkerRunner{runFn: func(*dig.Container) error { return nil }}
	require.NotPanics(t, func() { r.MustRun(dig.New()) })
}

func TestWorkerRunner_MustRun_NoPanicOnCanceled(t *testing.T) {
	r := &WorkerRunner{runFn: func(*dig.Container) error { return context.Canceled }}
	require.NotPanics(t, func() { r.MustRun(dig.New()) })
}

func TestWorkerRunner_MustRun_PanicsOnOtherError(t *testing.T) {
	r := &WorkerRunner{runFn: func(*dig.Container) error { return errors.New("boom") }}
	require.Panics(t, func() { r.MustRun(dig.New()) })
}

func TestWorkerRun_ReturnsError_WhenConsumerNil(t *testing.T) {
	err := workerRun(context.Background(), logx.Nop(), nil, nil, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "kafka consumer is nil")
}

func TestRunWorker_UnconfiguredKafka(t *testing.T) {
	cfg := testConfig()

	container := dig.New()
	require.NoError(t, provideAll(container,
		func() context.Context { return context.Background() },
		logx.Nop,
		newClosers,
		func() (*kafka.Consumer, error) {
			return kafka.NewConsumer(logx.Nop(), cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.OrdersTopic, nil)
		},
		func() *expiry.Sweeper { return nil },
	))

	err := runWorker(container)
	require.Error(t, err)
	require.Contains(t, err.Error(), "kafka consumer is nil")
}
