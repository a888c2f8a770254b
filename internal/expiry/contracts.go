// Package expiry fires offer timeouts: in-process timers, lmstfy delayed
// jobs and a periodic sweep of overdue records.
package expiry

import (
	"context"
	"time"

	"github.com/bitleak/lmstfy/client"
)

//go:generate mockgen -source=contracts.go -destination=mocks_test.go -package=expiry_test

// Handler expires a single offer. It must be idempotent.
type Handler func(ctx context.Context, offerID string) error

// Scheduler arms and disarms per-offer timeouts.
type Scheduler interface {
	Schedule(ctx context.Context, offerID string, at time.Time) error
	Cancel(offerID string)
}

// QueueClient is the subset of the lmstfy client used for delayed expiry jobs.
type QueueClient interface {
	Publish(queue string, data []byte, ttlSecond uint32, tries uint16, delaySecond uint32) (string, error)
	Consume(queue string, ttrSecond, timeoutSecond uint32) (*client.Job, error)
	Ack(queue, jobID string) error
}

type counter interface {
	Inc()
}
