//go:generate mockgen -source=contracts.go -destination=mocks_test.go -package=dispatch_test

package dispatch

import (
	"context"
	"time"

	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/gateway/notify"
)

// Timers arms and disarms per-offer expiry.
type Timers interface {
	Schedule(ctx context.Context, offerID string, at time.Time) error
	Cancel(offerID string)
}

// OrderGateway reports terminal dispatch outcomes to the order service.
type OrderGateway interface {
	MarkAssigned(ctx context.Context, orderID, transporterID string) error
	MarkUnfulfilled(ctx context.Context, orderID string) error
}

// Notifier publishes best-effort notifications.
type Notifier interface {
	NotifyTransporter(ctx context.Context, transporterID string, msg notify.Message) error
	NotifyFarmer(ctx context.Context, farmerID string, msg notify.Message) error
}

// Ranker returns the ordered candidates of an order.
type Ranker interface {
	Rank(ctx context.Context, orderID string) ([]domain.Candidate, error)
}

// Metrics counts engine events.
type Metrics interface {
	Transition(event string)
	Outcome(outcome string)
	SideEffectFailure(target string)
}
