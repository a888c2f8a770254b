//go:generate mockgen -source=contracts.go -destination=orders_mocks_test.go -package=orders_test

package orders

import (
	"context"

	"transport-dispatch/internal/domain"
)

// Dispatcher abstracts the subset of dispatch service operations
// needed by orders Processor when handling order events
type Dispatcher interface {
	Dispatch(ctx context.Context, orderID, farmerID string) (*domain.Group, error)
}

// UnfulfilledMarker reports an order that could not be dispatched at all
type UnfulfilledMarker interface {
	MarkUnfulfilled(ctx context.Context, orderID string) error
}
