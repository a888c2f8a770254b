// Package offerstore declares the persistence contract for dispatch groups.
package offerstore

import (
	"context"
	"time"

	"transport-dispatch/internal/domain"
)

//go:generate mockgen -source=contracts.go -destination=mocks/store_mock.go -package=mocks

// Mutation changes a group in place. Returning an error aborts the transition.
type Mutation func(g *domain.Group) error

// Store persists tier records. Every read returns copies.
type Store interface {
	// Get returns a single record or apperr.ErrNotFound.
	Get(ctx context.Context, offerID string) (domain.Offer, error)
	// GetByOrder returns the records of the order's latest cycle ordered by tier.
	// An order without records yields apperr.ErrNotFound.
	GetByOrder(ctx context.Context, orderID string) (*domain.Group, error)
	// GetByTransporter returns the transporter's records, newest first.
	GetByTransporter(ctx context.Context, transporterID string, filter domain.StatusFilter) ([]domain.Offer, error)
	// CreateGroup inserts all records of a new cycle atomically.
	CreateGroup(ctx context.Context, g *domain.Group) error
	// Save upserts a single record.
	Save(ctx context.Context, o domain.Offer) error
	// Transition applies mutate to the group owning offerID only if that record
	// is still in the expected status and active. It fails with apperr.ErrConflict
	// otherwise. All record changes of the group are committed together.
	Transition(ctx context.Context, offerID string, expected domain.OfferStatus, mutate Mutation) (*domain.Group, error)
	// ListOverdue returns active pending records whose deadline is not after now.
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]domain.Offer, error)
}
