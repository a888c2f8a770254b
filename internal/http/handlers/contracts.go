package handlers

import (
	"context"

	"github.com/shopspring/decimal"

	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/service/dispatch"
)

type offerUsecase interface {
	ListOffersForTransporter(ctx context.Context, transporterID string, filter domain.StatusFilter) ([]domain.Offer, error)
	Accept(ctx context.Context, offerID, transporterID string) (domain.Offer, error)
	Decline(ctx context.Context, offerID, transporterID, reason string) (domain.Offer, error)
	Counter(ctx context.Context, offerID, transporterID string, fee decimal.Decimal) (domain.Offer, error)
	Tiers() domain.Tiers
}

// NewOfferUsecase wires a dispatch Service into an offerUsecase.
func NewOfferUsecase(svc *dispatch.Service) offerUsecase {
	return svc
}

type dispatchUsecase interface {
	CreateDispatch(ctx context.Context, req domain.DispatchRequest) (*domain.Group, error)
	Dispatch(ctx context.Context, orderID, farmerID string) (*domain.Group, error)
	State(ctx context.Context, orderID string) (domain.State, *domain.Group, error)
	Tiers() domain.Tiers
}

// NewDispatchUsecase wires a dispatch Service into a dispatchUsecase.
func NewDispatchUsecase(svc *dispatch.Service) dispatchUsecase {
	return svc
}
