package orders

import (
	"context"
	"errors"

	"transport-dispatch/internal/apperr"
	"transport-dispatch/internal/logx"
)

// Processor processes orders events
type Processor struct {
	dispatcher Dispatcher
	orders     UnfulfilledMarker
	logger     logx.Logger
	factory    *actionFactory
}

// NewProcessor creates a new orders.Processor
func NewProcessor(dispatcher Dispatcher, orders UnfulfilledMarker, logger logx.Logger) *Processor {
	if logger == nil {
		logger = logx.Nop()
	}
	p := &Processor{
		dispatcher: dispatcher,
		orders:     orders,
		logger:     logger,
	}
	p.factory = newActionFactory(p.onTransportRequested)
	return p
}

// Handle processes a single orders.Event. Unknown statuses are skipped.
func (p *Processor) Handle(ctx context.Context, e Event) error {
	if p.factory == nil {
		return nil
	}
	fn, ok := p.factory.get(e.Status)
	if !ok {
		return nil
	}
	return fn(ctx, e)
}

func (p *Processor) onTransportRequested(ctx context.Context, e Event) error {
	_, err := p.dispatcher.Dispatch(ctx, e.OrderID, e.FarmerID)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, apperr.ErrDispatchInProgress):
		// redelivered event
		return nil
	case errors.Is(err, apperr.ErrInvalid):
		p.logger.Warn("order event rejected",
			logx.String("order_id", e.OrderID),
			logx.Err(err),
		)
		return nil
	case errors.Is(err, apperr.ErrNoCandidates):
		p.logger.Info("no transport available",
			logx.String("order_id", e.OrderID),
			logx.Err(err),
		)
		return p.orders.MarkUnfulfilled(ctx, e.OrderID)
	case errors.Is(err, apperr.ErrRankingUnavailable):
		p.logger.Error("order event cannot be ranked",
			logx.String("order_id", e.OrderID),
			logx.Err(err),
		)
		return err
	default:
		return err
	}
}
