package app

import (
	"context"
	"errors"
	"time"

	"go.uber.org/dig"

	"transport-dispatch/internal/apperr"
	"transport-dispatch/internal/config"
	"transport-dispatch/internal/logx"
	"transport-dispatch/internal/service/dispatch"
	"transport-dispatch/internal/service/orders"
	"transport-dispatch/internal/transport/kafka"
)

const orderEventTimeout = 10 * time.Second

// makeOrdersKafka bounds each event by timeout. Errors that a redelivery
// cannot fix are marked permanent so the consumer commits past them.
func makeOrdersKafka(p *orders.Processor, timeout time.Duration) kafka.HandleFunc {
	return func(ctx context.Context, event orders.Event) error {
		evCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		err := p.Handle(evCtx, event)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, apperr.ErrInvalid),
			errors.Is(err, apperr.ErrConflict),
			errors.Is(err, apperr.ErrNotFound),
			errors.Is(err, apperr.ErrRankingUnavailable):
			return kafka.Permanent(err)
		default:
			return err
		}
	}
}

func newOrdersProcessor(svc *dispatch.Service, gw dispatch.OrderGateway, logger logx.Logger) *orders.Processor {
	return orders.NewProcessor(svc, gw, logger.With(logx.String("component", "orders")))
}

type orderConsumerIn struct {
	dig.In

	Cfg       *config.Config
	Logger    logx.Logger
	Processor *orders.Processor
	Closers   *closers
}

func newOrderEventsConsumer(in orderConsumerIn) (*kafka.Consumer, error) {
	kc := in.Cfg.Kafka
	c, err := kafka.NewConsumer(
		in.Logger.With(logx.String("component", "kafka")),
		kc.Brokers,
		kc.GroupID,
		kc.OrdersTopic,
		makeOrdersKafka(in.Processor, orderEventTimeout),
	)
	if err != nil {
		return nil, err
	}
	if c != nil {
		in.Closers.add("kafka consumer", c.Close)
	}
	return c, nil
}

func registerOrderEvents(container *dig.Container) error {
	return provideAll(container,
		newOrdersProcessor,
		newOrderEventsConsumer,
	)
}
