package app

import (
	"context"

	"transport-dispatch/internal/gateway/notify"
	"transport-dispatch/internal/logx"
)

// logOrders stands in for the results producer when no brokers are configured.
type logOrders struct {
	logger logx.Logger
}

func (g logOrders) MarkAssigned(_ context.Context, orderID, transporterID string) error {
	g.logger.Info("order assigned",
		logx.String("order_id", orderID),
		logx.String("transporter_id", transporterID),
	)
	return nil
}

func (g logOrders) MarkUnfulfilled(_ context.Context, orderID string) error {
	g.logger.Info("order unfulfilled", logx.String("order_id", orderID))
	return nil
}

// logNotifier stands in for the Redis publisher when no address is configured.
type logNotifier struct {
	logger logx.Logger
}

func (n logNotifier) NotifyTransporter(_ context.Context, transporterID string, msg notify.Message) error {
	n.logger.Info("transporter notification",
		logx.String("transporter_id", transporterID),
		logx.String("event", msg.Event),
		logx.String("offer_id", msg.OfferID),
	)
	return nil
}

func (n logNotifier) NotifyFarmer(_ context.Context, farmerID string, msg notify.Message) error {
	n.logger.Info("farmer notification",
		logx.String("farmer_id", farmerID),
		logx.String("event", msg.Event),
		logx.String("order_id", msg.OrderID),
	)
	return nil
}
