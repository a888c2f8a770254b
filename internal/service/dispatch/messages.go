package dispatch

import (
	"time"

	"transport-dispatch/internal/domain"
	"transport-dispatch/internal/gateway/notify"
)

func newMessage(event string, o domain.Offer, payload map[string]any, at time.Time) notify.Message {
	return notify.Message{
		Event:      event,
		OrderID:    o.OrderID,
		OfferID:    o.ID,
		Payload:    payload,
		OccurredAt: at,
	}
}
