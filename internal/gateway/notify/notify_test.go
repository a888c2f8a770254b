package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"transport-dispatch/internal/gateway/notify"
)

type published struct {
	channel string
	body    []byte
}

type fakePublisher struct {
	sent []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	if f.err != nil {
		return redis.NewIntResult(0, f.err)
	}
	f.sent = append(f.sent, published{channel: channel, body: message.([]byte)})
	return redis.NewIntResult(1, nil)
}

func TestRedisGateway_NotifyTransporter(t *testing.T) {
	pub := &fakePublisher{}
	gw := notify.NewRedisGateway(pub, "")

	err := gw.NotifyTransporter(context.Background(), "t1", notify.Message{
		Event:   notify.EventNewOffer,
		OrderID: "o1",
		OfferID: "off-1",
		Payload: map[string]any{"tier": "primary"},
	})
	require.NoError(t, err)
	require.Len(t, pub.sent, 1)
	require.Equal(t, "notifications.transporter.t1", pub.sent[0].channel)

	var msg notify.Message
	require.NoError(t, json.Unmarshal(pub.sent[0].body, &msg))
	require.Equal(t, notify.EventNewOffer, msg.Event)
	require.Equal(t, "t1", msg.RecipientID)
	require.Equal(t, "o1", msg.OrderID)
	require.Equal(t, "off-1", msg.OfferID)
	require.Equal(t, "primary", msg.Payload["tier"])
	require.False(t, msg.OccurredAt.IsZero())
}

func TestRedisGateway_NotifyFarmerKeepsTimestamp(t *testing.T) {
	pub := &fakePublisher{}
	gw := notify.NewRedisGateway(pub, "agri")
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, gw.NotifyFarmer(context.Background(), "f1", notify.Message{
		Event: notify.EventAllDeclined, OrderID: "o1", OccurredAt: at,
	}))
	require.Equal(t, "agri.farmer.f1", pub.sent[0].channel)

	var msg notify.Message
	require.NoError(t, json.Unmarshal(pub.sent[0].body, &msg))
	require.True(t, msg.OccurredAt.Equal(at))
	require.NotContains(t, string(pub.sent[0].body), "offer_id")
}

func TestRedisGateway_PublishErrorWrapped(t *testing.T) {
	boom := errors.New("redis down")
	gw := notify.NewRedisGateway(&fakePublisher{err: boom}, "")

	err := gw.NotifyFarmer(context.Background(), "f1", notify.Message{Event: notify.EventOrderAssigned})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "order_assigned")
}
