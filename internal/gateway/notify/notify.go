// Package notify publishes dispatch notifications to Redis pub/sub channels.
// Delivery to devices is owned by downstream subscribers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event names.
const (
	EventNewOffer      = "new_offer"
	EventOrderAssigned = "order_assigned"
	EventAllDeclined   = "all_declined"
)

// Recipient kinds used in channel names.
const (
	RecipientTransporter = "transporter"
	RecipientFarmer      = "farmer"
)

// Message is the JSON body of a notification.
type Message struct {
	Event       string         `json:"event"`
	RecipientID string         `json:"recipient_id"`
	OrderID     string         `json:"order_id"`
	OfferID     string         `json:"offer_id,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	OccurredAt  time.Time      `json:"occurred_at"`
}

type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisGateway publishes notifications with PUBLISH <prefix>.<kind>.<recipient>.
type RedisGateway struct {
	client publisher
	prefix string
	now    func() time.Time
}

// NewRedisClient creates a go-redis client.
func NewRedisClient(addr, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
}

// NewRedisGateway creates a RedisGateway. An empty prefix means "notifications".
func NewRedisGateway(client publisher, prefix string) *RedisGateway {
	if prefix == "" {
		prefix = "notifications"
	}
	return &RedisGateway{client: client, prefix: prefix, now: func() time.Time { return time.Now().UTC() }}
}

// NotifyTransporter publishes to the transporter channel.
func (g *RedisGateway) NotifyTransporter(ctx context.Context, transporterID string, msg Message) error {
	return g.publish(ctx, RecipientTransporter, transporterID, msg)
}

// NotifyFarmer publishes to the farmer channel.
func (g *RedisGateway) NotifyFarmer(ctx context.Context, farmerID string, msg Message) error {
	return g.publish(ctx, RecipientFarmer, farmerID, msg)
}

// Channel returns the channel name for a recipient.
func (g *RedisGateway) Channel(kind, recipientID string) string {
	return g.prefix + "." + kind + "." + recipientID
}

func (g *RedisGateway) publish(ctx context.Context, kind, recipientID string, msg Message) error {
	msg.RecipientID = recipientID
	if msg.OccurredAt.IsZero() {
		msg.OccurredAt = g.now()
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("notify gateway: encode %s: %w", msg.Event, err)
	}
	if err := g.client.Publish(ctx, g.Channel(kind, recipientID), body).Err(); err != nil {
		return fmt.Errorf("notify gateway: publish %s to %s %q: %w", msg.Event, kind, recipientID, err)
	}
	return nil
}
