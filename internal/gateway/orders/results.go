// Package order reports dispatch outcomes back to the order service.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Result statuses published to the order service.
const (
	StatusAssigned    = "assigned"
	StatusUnfulfilled = "unfulfilled"
)

// Result is the message published for every terminal dispatch group.
type Result struct {
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	TransporterID string    `json:"transporter_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// KafkaGateway publishes dispatch results to a Kafka topic keyed by order id.
type KafkaGateway struct {
	producer sarama.SyncProducer
	topic    string
	now      func() time.Time
}

// NewSyncProducer creates a producer that waits for all in-sync replicas.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 3
	cfg.Producer.Idempotent = false
	p, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("order gateway: new producer: %w", err)
	}
	return p, nil
}

// NewKafkaGateway creates an order gateway backed by a Kafka producer.
func NewKafkaGateway(producer sarama.SyncProducer, topic string) *KafkaGateway {
	if producer == nil {
		return nil
	}
	return &KafkaGateway{producer: producer, topic: topic, now: func() time.Time { return time.Now().UTC() }}
}

// MarkAssigned reports that transporterID accepted the order.
func (g *KafkaGateway) MarkAssigned(ctx context.Context, orderID, transporterID string) error {
	return g.publish(ctx, Result{OrderID: orderID, Status: StatusAssigned, TransporterID: transporterID})
}

// MarkUnfulfilled reports that no transporter took the order.
func (g *KafkaGateway) MarkUnfulfilled(ctx context.Context, orderID string) error {
	return g.publish(ctx, Result{OrderID: orderID, Status: StatusUnfulfilled})
}

// Close closes the underlying producer.
func (g *KafkaGateway) Close() error {
	return g.producer.Close()
}

func (g *KafkaGateway) publish(ctx context.Context, r Result) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.OccurredAt = g.now()
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("order gateway: encode result: %w", err)
	}
	_, _, err = g.producer.SendMessage(&sarama.ProducerMessage{
		Topic: g.topic,
		Key:   sarama.StringEncoder(r.OrderID),
		Value: sarama.ByteEncoder(body),
	})
	if err != nil {
		return fmt.Errorf("order gateway: publish %s for order %q: %w", r.Status, r.OrderID, err)
	}
	return nil
}
