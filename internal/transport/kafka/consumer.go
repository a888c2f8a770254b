package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"transport-dispatch/internal/logx"
	"transport-dispatch/internal/service/orders"
)

// HandleFunc processes a single orders.Event from Kafka
type HandleFunc func(context.Context, orders.Event) error

var newConsumerGroup = sarama.NewConsumerGroup

var consumeRetryDelay = time.Second

// Consumer wraps a Sarama consumer group and dispatches events to a handler
type Consumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler HandleFunc
	logger  logx.Logger
}

// NewConsumer creates a new Kafka consumer. It returns nil when Kafka is not configured.
func NewConsumer(logger logx.Logger, brokers []string, groupID, topic string, h HandleFunc) (*Consumer, error) {
	if len(brokers) == 0 || strings.TrimSpace(topic) == "" || strings.TrimSpace(groupID) == "" {
		return nil, nil
	}

	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := newConsumerGroup(brokers, groupID, cfg)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		topic:   topic,
		handler: h,
		logger:  logger,
	}, nil
}

// Run consumes until ctx is canceled
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil {
		return nil
	}

	h := &groupHandler{c: c}

	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("kafka consume error", logx.String("topic", c.topic), logx.Err(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(consumeRetryDelay):
			}
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Close closes the consumer group
func (c *Consumer) Close() error {
	if c == nil {
		return nil
	}
	return c.group.Close()
}

type groupHandler struct{ c *Consumer }

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim marks malformed and permanently failing messages. Any other
// handler error ends the session so the message is redelivered.
func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	log := h.c.logger
	for msg := range claim.Messages() {
		var dto EventDTO
		if err := json.Unmarshal(msg.Value, &dto); err != nil {
			log.Warn("kafka bad json", logx.Int64("offset", msg.Offset), logx.Err(err))
			sess.MarkMessage(msg, "")
			continue
		}
		ev := ToDomain(dto)
		if ev.OrderID == "" {
			log.Warn("kafka empty order_id", logx.Int64("offset", msg.Offset))
			sess.MarkMessage(msg, "")
			continue
		}

		if err := h.c.handler(sess.Context(), ev); err != nil {
			var perm PermanentError
			if errors.As(err, &perm) {
				log.Error("kafka handle failed, skipping message",
					logx.String("order_id", ev.OrderID),
					logx.String("status", ev.Status),
					logx.Err(err),
				)
				sess.MarkMessage(msg, "")
				continue
			}
			log.Error("kafka handle failed, retrying",
				logx.String("order_id", ev.OrderID),
				logx.String("status", ev.Status),
				logx.Err(err),
			)
			return err
		}

		sess.MarkMessage(msg, "")
	}
	return nil
}
