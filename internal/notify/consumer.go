package notify

import (
	"context"
	"errors"
	"fmt"

	"storecore/internal/config"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Handler reacts to one decoded notification.
type Handler func(ctx context.Context, n Notification) error

// Consumer reads every notification topic as one consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	topics  []string
	handler Handler
	logger  *zap.Logger
}

func NewConsumer(cfg config.Kafka, handler Handler, logger *zap.Logger) (*Consumer, error) {
	sc := sarama.NewConfig()
	sc.Consumer.Return.Errors = true
	sc.Consumer.Offsets.Initial = sarama.OffsetOldest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka consumer group: %w", err)
	}

	topics := make([]string, len(Kinds))
	for i, k := range Kinds {
		topics[i] = Topic(cfg.TopicPrefix, k)
	}

	return &Consumer{group: group, topics: topics, handler: handler, logger: logger}, nil
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("Kafka consumer error", zap.Error(err))
		}
	}()

	c.logger.Info("Kafka consumer started", zap.Strings("topics", c.topics))
	for {
		if err := c.group.Consume(ctx, c.topics, c); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

func (c *Consumer) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		if err := c.handle(session.Context(), msg); err != nil {
			// Poison messages are logged and skipped.
			c.logger.Error("failed to handle notification",
				zap.String("topic", msg.Topic),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

func (c *Consumer) handle(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ctx = otel.GetTextMapPropagator().Extract(ctx, saramaHeaderCarrierConsumer(msg.Headers))
	ctx, span := otel.Tracer("notifier").Start(ctx, "HandleNotification")
	defer span.End()

	n, err := Decode(msg.Value)
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String("notification.kind", string(n.Kind())))

	return c.handler(ctx, n)
}
