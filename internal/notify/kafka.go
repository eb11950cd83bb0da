package notify

import (
	"context"
	"fmt"
	"time"

	"storecore/internal/config"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

func InitProducer(cfg config.Kafka, logger *zap.Logger) (sarama.SyncProducer, error) {
	sc := sarama.NewConfig()
	sc.Producer.Return.Successes = true
	sc.Producer.RequiredAcks = sarama.WaitForAll
	sc.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(cfg.Brokers, sc)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	logger.Info("Kafka producer initialized", zap.Strings("brokers", cfg.Brokers))
	return producer, nil
}

type KafkaPublisher struct {
	producer    sarama.SyncProducer
	topicPrefix string
	logger      *zap.Logger
	now         func() time.Time
}

func NewKafkaPublisher(producer sarama.SyncProducer, topicPrefix string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer:    producer,
		topicPrefix: topicPrefix,
		logger:      logger,
		now:         time.Now,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, n Notification) error {
	value, err := Encode(n, p.now())
	if err != nil {
		return err
	}

	topic := Topic(p.topicPrefix, n.Kind())
	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(n.Key()),
		Value: sarama.ByteEncoder(value),
	}

	// Inject trace context into Kafka message headers
	carrier := make(saramaHeaderCarrierProducer, 0)
	otel.GetTextMapPropagator().Inject(ctx, &carrier)
	msg.Headers = []sarama.RecordHeader(carrier)

	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}

	p.logger.Debug("notification published",
		zap.String("trace_id", traceID(ctx)),
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

func traceID(ctx context.Context) string {
	span := trace.SpanFromContext(ctx)
	if span.SpanContext().IsValid() {
		return span.SpanContext().TraceID().String()
	}
	return ""
}

// saramaHeaderCarrierProducer implements the TextMapCarrier interface for Kafka headers (for producer)
type saramaHeaderCarrierProducer []sarama.RecordHeader

func (c saramaHeaderCarrierProducer) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *saramaHeaderCarrierProducer) Set(key, value string) {
	*c = append(*c, sarama.RecordHeader{
		Key:   []byte(key),
		Value: []byte(value),
	})
}

func (c saramaHeaderCarrierProducer) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}

// saramaHeaderCarrierConsumer implements the TextMapCarrier interface for Kafka headers (for consumer)
type saramaHeaderCarrierConsumer []*sarama.RecordHeader

func (c saramaHeaderCarrierConsumer) Get(key string) string {
	for _, h := range c {
		if string(h.Key) == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c saramaHeaderCarrierConsumer) Set(key, value string) {}

func (c saramaHeaderCarrierConsumer) Keys() []string {
	keys := make([]string, len(c))
	for i, h := range c {
		keys[i] = string(h.Key)
	}
	return keys
}
