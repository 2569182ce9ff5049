package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/notdp/franxx-store-sub000/internal/config"
	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	Writer MessageWriter
	Topics config.TopicConfig
	log    *logger.Logger
}

func NewProducer(brokers []string, topics config.TopicConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return NewProducerWithWriter(writer, topics, log)
}

func NewProducerWithWriter(writer MessageWriter, topics config.TopicConfig, log *logger.Logger) *Producer {
	return &Producer{Writer: writer, Topics: topics, log: log}
}

// PublishOrderCreated streams the order creation event to Kafka
func (p *Producer) PublishOrderCreated(ctx context.Context, event models.OrderEvent) error {
	return p.publish(ctx, p.Topics.OrderCreated, event)
}

// PublishOrderDelivered streams the fulfilment event, credentials included, to Kafka
func (p *Producer) PublishOrderDelivered(ctx context.Context, event models.OrderEvent) error {
	return p.publish(ctx, p.Topics.OrderDelivered, event)
}

// PublishOrderFailed streams the failed payment event to Kafka
func (p *Producer) PublishOrderFailed(ctx context.Context, event models.OrderEvent) error {
	return p.publish(ctx, p.Topics.OrderFailed, event)
}

func (p *Producer) publish(ctx context.Context, topic string, event models.OrderEvent) error {
	msgBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event.Type, err)
	}

	err = p.Writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event.OrderID),
		Value: msgBytes,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}

	p.log.LogKafka("PUBLISH", topic, fmt.Sprintf("%s for order %s", event.Type, event.OrderID))
	return nil
}

func (p *Producer) Close() error {
	return p.Writer.Close()
}

// NoopPublisher stands in when Kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderCreated(context.Context, models.OrderEvent) error   { return nil }
func (NoopPublisher) PublishOrderDelivered(context.Context, models.OrderEvent) error { return nil }
func (NoopPublisher) PublishOrderFailed(context.Context, models.OrderEvent) error    { return nil }
