package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/notdp/franxx-store-sub000/internal/logger"
	"github.com/notdp/franxx-store-sub000/internal/models"
	"github.com/segmentio/kafka-go"
)

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader MessageReader
	log    *logger.Logger
}

// NewConsumer joins groupID and reads every topic in topics.
func NewConsumer(brokers []string, topics []string, groupID string, log *logger.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokers,
		GroupTopics: topics,
		GroupID:     groupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
	})
	return NewConsumerWithReader(reader, log)
}

func NewConsumerWithReader(reader MessageReader, log *logger.Logger) *Consumer {
	return &Consumer{reader: reader, log: log}
}

// Start consumes until ctx is cancelled. Messages are committed after the
// handler returns, even when it fails, so a poison message cannot stall the group.
func (c *Consumer) Start(ctx context.Context, handler func(ctx context.Context, event models.OrderEvent) error) error {
	c.log.Info("KAFKA", "Consumer started")

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
				c.log.Info("KAFKA", "Consumer stopped")
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		var event models.OrderEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.log.Warn("KAFKA", fmt.Sprintf("Skipping malformed message on %s at offset %d: %v", msg.Topic, msg.Offset, err))
		} else {
			c.log.LogKafka("RECEIVE", msg.Topic, fmt.Sprintf("%s for order %s", event.Type, event.OrderID))
			if err := handler(ctx, event); err != nil {
				c.log.Error("KAFKA", fmt.Sprintf("Handler failed for order %s: %v", event.OrderID, err))
			}
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("KAFKA", fmt.Sprintf("Commit failed on %s at offset %d: %v", msg.Topic, msg.Offset, err))
		}
	}
}

// Close gracefully shuts down the Kafka reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
