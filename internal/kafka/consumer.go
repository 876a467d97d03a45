package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/Domenick1991/airport-booking/internal/metrics"
)

// messageReader is the part of *kafka.Reader the consumer needs.
type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// EventHandler processes one booking event. An error stops consumption.
type EventHandler func(ctx context.Context, event BookingEvent) error

// Consumer reads booking events from one topic as a member of a consumer group.
type Consumer struct {
	reader messageReader
	logger logrus.FieldLogger
}

func NewConsumer(brokers []string, groupID, topic string, logger logrus.FieldLogger) *Consumer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:           brokers,
			GroupID:           groupID,
			Topic:             topic,
			StartOffset:       kafka.FirstOffset,
			MaxWait:           time.Second,
			HeartbeatInterval: 3 * time.Second,
			SessionTimeout:    30 * time.Second,
		}),
		logger: logger.WithField("topic", topic),
	}
}

func (c *Consumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

// ConsumeBookingEvents hands every event to handle until ctx ends, which returns nil.
// Messages that do not decode are counted, logged and skipped.
func (c *Consumer) ConsumeBookingEvents(ctx context.Context, handle EventHandler) error {
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read booking event: %w", err)
		}

		event, err := DecodeBookingEvent(msg.Value)
		if err != nil {
			metrics.IncKafkaError("consumer", "decode")
			c.logger.WithError(err).WithFields(logrus.Fields{
				"partition": msg.Partition,
				"offset":    msg.Offset,
			}).Error("skipping undecodable booking event")
			continue
		}

		if err := handle(ctx, event); err != nil {
			return fmt.Errorf("handle %s for booking %s: %w", event.Type, event.BookingID, err)
		}
		metrics.IncKafkaProcessed()
	}
}

// DecodeBookingEvent parses a message value. Events without a type or booking id are rejected.
func DecodeBookingEvent(value []byte) (BookingEvent, error) {
	var event BookingEvent
	if err := json.Unmarshal(value, &event); err != nil {
		return BookingEvent{}, fmt.Errorf("decode booking event: %w", err)
	}
	if event.Type == "" || event.BookingID == "" {
		return BookingEvent{}, errors.New("booking event without type or booking id")
	}
	return event, nil
}
