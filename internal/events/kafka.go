package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes events as JSON, keyed by attempt so one attempt's
// events stay ordered within a partition. Countdown ticks are not sent.
type KafkaSink struct {
	writer  MessageWriter
	timeout time.Duration
}

// NewKafkaWriter builds an async writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Compression:  kafka.Zstd,
	}
}

// NewKafkaSink wraps writer.
func NewKafkaSink(writer MessageWriter) *KafkaSink {
	return &KafkaSink{writer: writer, timeout: 5 * time.Second}
}

func (s *KafkaSink) Publish(ctx context.Context, e Event) error {
	if e.Type == ExpiryTick {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", e.Type, err)
	}

	writeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	msg := kafka.Message{
		Key:   []byte(e.Attempt),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(e.Type)},
		},
		Time: e.Time,
	}
	if err := s.writer.WriteMessages(writeCtx, msg); err != nil {
		return fmt.Errorf("publish event %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSink) Close() error { return s.writer.Close() }
