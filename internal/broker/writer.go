package broker

import (
	"context"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/fraudsight/fraudsight/internal/common"
)

// Writer publishes transaction events: key is the transaction id as raw
// bytes, value the UTF-8 JSON encoding of the event.
type Writer struct {
	writer *kafka.Writer
}

// NewWriter builds a producer for the topic. Connections are established
// lazily on first publish.
func NewWriter(brokers, topic string) (*Writer, error) {
	if brokers == "" || topic == "" {
		return nil, fmt.Errorf("broker and topic are required")
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // key-partitioned, preserves per-id ordering
		RequiredAcks: kafka.RequireOne,
	}

	return &Writer{writer: w}, nil
}

// Publish writes one message, waiting for broker acknowledgment.
func (w *Writer) Publish(ctx context.Context, key, value []byte) error {
	err := w.writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrBrokerUnavailable, err)
	}
	return nil
}

// Close flushes and releases the producer.
func (w *Writer) Close() error {
	return w.writer.Close()
}
