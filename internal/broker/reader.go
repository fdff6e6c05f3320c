// Package broker adapts the Kafka client to the narrow interfaces the
// pipeline and the API consume.
package broker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/fraudsight/fraudsight/internal/service"
)

// ReaderConfig configures the consumer subscription.
type ReaderConfig struct {
	Brokers string // comma-separated bootstrap addresses
	Topic   string
	GroupID string
}

// Reader implements service.MessageSource over a Kafka consumer group with
// auto-committed offsets, starting from the latest offset on a fresh group so
// history is never replayed on first deployment.
type Reader struct {
	reader *kafka.Reader
}

// NewReader opens the subscription.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	if cfg.Brokers == "" || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, fmt.Errorf("broker, topic and group id are required")
	}

	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     strings.Split(cfg.Brokers, ","),
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		StartOffset: kafka.LastOffset,
		// Commit asynchronously on an interval (auto-commit).
		CommitInterval: time.Second,
		MinBytes:       1,
		MaxBytes:       10 << 20,
	})

	return &Reader{reader: r}, nil
}

// Fetch blocks for the next message. A ctx deadline expiry surfaces as
// context.DeadlineExceeded, which the pipeline treats as a poll timeout.
func (r *Reader) Fetch(ctx context.Context) (service.Message, error) {
	msg, err := r.reader.ReadMessage(ctx)
	if err != nil {
		return service.Message{}, err
	}
	return service.Message{Key: msg.Key, Value: msg.Value}, nil
}

// Close releases the consumer group membership.
func (r *Reader) Close() error {
	return r.reader.Close()
}
