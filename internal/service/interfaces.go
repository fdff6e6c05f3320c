// Package service defines the narrow interfaces between the ingestion
// pipeline and its collaborators.
package service

import (
	"context"
	"time"

	"github.com/fraudsight/fraudsight/internal/model"
)

// Storage defines the contract for the durable persistence layer. It
// exclusively owns Transaction and Review durability.
type Storage interface {
	// UpsertScored inserts or updates the transaction for event's id within a
	// single store-level transaction, setting score, fraud flag and the
	// derived status. Identity fields of an existing row are left untouched.
	UpsertScored(ctx context.Context, event model.InboundEvent, score float64, isFraud bool) error

	// GetTransaction returns the transaction by id, or common.ErrNotFound.
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)

	// ListFlagged returns flagged transactions newest-first, optionally
	// filtered by status.
	ListFlagged(ctx context.Context, limit int, status *model.Status) ([]model.Transaction, error)

	// SaveReview creates or replaces the single review row for a transaction
	// and sets the transaction status to match the decision.
	SaveReview(ctx context.Context, review model.Review) error

	// Stats aggregates fraud/clean counts over a rolling window ("7d"/"30d";
	// anything else defaults to 7d).
	Stats(ctx context.Context, window string) (*model.Stats, error)

	// Migrate brings the schema to the expected version.
	Migrate(ctx context.Context) error

	Close() error
}

// FlaggedCache is the bounded, best-effort recency view of flagged
// transactions. It is not a source of truth: pushes may be lost and entries
// are never removed when a later review changes a transaction's status.
type FlaggedCache interface {
	// PushFlagged records id as most-recent and snapshots its raw payload.
	// Both updates land atomically; a reader never sees an id without its
	// snapshot.
	PushFlagged(ctx context.Context, id string, payload []byte) error

	// RecentFlaggedIDs returns up to limit ids, most-recent first.
	RecentFlaggedIDs(ctx context.Context, limit int) ([]string, error)

	// GetPayload returns the payload snapshot for id, or common.ErrNotFound.
	GetPayload(ctx context.Context, id string) ([]byte, error)

	Close() error
}

// Message is one broker record.
type Message struct {
	Key   []byte
	Value []byte
}

// MessageSource is the pipeline's view of the broker subscription.
type MessageSource interface {
	// Fetch blocks for the next message, honoring ctx cancellation and
	// deadline. A deadline expiry surfaces as context.DeadlineExceeded.
	Fetch(ctx context.Context) (Message, error)

	// Close releases the subscription.
	Close() error
}

// Publisher writes transaction events onto the broker for the pipeline to
// consume later.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte) error
	Close() error
}

// RetryOptions configures retry behavior for operations that support it.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
