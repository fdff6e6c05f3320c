package api

import (
	"context"
	"sync"

	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/model"
)

// mockStorage serves canned responses and records review saves.
type mockStorage struct {
	mu      sync.Mutex
	txns    map[string]*model.Transaction
	flagged []model.Transaction
	stats   *model.Stats
	reviews []model.Review

	getErr    error
	listErr   error
	reviewErr error
	statsErr  error

	lastListLimit  int
	lastListStatus *model.Status
	lastWindow     string
}

func newMockStorage() *mockStorage {
	return &mockStorage{txns: make(map[string]*model.Transaction)}
}

func (m *mockStorage) UpsertScored(context.Context, model.InboundEvent, float64, bool) error {
	return nil
}

func (m *mockStorage) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	txn, ok := m.txns[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return txn, nil
}

func (m *mockStorage) ListFlagged(_ context.Context, limit int, status *model.Status) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastListLimit = limit
	m.lastListStatus = status
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.flagged, nil
}

func (m *mockStorage) SaveReview(_ context.Context, review model.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reviewErr != nil {
		return m.reviewErr
	}
	m.reviews = append(m.reviews, review)
	return nil
}

func (m *mockStorage) Stats(_ context.Context, window string) (*model.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastWindow = window
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

func (m *mockStorage) Migrate(context.Context) error { return nil }

func (m *mockStorage) Close() error { return nil }

func (m *mockStorage) savedReviews() []model.Review {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Review, len(m.reviews))
	copy(out, m.reviews)
	return out
}

// mockCache is an in-memory FlaggedCache.
type mockCache struct {
	mu       sync.Mutex
	order    []string
	payloads map[string][]byte
	err      error
}

func newMockCache() *mockCache {
	return &mockCache{payloads: make(map[string][]byte)}
}

func (m *mockCache) PushFlagged(_ context.Context, id string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.order = append([]string{id}, m.order...)
	m.payloads[id] = payload
	return nil
}

func (m *mockCache) RecentFlaggedIDs(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if limit > len(m.order) {
		limit = len(m.order)
	}
	out := make([]string, limit)
	copy(out, m.order[:limit])
	return out, nil
}

func (m *mockCache) GetPayload(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payload, ok := m.payloads[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	return payload, nil
}

func (m *mockCache) Close() error { return nil }

// mockPublisher records published messages and can inject failures.
type mockPublisher struct {
	mu        sync.Mutex
	published []publishedMessage
	err       error
}

type publishedMessage struct {
	Key   []byte
	Value []byte
}

func newMockPublisher() *mockPublisher {
	return &mockPublisher{}
}

func (m *mockPublisher) Publish(_ context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, publishedMessage{Key: key, Value: value})
	return nil
}

func (m *mockPublisher) Close() error { return nil }

func (m *mockPublisher) messages() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.published))
	copy(out, m.published)
	return out
}
