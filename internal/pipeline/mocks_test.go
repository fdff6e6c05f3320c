package pipeline

import (
	"context"
	"sync"

	"github.com/fraudsight/fraudsight/internal/model"
	"github.com/fraudsight/fraudsight/internal/service"
)

// mockSource feeds messages to the pipeline from a channel and honors
// context cancellation like the real broker reader.
type mockSource struct {
	messages   chan service.Message
	mu         sync.Mutex
	closed     bool
	fetchErr   error
	fetchCalls int
}

func newMockSource() *mockSource {
	return &mockSource{messages: make(chan service.Message, 16)}
}

func (m *mockSource) push(value []byte) {
	m.messages <- service.Message{Value: value}
}

func (m *mockSource) Fetch(ctx context.Context) (service.Message, error) {
	m.mu.Lock()
	m.fetchCalls++
	err := m.fetchErr
	m.mu.Unlock()

	if err != nil {
		return service.Message{}, err
	}

	select {
	case msg := <-m.messages:
		return msg, nil
	case <-ctx.Done():
		return service.Message{}, ctx.Err()
	}
}

func (m *mockSource) setFetchErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetchErr = err
}

func (m *mockSource) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetchCalls
}

func (m *mockSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockSource) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// upsertRecord captures one UpsertScored call.
type upsertRecord struct {
	Event   model.InboundEvent
	Score   float64
	IsFraud bool
}

// mockStorage records upserts and can inject failures or block mid-upsert.
type mockStorage struct {
	mu       sync.Mutex
	upserts  []upsertRecord
	err      error
	entered  chan struct{} // closed-over signal per blocked upsert, if set
	release  chan struct{} // upsert blocks until this is closed, if set
}

func newMockStorage() *mockStorage {
	return &mockStorage{}
}

func (m *mockStorage) UpsertScored(_ context.Context, event model.InboundEvent, score float64, isFraud bool) error {
	m.mu.Lock()
	entered, release, err := m.entered, m.release, m.err
	m.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if release != nil {
		<-release
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts = append(m.upserts, upsertRecord{Event: event, Score: score, IsFraud: isFraud})
	return nil
}

func (m *mockStorage) records() []upsertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]upsertRecord, len(m.upserts))
	copy(out, m.upserts)
	return out
}

func (m *mockStorage) GetTransaction(context.Context, string) (*model.Transaction, error) {
	return nil, nil
}

func (m *mockStorage) ListFlagged(context.Context, int, *model.Status) ([]model.Transaction, error) {
	return nil, nil
}

func (m *mockStorage) SaveReview(context.Context, model.Review) error { return nil }

func (m *mockStorage) Stats(context.Context, string) (*model.Stats, error) { return nil, nil }

func (m *mockStorage) Migrate(context.Context) error { return nil }

func (m *mockStorage) Close() error { return nil }

// mockCache records flagged pushes and can inject failures.
type mockCache struct {
	mu     sync.Mutex
	pushes map[string][]byte
	order  []string
	err    error
}

func newMockCache() *mockCache {
	return &mockCache{pushes: make(map[string][]byte)}
}

func (m *mockCache) PushFlagged(_ context.Context, id string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.pushes[id] = payload
	m.order = append(m.order, id)
	return nil
}

func (m *mockCache) RecentFlaggedIDs(_ context.Context, limit int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, limit)
	for i := len(m.order) - 1; i >= 0 && len(ids) < limit; i-- {
		ids = append(ids, m.order[i])
	}
	return ids, nil
}

func (m *mockCache) GetPayload(_ context.Context, id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushes[id], nil
}

func (m *mockCache) Close() error { return nil }

func (m *mockCache) pushed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}
