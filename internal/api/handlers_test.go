package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsight/fraudsight/internal/common"
	"github.com/fraudsight/fraudsight/internal/model"
	"github.com/fraudsight/fraudsight/internal/rules"
	"github.com/fraudsight/fraudsight/internal/scoring"
)

// Outside the decision-function range: the model never flags.
const thresholdNever = -0.6

type fixture struct {
	server    *Server
	store     *mockStorage
	cache     *mockCache
	publisher *mockPublisher
	auth      *Authenticator
	router    http.Handler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	forest, err := scoring.Train(scoring.SyntheticAmounts(1), scoring.TrainConfig{
		Trees:      10,
		SampleSize: 32,
		Seed:       1,
	})
	require.NoError(t, err)

	evaluator := rules.New(rules.Config{
		Enabled:            true,
		AmountHardMax:      1000,
		HighRiskCategories: []string{"jewelry"},
	})

	f := &fixture{
		store:     newMockStorage(),
		cache:     newMockCache(),
		publisher: newMockPublisher(),
		auth:      NewAuthenticator("test-secret", "admin", "hunter2"),
	}
	f.server = NewServer(f.store, f.cache, f.publisher, evaluator, scoring.NewScorer(forest, thresholdNever), f.auth)
	f.router = f.server.Router()
	return f
}

func (f *fixture) request(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T) string {
	t.Helper()

	token, err := f.auth.Login("admin", "hunter2")
	require.NoError(t, err)
	return token
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
}

func validEvent(id string, amount float64) model.InboundEvent {
	return model.InboundEvent{
		TransactionID:    id,
		UserID:           "user-1",
		Amount:           amount,
		Currency:         "USD",
		MerchantID:       "m_1",
		MerchantCategory: "electronics",
		Timestamp:        "2024-06-01T10:30:00Z",
		Channel:          "web",
		IP:               "203.0.113.7",
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestLogin(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/auth/login", loginRequest{Username: "admin", Password: "hunter2"}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "bearer", resp["token_type"])

	user, err := f.auth.Verify(resp["access_token"])
	require.NoError(t, err)
	assert.Equal(t, "admin", user)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/auth/login", loginRequest{Username: "admin", Password: "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/fraud/flagged", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodGet, "/fraud/flagged", nil, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.request(t, http.MethodGet, "/fraud/flagged", nil, f.login(t))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	f := newFixture(t)

	f.auth.nowFunc = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	token := f.login(t)
	f.auth.nowFunc = time.Now

	rec := f.request(t, http.MethodGet, "/fraud/flagged", nil, token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSubmitPublishesValidatedEvent(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/transactions", validEvent("tx-1", 50), "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Enqueued)
	assert.Equal(t, "tx-1", resp.ID)
	assert.False(t, resp.Precheck.IsFraud)
	assert.Empty(t, resp.Precheck.RuleReasons)

	msgs := f.publisher.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("tx-1"), msgs[0].Key)

	var published model.InboundEvent
	require.NoError(t, json.Unmarshal(msgs[0].Value, &published))
	assert.Equal(t, validEvent("tx-1", 50), published)
}

func TestSubmitPrecheckFlagsRuleHit(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/transactions", validEvent("tx-big", 5000), "")
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp submitResponse
	decodeBody(t, rec, &resp)
	assert.True(t, resp.Precheck.IsFraud)
	assert.Equal(t, []string{"amount>1000.0"}, resp.Precheck.RuleReasons)

	// Pre-annotation is advisory: nothing hit the store.
	assert.Empty(t, f.store.savedReviews())
}

func TestSubmitRejectsMalformedBody(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/transactions", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, f.publisher.messages())
}

func TestSubmitRejectsInvalidEvent(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.InboundEvent)
	}{
		{name: "missing transaction id", mutate: func(e *model.InboundEvent) { e.TransactionID = "" }},
		{name: "missing user id", mutate: func(e *model.InboundEvent) { e.UserID = "" }},
		{name: "bad ip", mutate: func(e *model.InboundEvent) { e.IP = "not-an-ip" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			event := validEvent("tx-1", 50)
			tt.mutate(&event)

			rec := f.request(t, http.MethodPost, "/transactions", event, "")
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Empty(t, f.publisher.messages())
		})
	}
}

func TestSubmitBrokerDown(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = fmt.Errorf("publish tx-1: %w", common.ErrBrokerUnavailable)

	rec := f.request(t, http.MethodPost, "/transactions", validEvent("tx-1", 50), "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListFlagged(t *testing.T) {
	f := newFixture(t)
	f.store.flagged = []model.Transaction{
		{ID: "tx-2", IsFraud: true, Status: model.StatusPendingReview},
		{ID: "tx-1", IsFraud: true, Status: model.StatusPendingReview},
	}

	rec := f.request(t, http.MethodGet, "/fraud/flagged?limit=10&status=PENDING_REVIEW", nil, f.login(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []model.Transaction `json:"items"`
		Count int                 `json:"count"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, "tx-2", resp.Items[0].ID)

	assert.Equal(t, 10, f.store.lastListLimit)
	require.NotNil(t, f.store.lastListStatus)
	assert.Equal(t, model.StatusPendingReview, *f.store.lastListStatus)
}

func TestListFlaggedRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/fraud/flagged?status=BOGUS", nil, f.login(t))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListFlaggedDefaultsLimit(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/fraud/flagged", nil, f.login(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, f.store.lastListLimit)
	assert.Nil(t, f.store.lastListStatus)
}

func TestRecentFlaggedServedFromCache(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.cache.PushFlagged(context.Background(), "tx-1", []byte(`{"transaction_id":"tx-1"}`)))
	require.NoError(t, f.cache.PushFlagged(context.Background(), "tx-2", []byte(`{"transaction_id":"tx-2"}`)))

	rec := f.request(t, http.MethodGet, "/fraud/recent?limit=5", nil, f.login(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []recentItem `json:"items"`
		Count int          `json:"count"`
	}
	decodeBody(t, rec, &resp)
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "tx-2", resp.Items[0].ID, "most recent first")
	assert.JSONEq(t, `{"transaction_id":"tx-2"}`, string(resp.Items[0].Event))
}

func TestGetTransaction(t *testing.T) {
	f := newFixture(t)
	f.store.txns["tx-1"] = &model.Transaction{
		ID:      "tx-1",
		UserID:  "user-1",
		Amount:  5000,
		IsFraud: true,
		Status:  model.StatusPendingReview,
	}

	rec := f.request(t, http.MethodGet, "/fraud/tx/tx-1", nil, f.login(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp model.Transaction
	decodeBody(t, rec, &resp)
	assert.Equal(t, "tx-1", resp.ID)
	assert.True(t, resp.IsFraud)
}

func TestGetTransactionNotFound(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodGet, "/fraud/tx/nope", nil, f.login(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReviewRecordsDecisionAndReviewer(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/fraud/review/tx-1",
		reviewRequest{Decision: "REJECTED", Notes: "card testing pattern"}, f.login(t))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	decodeBody(t, rec, &resp)
	assert.Equal(t, "REJECTED", resp["status"])

	reviews := f.store.savedReviews()
	require.Len(t, reviews, 1)
	assert.Equal(t, "tx-1", reviews[0].TransactionID)
	assert.Equal(t, model.DecisionRejected, reviews[0].Decision)
	assert.Equal(t, "admin", reviews[0].Reviewer, "reviewer comes from the token subject")
	assert.Equal(t, "card testing pattern", reviews[0].Notes)
}

func TestReviewRejectsUnknownDecision(t *testing.T) {
	f := newFixture(t)

	rec := f.request(t, http.MethodPost, "/fraud/review/tx-1",
		reviewRequest{Decision: "MAYBE"}, f.login(t))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, f.store.savedReviews())
}

func TestReviewUnknownTransaction(t *testing.T) {
	f := newFixture(t)
	f.store.reviewErr = fmt.Errorf("transaction nope: %w", common.ErrNotFound)

	rec := f.request(t, http.MethodPost, "/fraud/review/nope",
		reviewRequest{Decision: "APPROVED"}, f.login(t))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsPassesWindowThrough(t *testing.T) {
	f := newFixture(t)
	f.store.stats = &model.Stats{
		Timeseries: []model.StatsBucket{{Day: "2024-06-01", CountFraud: 2, CountClean: 5}},
		Totals:     model.StatsTotals{FraudTotal: 2, CleanTotal: 5, PendingTotal: 2},
	}

	rec := f.request(t, http.MethodGet, "/fraud/stats?window=30d", nil, f.login(t))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "30d", f.store.lastWindow)

	var resp model.Stats
	decodeBody(t, rec, &resp)
	require.Len(t, resp.Timeseries, 1)
	assert.Equal(t, 2, resp.Timeseries[0].CountFraud)
	assert.Equal(t, 5, resp.Totals.CleanTotal)
}
