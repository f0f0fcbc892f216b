package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
	"github.com/metuDein/aave-flash-arbitrage-bot/internal/orchestrator"
)

type fakeOutcomeStore struct {
	outcomes []domain.Outcome
}

func (s *fakeOutcomeStore) Create(ctx context.Context, o domain.Outcome) error { return nil }

func (s *fakeOutcomeStore) ListRecent(ctx context.Context, limit int) ([]domain.Outcome, error) {
	if limit > len(s.outcomes) {
		limit = len(s.outcomes)
	}
	return s.outcomes[:limit], nil
}

func (s *fakeOutcomeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Outcome, error) {
	return nil, nil
}

func (s *fakeOutcomeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type fakeHistoryCache struct {
	samples []domain.GasSample
}

func (c *fakeHistoryCache) PushGasSample(ctx context.Context, s domain.GasSample) error { return nil }

func (c *fakeHistoryCache) GasSamples(ctx context.Context) ([]domain.GasSample, error) {
	return c.samples, nil
}

func (c *fakeHistoryCache) PushOutcome(ctx context.Context, o domain.Outcome) error { return nil }

func (c *fakeHistoryCache) RecentOutcomes(ctx context.Context, limit int) ([]domain.Outcome, error) {
	return nil, nil
}

type fakeStatusSource struct {
	snap orchestrator.Snapshot
}

func (f *fakeStatusSource) SnapshotStatus() orchestrator.Snapshot { return f.snap }

func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealthCheck(t *testing.T) {
	h := NewHealthHandler(discard())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["status"])
}

func TestStatusWithLoop(t *testing.T) {
	src := &fakeStatusSource{snap: orchestrator.Snapshot{
		State:     "SCAN",
		CyclesRun: 7,
	}}
	h := NewStatusHandler(src, "full", time.Now().Add(-time.Minute), discard())

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "full", body["mode"])
	assert.GreaterOrEqual(t, body["uptime_seconds"].(float64), float64(59))

	loop, ok := body["loop"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "SCAN", loop["state"])
	assert.Equal(t, float64(7), loop["cycles_run"])
}

func TestStatusWithoutLoop(t *testing.T) {
	h := NewStatusHandler(nil, "server", time.Now(), discard())

	rec := httptest.NewRecorder()
	h.GetStatus(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "server", body["mode"])
	_, hasLoop := body["loop"]
	assert.False(t, hasLoop, "no loop section without a source")
}

func TestListRecentPrefersStore(t *testing.T) {
	store := &fakeOutcomeStore{outcomes: []domain.Outcome{
		{ID: "o-1", Status: domain.OutcomeProfit, Profit: big.NewInt(591)},
		{ID: "o-2", Status: domain.OutcomeFailed, Reason: "transaction reverted"},
	}}
	h := NewOutcomesHandler(store, &fakeHistoryCache{}, discard())

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/outcomes?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestListRecentEmptyWithoutBackends(t *testing.T) {
	h := NewOutcomesHandler(nil, nil, discard())

	rec := httptest.NewRecorder()
	h.ListRecent(rec, httptest.NewRequest(http.MethodGet, "/api/outcomes", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(0), body["count"])
	assert.NotNil(t, body["outcomes"])
}

func TestListGasSamples(t *testing.T) {
	cache := &fakeHistoryCache{samples: []domain.GasSample{
		{PriceWei: big.NewInt(30_000_000_000), SampledAt: time.Now().UTC()},
	}}
	h := NewOutcomesHandler(nil, cache, discard())

	rec := httptest.NewRecorder()
	h.ListGasSamples(rec, httptest.NewRequest(http.MethodGet, "/api/gas", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["count"])
}

func TestParseLimit(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/outcomes", nil)
	assert.Equal(t, 50, parseLimit(r))

	r = httptest.NewRequest(http.MethodGet, "/api/outcomes?limit=10", nil)
	assert.Equal(t, 10, parseLimit(r))

	r = httptest.NewRequest(http.MethodGet, "/api/outcomes?limit=9999", nil)
	assert.Equal(t, 500, parseLimit(r))

	r = httptest.NewRequest(http.MethodGet, "/api/outcomes?limit=bogus", nil)
	assert.Equal(t, 50, parseLimit(r))
}
