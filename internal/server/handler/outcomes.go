package handler

import (
	"log/slog"
	"net/http"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

// OutcomesHandler serves the settlement-history endpoints. The durable store
// is preferred; the Redis buffer answers when no database is configured.
type OutcomesHandler struct {
	store  domain.OutcomeStore
	cache  domain.HistoryCache
	logger *slog.Logger
}

// NewOutcomesHandler creates an OutcomesHandler. Either store or cache may be
// nil; with both nil the endpoints answer with empty lists.
func NewOutcomesHandler(store domain.OutcomeStore, cache domain.HistoryCache, logger *slog.Logger) *OutcomesHandler {
	return &OutcomesHandler{store: store, cache: cache, logger: logger}
}

// ListRecent responds with the most recently settled outcomes.
// GET /api/outcomes?limit=50
func (h *OutcomesHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r)

	var (
		outcomes []domain.Outcome
		err      error
	)
	switch {
	case h.store != nil:
		outcomes, err = h.store.ListRecent(r.Context(), limit)
	case h.cache != nil:
		outcomes, err = h.cache.RecentOutcomes(r.Context(), limit)
	}
	if err != nil {
		h.logger.Error("list outcomes failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list outcomes")
		return
	}
	if outcomes == nil {
		outcomes = []domain.Outcome{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"outcomes": outcomes,
		"count":    len(outcomes),
	})
}

// ListGasSamples responds with the buffered gas price observations.
// GET /api/gas
func (h *OutcomesHandler) ListGasSamples(w http.ResponseWriter, r *http.Request) {
	var (
		samples []domain.GasSample
		err     error
	)
	if h.cache != nil {
		samples, err = h.cache.GasSamples(r.Context())
	}
	if err != nil {
		h.logger.Error("list gas samples failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to list gas samples")
		return
	}
	if samples == nil {
		samples = []domain.GasSample{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"samples": samples,
		"count":   len(samples),
	})
}
