package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/orchestrator"
)

// StatusSource provides a point-in-time view of the trading loop.
type StatusSource interface {
	SnapshotStatus() orchestrator.Snapshot
}

// StatusHandler serves the loop-state endpoint.
type StatusHandler struct {
	source    StatusSource
	mode      string
	startedAt time.Time
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler. source may be nil when the
// process runs in server-only mode with no loop attached.
func NewStatusHandler(source StatusSource, mode string, startedAt time.Time, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		source:    source,
		mode:      mode,
		startedAt: startedAt,
		logger:    logger,
	}
}

// GetStatus responds with the loop snapshot plus process metadata.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"mode":           h.mode,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.source != nil {
		resp["loop"] = h.source.SnapshotStatus()
	}
	writeJSON(w, http.StatusOK, resp)
}
