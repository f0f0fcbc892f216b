package domain

import (
	"context"
	"io"
	"time"
)

// OutcomeStore persists settlement outcomes for reporting and archival.
type OutcomeStore interface {
	Create(ctx context.Context, o Outcome) error
	ListRecent(ctx context.Context, limit int) ([]Outcome, error)
	// ListBefore returns outcomes settled strictly before the cutoff, for
	// archival.
	ListBefore(ctx context.Context, before time.Time) ([]Outcome, error)
	// DeleteBefore removes outcomes settled strictly before the cutoff and
	// returns the number of rows deleted. Called only after the archive
	// upload has succeeded.
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// HistoryCache holds the small bounded reporting buffers (gas samples,
// recent outcomes) that the status server reads. Capped server-side so
// memory stays bounded regardless of uptime.
type HistoryCache interface {
	PushGasSample(ctx context.Context, s GasSample) error
	GasSamples(ctx context.Context) ([]GasSample, error)
	PushOutcome(ctx context.Context, o Outcome) error
	RecentOutcomes(ctx context.Context, limit int) ([]Outcome, error)
}

// BlobWriter uploads an object to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}
