package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

// Archiver moves settled outcomes past their retention window out of the
// primary store and into cold object storage as JSONL. Deletion only happens
// after the upload has succeeded, so a failed upload leaves the rows where
// they were.
type Archiver struct {
	writer    domain.BlobWriter
	store     domain.OutcomeStore
	retention time.Duration
	interval  time.Duration
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// NewArchiver creates an Archiver that retains outcomes for retentionDays
// and runs a sweep every interval.
func NewArchiver(writer domain.BlobWriter, store domain.OutcomeStore, retentionDays int, interval time.Duration, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:    writer,
		store:     store,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    logger.With(slog.String("component", "archiver")),
		now:       time.Now,
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Sweep
// failures are logged and retried next interval.
func (a *Archiver) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := a.Sweep(ctx); err != nil {
				a.logger.Error("archive sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Sweep archives and deletes every outcome settled before the retention
// cutoff. A sweep with nothing to archive is a no-op.
func (a *Archiver) Sweep(ctx context.Context) error {
	cutoff := a.now().UTC().Add(-a.retention)

	outcomes, err := a.store.ListBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("s3blob: list outcomes for archive: %w", err)
	}
	if len(outcomes) == 0 {
		return nil
	}

	body, err := marshalJSONL(outcomes)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("outcomes/%s/outcomes-%s.jsonl",
		cutoff.Format("2006"), cutoff.Format("20060102T150405Z"))
	if err := a.writer.Put(ctx, key, bytes.NewReader(body), "application/x-ndjson"); err != nil {
		return err
	}

	deleted, err := a.store.DeleteBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("s3blob: delete archived outcomes: %w", err)
	}

	a.logger.Info("outcomes archived",
		slog.String("key", key),
		slog.Int("archived", len(outcomes)),
		slog.Int64("deleted", deleted),
	)
	return nil
}

// marshalJSONL serializes outcomes as newline-delimited JSON.
func marshalJSONL(outcomes []domain.Outcome) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, o := range outcomes {
		if err := enc.Encode(o); err != nil {
			return nil, fmt.Errorf("s3blob: encode outcome %s: %w", o.ID, err)
		}
	}
	return buf.Bytes(), nil
}
