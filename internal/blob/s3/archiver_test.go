package s3blob

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

type memOutcomeStore struct {
	outcomes []domain.Outcome
	deleted  []time.Time
}

func (m *memOutcomeStore) Create(_ context.Context, o domain.Outcome) error {
	m.outcomes = append(m.outcomes, o)
	return nil
}

func (m *memOutcomeStore) ListRecent(context.Context, int) ([]domain.Outcome, error) {
	return m.outcomes, nil
}

func (m *memOutcomeStore) ListBefore(_ context.Context, before time.Time) ([]domain.Outcome, error) {
	var out []domain.Outcome
	for _, o := range m.outcomes {
		if o.SettledAt.Before(before) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOutcomeStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	m.deleted = append(m.deleted, before)
	var kept []domain.Outcome
	var n int64
	for _, o := range m.outcomes {
		if o.SettledAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	m.outcomes = kept
	return n, nil
}

type memWriter struct {
	keys   []string
	bodies [][]byte
	err    error
}

func (m *memWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if m.err != nil {
		return m.err
	}
	body, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	m.keys = append(m.keys, path)
	m.bodies = append(m.bodies, body)
	return nil
}

func outcomeAt(id string, settled time.Time) domain.Outcome {
	return domain.Outcome{
		ID:        id,
		Status:    domain.OutcomeProfit,
		Amount:    big.NewInt(1000),
		Profit:    big.NewInt(91),
		SettledAt: settled,
	}
}

func TestSweepArchivesAndDeletes(t *testing.T) {
	now := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	store := &memOutcomeStore{outcomes: []domain.Outcome{
		outcomeAt("old-1", now.AddDate(0, 0, -100)),
		outcomeAt("old-2", now.AddDate(0, 0, -95)),
		outcomeAt("fresh", now.AddDate(0, 0, -1)),
	}}
	writer := &memWriter{}

	a := NewArchiver(writer, store, 90, time.Hour, slog.New(slog.DiscardHandler))
	a.now = func() time.Time { return now }

	require.NoError(t, a.Sweep(context.Background()))

	require.Len(t, writer.keys, 1)
	assert.True(t, strings.HasPrefix(writer.keys[0], "outcomes/2026/"))
	assert.True(t, strings.HasSuffix(writer.keys[0], ".jsonl"))

	// Two JSONL lines, one per archived outcome.
	lines := bytes.Split(bytes.TrimSpace(writer.bodies[0]), []byte("\n"))
	assert.Len(t, lines, 2)

	// Only the fresh outcome survives in the store.
	require.Len(t, store.outcomes, 1)
	assert.Equal(t, "fresh", store.outcomes[0].ID)
}

func TestSweepNothingToArchive(t *testing.T) {
	now := time.Now().UTC()
	store := &memOutcomeStore{outcomes: []domain.Outcome{outcomeAt("fresh", now)}}
	writer := &memWriter{}

	a := NewArchiver(writer, store, 90, time.Hour, slog.New(slog.DiscardHandler))
	require.NoError(t, a.Sweep(context.Background()))

	assert.Empty(t, writer.keys)
	assert.Empty(t, store.deleted)
}

func TestSweepKeepsRowsWhenUploadFails(t *testing.T) {
	now := time.Now().UTC()
	store := &memOutcomeStore{outcomes: []domain.Outcome{outcomeAt("old", now.AddDate(0, 0, -100))}}
	writer := &memWriter{err: errors.New("bucket unreachable")}

	a := NewArchiver(writer, store, 90, time.Hour, slog.New(slog.DiscardHandler))
	require.Error(t, a.Sweep(context.Background()))

	// No deletion happened, the row is still in the store.
	assert.Empty(t, store.deleted)
	assert.Len(t, store.outcomes, 1)
}
