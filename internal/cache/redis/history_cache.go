package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

// Keys for the bounded reporting buffers.
const (
	gasSamplesKey = "history:gas_samples"
	outcomesKey   = "history:outcomes"
)

// outcomeHistoryLen caps the outcome list; older entries are trimmed off the
// tail on every push.
const outcomeHistoryLen = 100

// HistoryCache implements domain.HistoryCache using capped Redis lists.
// Entries are JSON documents pushed to the head with LPUSH, so index zero is
// always the most recent observation.
type HistoryCache struct {
	rdb *redis.Client
	// gasSampleLimit caps the gas sample list.
	gasSampleLimit int64
}

// NewHistoryCache creates a HistoryCache backed by the given Client.
func NewHistoryCache(c *Client, gasSampleLimit int) *HistoryCache {
	if gasSampleLimit < 1 {
		gasSampleLimit = 20
	}
	return &HistoryCache{rdb: c.Underlying(), gasSampleLimit: int64(gasSampleLimit)}
}

// PushGasSample prepends a gas sample and trims the list to its cap.
func (hc *HistoryCache) PushGasSample(ctx context.Context, s domain.GasSample) error {
	return hc.push(ctx, gasSamplesKey, s, hc.gasSampleLimit)
}

// GasSamples returns the buffered gas samples, most recent first.
func (hc *HistoryCache) GasSamples(ctx context.Context) ([]domain.GasSample, error) {
	raw, err := hc.rdb.LRange(ctx, gasSamplesKey, 0, hc.gasSampleLimit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read gas samples: %w", err)
	}

	samples := make([]domain.GasSample, 0, len(raw))
	for _, item := range raw {
		var s domain.GasSample
		if err := json.Unmarshal([]byte(item), &s); err != nil {
			continue
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// PushOutcome prepends a settlement outcome and trims the list to its cap.
func (hc *HistoryCache) PushOutcome(ctx context.Context, o domain.Outcome) error {
	return hc.push(ctx, outcomesKey, o, outcomeHistoryLen)
}

// RecentOutcomes returns up to limit buffered outcomes, most recent first.
func (hc *HistoryCache) RecentOutcomes(ctx context.Context, limit int) ([]domain.Outcome, error) {
	if limit < 1 || limit > outcomeHistoryLen {
		limit = outcomeHistoryLen
	}
	raw, err := hc.rdb.LRange(ctx, outcomesKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: read outcomes: %w", err)
	}

	outcomes := make([]domain.Outcome, 0, len(raw))
	for _, item := range raw {
		var o domain.Outcome
		if err := json.Unmarshal([]byte(item), &o); err != nil {
			continue
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, nil
}

// push marshals v, LPUSHes it, and trims the list to max entries. The two
// commands run in one pipeline round trip.
func (hc *HistoryCache) push(ctx context.Context, key string, v any, max int64) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("redis: marshal %s entry: %w", key, err)
	}

	pipe := hc.rdb.Pipeline()
	pipe.LPush(ctx, key, payload)
	pipe.LTrim(ctx, key, 0, max-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: push %s: %w", key, err)
	}
	return nil
}

// Compile-time interface check.
var _ domain.HistoryCache = (*HistoryCache)(nil)
