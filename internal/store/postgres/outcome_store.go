package postgres

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/metuDein/aave-flash-arbitrage-bot/internal/domain"
)

// OutcomeStore implements domain.OutcomeStore using PostgreSQL. Amounts are
// stored as NUMERIC(78,0) and marshalled through decimal strings so no
// precision is lost for 256-bit values.
type OutcomeStore struct {
	pool *pgxpool.Pool
}

// NewOutcomeStore creates an OutcomeStore backed by the given connection pool.
func NewOutcomeStore(pool *pgxpool.Pool) *OutcomeStore {
	return &OutcomeStore{pool: pool}
}

const outcomeSelectCols = `id, opportunity_id, status, asset, amount::text,
	profit::text, reason, tx_hash, gas_used, block_number, settled_at`

// Create inserts one outcome. Replays of the same outcome ID are ignored.
func (s *OutcomeStore) Create(ctx context.Context, o domain.Outcome) error {
	const query = `
		INSERT INTO outcomes (
			id, opportunity_id, status, asset, amount,
			profit, reason, tx_hash, gas_used, block_number, settled_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11
		) ON CONFLICT (id) DO NOTHING`

	var profit *string
	if o.Profit != nil {
		v := o.Profit.String()
		profit = &v
	}

	_, err := s.pool.Exec(ctx, query,
		o.ID, o.OpportunityID, string(o.Status), o.Asset, amountOrZero(o.Amount),
		profit, o.Reason, o.TxHash, int64(o.GasUsed), int64(o.BlockNumber), o.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert outcome %s: %w", o.ID, err)
	}
	return nil
}

// ListRecent returns up to limit outcomes, most recently settled first.
func (s *OutcomeStore) ListRecent(ctx context.Context, limit int) ([]domain.Outcome, error) {
	if limit < 1 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+outcomeSelectCols+` FROM outcomes ORDER BY settled_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent outcomes: %w", err)
	}
	defer rows.Close()
	return scanOutcomeRows(rows)
}

// ListBefore returns outcomes settled strictly before the cutoff, oldest
// first, for archival.
func (s *OutcomeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Outcome, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+outcomeSelectCols+` FROM outcomes WHERE settled_at < $1 ORDER BY settled_at ASC`,
		before,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list outcomes before %s: %w", before, err)
	}
	defer rows.Close()
	return scanOutcomeRows(rows)
}

// DeleteBefore removes outcomes settled strictly before the cutoff and
// returns the number of rows deleted.
func (s *OutcomeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM outcomes WHERE settled_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete outcomes before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanOutcomeRows(rows pgx.Rows) ([]domain.Outcome, error) {
	var outcomes []domain.Outcome
	for rows.Next() {
		var (
			o       domain.Outcome
			status  string
			amount  string
			profit  *string
			gasUsed int64
			block   int64
		)
		if err := rows.Scan(
			&o.ID, &o.OpportunityID, &status, &o.Asset, &amount,
			&profit, &o.Reason, &o.TxHash, &gasUsed, &block, &o.SettledAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}

		o.Status = domain.OutcomeStatus(status)
		o.GasUsed = uint64(gasUsed)
		o.BlockNumber = uint64(block)

		var ok bool
		if o.Amount, ok = new(big.Int).SetString(amount, 10); !ok {
			return nil, fmt.Errorf("postgres: outcome %s has malformed amount %q", o.ID, amount)
		}
		if profit != nil {
			if o.Profit, ok = new(big.Int).SetString(*profit, 10); !ok {
				return nil, fmt.Errorf("postgres: outcome %s has malformed profit %q", o.ID, *profit)
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}

func amountOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Compile-time interface check.
var _ domain.OutcomeStore = (*OutcomeStore)(nil)
