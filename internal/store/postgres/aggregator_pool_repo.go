package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

type AggregatorPoolRepo struct {
	db *DB
}

func NewAggregatorPoolRepo(db *DB) *AggregatorPoolRepo {
	return &AggregatorPoolRepo{db: db}
}

func (r *AggregatorPoolRepo) Get(ctx context.Context, id string) (*model.AggregatorPool, error) {
	var (
		p         model.AggregatorPool
		shares    string
		liquidity string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, adapter, underlying_token, total_shares::text, total_liquidity::text
		FROM aggregator_pools
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Address, &p.Adapter, &p.UnderlyingToken, &shares, &liquidity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get aggregator pool: %w", err)
	}
	if p.TotalShares, err = parseNumeric(shares); err != nil {
		return nil, fmt.Errorf("aggregator pool %s shares: %w", id, err)
	}
	if p.TotalLiquidity, err = parseNumeric(liquidity); err != nil {
		return nil, fmt.Errorf("aggregator pool %s liquidity: %w", id, err)
	}
	return &p, nil
}

// Set updates adapter linkage alongside the supply columns: a pool created
// bare before any adapter claimed it gets its linkage filled in on the
// claiming write.
func (r *AggregatorPoolRepo) Set(ctx context.Context, p *model.AggregatorPool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO aggregator_pools (id, address, adapter, underlying_token, total_shares, total_liquidity)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
		ON CONFLICT (id) DO UPDATE SET
			adapter = EXCLUDED.adapter,
			underlying_token = EXCLUDED.underlying_token,
			total_shares = EXCLUDED.total_shares,
			total_liquidity = EXCLUDED.total_liquidity,
			updated_at = now()
	`, p.ID, p.Address, p.Adapter, p.UnderlyingToken, numeric(p.TotalShares), numeric(p.TotalLiquidity))
	if err != nil {
		return fmt.Errorf("upsert aggregator pool: %w", err)
	}
	return nil
}

func (r *AggregatorPoolRepo) SetHistorical(ctx context.Context, p *model.AggregatorPool, bucketTS int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO historical_aggregator_pools (id, address, adapter, underlying_token, total_shares, total_liquidity, bucket_ts)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
		ON CONFLICT (id) DO UPDATE SET
			adapter = EXCLUDED.adapter,
			underlying_token = EXCLUDED.underlying_token,
			total_shares = EXCLUDED.total_shares,
			total_liquidity = EXCLUDED.total_liquidity
	`, model.HistoricalID(p.ID, bucketTS), p.Address, p.Adapter, p.UnderlyingToken,
		numeric(p.TotalShares), numeric(p.TotalLiquidity), bucketTS)
	if err != nil {
		return fmt.Errorf("upsert historical aggregator pool: %w", err)
	}
	return nil
}
