package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

type AMMPoolRepo struct {
	db *DB
}

func NewAMMPoolRepo(db *DB) *AMMPoolRepo {
	return &AMMPoolRepo{db: db}
}

func (r *AMMPoolRepo) Get(ctx context.Context, id string) (*model.AMMPool, error) {
	var (
		p           model.AMMPool
		mul0, mul1  string
		res0, res1  string
		totalSupply string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, token0, token1, name, symbol, pool_type,
			   token0_precision_multiplier::text, token1_precision_multiplier::text,
			   reserve0::text, reserve1::text, total_supply::text
		FROM amm_pools
		WHERE id = $1
	`, id).Scan(
		&p.ID, &p.Address, &p.Token0, &p.Token1, &p.Name, &p.Symbol, &p.PoolType,
		&mul0, &mul1, &res0, &res1, &totalSupply,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get amm pool: %w", err)
	}
	if p.Token0PrecisionMultiplier, err = parseNumeric(mul0); err != nil {
		return nil, fmt.Errorf("amm pool %s token0 multiplier: %w", id, err)
	}
	if p.Token1PrecisionMultiplier, err = parseNumeric(mul1); err != nil {
		return nil, fmt.Errorf("amm pool %s token1 multiplier: %w", id, err)
	}
	if p.Reserve0, err = parseNumeric(res0); err != nil {
		return nil, fmt.Errorf("amm pool %s reserve0: %w", id, err)
	}
	if p.Reserve1, err = parseNumeric(res1); err != nil {
		return nil, fmt.Errorf("amm pool %s reserve1: %w", id, err)
	}
	if p.TotalSupply, err = parseNumeric(totalSupply); err != nil {
		return nil, fmt.Errorf("amm pool %s total supply: %w", id, err)
	}
	return &p, nil
}

func (r *AMMPoolRepo) Set(ctx context.Context, p *model.AMMPool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO amm_pools (id, address, token0, token1, name, symbol, pool_type,
			token0_precision_multiplier, token1_precision_multiplier,
			reserve0, reserve1, total_supply)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric)
		ON CONFLICT (id) DO UPDATE SET
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			total_supply = EXCLUDED.total_supply,
			updated_at = now()
	`, p.ID, p.Address, p.Token0, p.Token1, p.Name, p.Symbol, p.PoolType,
		numeric(p.Token0PrecisionMultiplier), numeric(p.Token1PrecisionMultiplier),
		numeric(p.Reserve0), numeric(p.Reserve1), numeric(p.TotalSupply))
	if err != nil {
		return fmt.Errorf("upsert amm pool: %w", err)
	}
	return nil
}

func (r *AMMPoolRepo) SetHistorical(ctx context.Context, p *model.AMMPool, bucketTS int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO historical_amm_pools (id, address, token0, token1, name, symbol, pool_type,
			token0_precision_multiplier, token1_precision_multiplier,
			reserve0, reserve1, total_supply, bucket_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::numeric, $9::numeric, $10::numeric, $11::numeric, $12::numeric, $13)
		ON CONFLICT (id) DO UPDATE SET
			reserve0 = EXCLUDED.reserve0,
			reserve1 = EXCLUDED.reserve1,
			total_supply = EXCLUDED.total_supply
	`, model.HistoricalID(p.ID, bucketTS), p.Address, p.Token0, p.Token1, p.Name, p.Symbol, p.PoolType,
		numeric(p.Token0PrecisionMultiplier), numeric(p.Token1PrecisionMultiplier),
		numeric(p.Reserve0), numeric(p.Reserve1), numeric(p.TotalSupply), bucketTS)
	if err != nil {
		return fmt.Errorf("upsert historical amm pool: %w", err)
	}
	return nil
}
