package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

type LendingPoolRepo struct {
	db *DB
}

func NewLendingPoolRepo(db *DB) *LendingPoolRepo {
	return &LendingPoolRepo{db: db}
}

func (r *LendingPoolRepo) Get(ctx context.Context, id string) (*model.LendingPool, error) {
	var (
		p         model.LendingPool
		lastIndex string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, underlying_token, name, symbol, last_index::text
		FROM lending_pools
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Address, &p.UnderlyingToken, &p.Name, &p.Symbol, &lastIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lending pool: %w", err)
	}
	if p.LastIndex, err = parseNumeric(lastIndex); err != nil {
		return nil, fmt.Errorf("lending pool %s index: %w", id, err)
	}
	return &p, nil
}

func (r *LendingPoolRepo) Set(ctx context.Context, p *model.LendingPool) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO lending_pools (id, address, underlying_token, name, symbol, last_index)
		VALUES ($1, $2, $3, $4, $5, $6::numeric)
		ON CONFLICT (id) DO UPDATE SET
			last_index = EXCLUDED.last_index,
			updated_at = now()
	`, p.ID, p.Address, p.UnderlyingToken, p.Name, p.Symbol, numeric(p.LastIndex))
	if err != nil {
		return fmt.Errorf("upsert lending pool: %w", err)
	}
	return nil
}

func (r *LendingPoolRepo) SetHistorical(ctx context.Context, p *model.LendingPool, bucketTS int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO historical_lending_pools (id, address, underlying_token, name, symbol, last_index, bucket_ts)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7)
		ON CONFLICT (id) DO UPDATE SET
			last_index = EXCLUDED.last_index
	`, model.HistoricalID(p.ID, bucketTS), p.Address, p.UnderlyingToken, p.Name, p.Symbol, numeric(p.LastIndex), bucketTS)
	if err != nil {
		return fmt.Errorf("upsert historical lending pool: %w", err)
	}
	return nil
}
