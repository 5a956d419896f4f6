package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

type EarnBalanceRepo struct {
	db *DB
}

func NewEarnBalanceRepo(db *DB) *EarnBalanceRepo {
	return &EarnBalanceRepo{db: db}
}

func (r *EarnBalanceRepo) Get(ctx context.Context, id string) (*model.EarnBalance, error) {
	var (
		b         model.EarnBalance
		shares    string
		lastIndex string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, pool, protocol, share_balance::text, last_index::text
		FROM earn_balances
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Address, &b.Pool, &b.Protocol, &shares, &lastIndex)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get earn balance: %w", err)
	}
	if b.ShareBalance, err = parseNumeric(shares); err != nil {
		return nil, fmt.Errorf("earn balance %s shares: %w", id, err)
	}
	if b.LastIndex, err = parseNumeric(lastIndex); err != nil {
		return nil, fmt.Errorf("earn balance %s index: %w", id, err)
	}
	return &b, nil
}

func (r *EarnBalanceRepo) Set(ctx context.Context, b *model.EarnBalance) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO earn_balances (id, address, pool, protocol, share_balance, last_index)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric)
		ON CONFLICT (id) DO UPDATE SET
			share_balance = EXCLUDED.share_balance,
			last_index = EXCLUDED.last_index,
			updated_at = now()
	`, b.ID, b.Address, b.Pool, b.Protocol, numeric(b.ShareBalance), numeric(b.LastIndex))
	if err != nil {
		return fmt.Errorf("upsert earn balance: %w", err)
	}
	return nil
}

func (r *EarnBalanceRepo) SetHistorical(ctx context.Context, b *model.EarnBalance, bucketTS int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO historical_earn_balances (id, address, pool, protocol, share_balance, last_index, bucket_ts)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7)
		ON CONFLICT (id) DO UPDATE SET
			share_balance = EXCLUDED.share_balance,
			last_index = EXCLUDED.last_index
	`, model.HistoricalID(b.ID, bucketTS), b.Address, b.Pool, b.Protocol, numeric(b.ShareBalance), numeric(b.LastIndex), bucketTS)
	if err != nil {
		return fmt.Errorf("upsert historical earn balance: %w", err)
	}
	return nil
}
