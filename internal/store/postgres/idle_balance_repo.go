package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

type IdleBalanceRepo struct {
	db *DB
}

func NewIdleBalanceRepo(db *DB) *IdleBalanceRepo {
	return &IdleBalanceRepo{db: db}
}

func (r *IdleBalanceRepo) Get(ctx context.Context, id string) (*model.IdleBalance, error) {
	var (
		b       model.IdleBalance
		balance string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address, token, balance::text
		FROM idle_balances
		WHERE id = $1
	`, id).Scan(&b.ID, &b.Address, &b.Token, &balance)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get idle balance: %w", err)
	}
	if b.Balance, err = parseNumeric(balance); err != nil {
		return nil, fmt.Errorf("idle balance %s: %w", id, err)
	}
	return &b, nil
}

func (r *IdleBalanceRepo) Set(ctx context.Context, b *model.IdleBalance) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO idle_balances (id, address, token, balance)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance,
			updated_at = now()
	`, b.ID, b.Address, b.Token, numeric(b.Balance))
	if err != nil {
		return fmt.Errorf("upsert idle balance: %w", err)
	}
	return nil
}

// SetHistorical upserts the snapshot row for the record's bucket. The row
// key embeds the bucket timestamp, so repeated writes within one bucket
// collapse to the final state.
func (r *IdleBalanceRepo) SetHistorical(ctx context.Context, b *model.IdleBalance, bucketTS int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO historical_idle_balances (id, address, token, balance, bucket_ts)
		VALUES ($1, $2, $3, $4::numeric, $5)
		ON CONFLICT (id) DO UPDATE SET
			balance = EXCLUDED.balance
	`, model.HistoricalID(b.ID, bucketTS), b.Address, b.Token, numeric(b.Balance), bucketTS)
	if err != nil {
		return fmt.Errorf("upsert historical idle balance: %w", err)
	}
	return nil
}
