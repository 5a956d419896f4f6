package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

type AccountRepo struct {
	db *DB
}

func NewAccountRepo(db *DB) *AccountRepo {
	return &AccountRepo{db: db}
}

func (r *AccountRepo) Get(ctx context.Context, id string) (*model.Account, error) {
	var a model.Account
	err := r.db.QueryRowContext(ctx, `
		SELECT id, address
		FROM accounts
		WHERE id = $1
	`, id).Scan(&a.ID, &a.Address)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return &a, nil
}

// Set is idempotent: accounts carry no mutable state, so re-creating an
// existing account is a no-op.
func (r *AccountRepo) Set(ctx context.Context, a *model.Account) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO accounts (id, address)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.Address)
	if err != nil {
		return fmt.Errorf("upsert account: %w", err)
	}
	return nil
}
