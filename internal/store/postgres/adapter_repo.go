package postgres

import (
	"context"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

type AdapterRepo struct {
	db *DB
}

func NewAdapterRepo(db *DB) *AdapterRepo {
	return &AdapterRepo{db: db}
}

func (r *AdapterRepo) Set(ctx context.Context, a *model.Adapter) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO adapters (id, address)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.Address)
	if err != nil {
		return fmt.Errorf("upsert adapter: %w", err)
	}
	return nil
}

// List returns adapters in registration order. Pool-config probing walks
// this list front to back, so the order is part of the contract.
func (r *AdapterRepo) List(ctx context.Context) ([]model.Adapter, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, address
		FROM adapters
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("list adapters: %w", err)
	}
	defer rows.Close()

	var adapters []model.Adapter
	for rows.Next() {
		var a model.Adapter
		if err := rows.Scan(&a.ID, &a.Address); err != nil {
			return nil, fmt.Errorf("scan adapter: %w", err)
		}
		adapters = append(adapters, a)
	}
	return adapters, rows.Err()
}
