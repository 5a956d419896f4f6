package postgres

import (
	"context"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/lib/pq"
)

type WalletRepo struct {
	db *DB
}

func NewWalletRepo(db *DB) *WalletRepo {
	return &WalletRepo{db: db}
}

// FilterTracked returns the subset of addrs present in the tracked wallet
// set. Input addresses are normalized before matching so callers can pass
// raw event values.
func (r *WalletRepo) FilterTracked(ctx context.Context, addrs []string) (map[string]struct{}, error) {
	if len(addrs) == 0 {
		return map[string]struct{}{}, nil
	}

	normalized := make([]string, len(addrs))
	for i, a := range addrs {
		normalized[i] = model.NormalizeAddress(a)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT address
		FROM tracked_wallets
		WHERE address = ANY($1)
	`, pq.Array(normalized))
	if err != nil {
		return nil, fmt.Errorf("filter tracked wallets: %w", err)
	}
	defer rows.Close()

	out := make(map[string]struct{})
	for rows.Next() {
		var addr string
		if err := rows.Scan(&addr); err != nil {
			return nil, fmt.Errorf("scan tracked wallet: %w", err)
		}
		out[addr] = struct{}{}
	}
	return out, rows.Err()
}
