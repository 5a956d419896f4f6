package postgres

import (
	"context"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/lib/pq"
)

type PoolRegistryRepo struct {
	db *DB
}

func NewPoolRegistryRepo(db *DB) *PoolRegistryRepo {
	return &PoolRegistryRepo{db: db}
}

// Set registers a pool under its protocol family. First write wins: a
// pool's protocol is immutable, and redundant concurrent creation of the
// same pool must not flip its classification.
func (r *PoolRegistryRepo) Set(ctx context.Context, e *model.PoolRegistryEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pool_registry (id, pool, protocol)
		VALUES ($1, $2, $3)
		ON CONFLICT (pool) DO NOTHING
	`, e.ID, e.Pool, e.Protocol)
	if err != nil {
		return fmt.Errorf("register pool: %w", err)
	}
	return nil
}

// Protocols answers a bulk membership query: which of the given addresses
// are known pools, and under which protocol. Unknown addresses are simply
// absent from the result.
func (r *PoolRegistryRepo) Protocols(ctx context.Context, pools []string) (map[string]model.Protocol, error) {
	if len(pools) == 0 {
		return map[string]model.Protocol{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT pool, protocol
		FROM pool_registry
		WHERE pool = ANY($1)
	`, pq.Array(pools))
	if err != nil {
		return nil, fmt.Errorf("query pool protocols: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.Protocol, len(pools))
	for rows.Next() {
		var (
			pool  string
			proto model.Protocol
		)
		if err := rows.Scan(&pool, &proto); err != nil {
			return nil, fmt.Errorf("scan pool protocol: %w", err)
		}
		out[pool] = proto
	}
	return out, rows.Err()
}

func (r *PoolRegistryRepo) ListByProtocol(ctx context.Context, p model.Protocol) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT pool
		FROM pool_registry
		WHERE protocol = $1
	`, p)
	if err != nil {
		return nil, fmt.Errorf("list pools by protocol: %w", err)
	}
	defer rows.Close()

	var pools []string
	for rows.Next() {
		var pool string
		if err := rows.Scan(&pool); err != nil {
			return nil, fmt.Errorf("scan pool: %w", err)
		}
		pools = append(pools, pool)
	}
	return pools, rows.Err()
}
