package ledger

import (
	"context"
	"fmt"

	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/metrics"
	"github.com/getclave/activity-indexer/internal/store"
)

// SnapshotWriter is the cross-cutting history policy: every current-state
// write is mirrored into a time-bucketed historical row. Account-level
// records are sampled hourly, pool-level records daily. Writes inside one
// bucket collapse onto a single row (last write wins) — the history is a
// sampled timeline, not an audit log.
type SnapshotWriter struct {
	idle       store.IdleBalanceRepository
	earn       store.EarnBalanceRepository
	lending    store.LendingPoolRepository
	amm        store.AMMPoolRepository
	aggregator store.AggregatorPoolRepository
}

// NewSnapshotWriter wires a SnapshotWriter over the historical surfaces.
func NewSnapshotWriter(
	idle store.IdleBalanceRepository,
	earn store.EarnBalanceRepository,
	lending store.LendingPoolRepository,
	amm store.AMMPoolRepository,
	aggregator store.AggregatorPoolRepository,
) *SnapshotWriter {
	return &SnapshotWriter{
		idle:       idle,
		earn:       earn,
		lending:    lending,
		amm:        amm,
		aggregator: aggregator,
	}
}

func (s *SnapshotWriter) IdleBalance(ctx context.Context, b *model.IdleBalance, ts int64) error {
	bucket := model.BucketTimestamp(ts, model.AccountBucketSeconds)
	if err := s.idle.SetHistorical(ctx, b, bucket); err != nil {
		return fmt.Errorf("snapshot idle balance %s: %w", b.ID, err)
	}
	metrics.SnapshotWrites.WithLabelValues("idle_balance").Inc()
	return nil
}

func (s *SnapshotWriter) EarnBalance(ctx context.Context, b *model.EarnBalance, ts int64) error {
	bucket := model.BucketTimestamp(ts, model.AccountBucketSeconds)
	if err := s.earn.SetHistorical(ctx, b, bucket); err != nil {
		return fmt.Errorf("snapshot earn balance %s: %w", b.ID, err)
	}
	metrics.SnapshotWrites.WithLabelValues("earn_balance").Inc()
	return nil
}

func (s *SnapshotWriter) LendingPool(ctx context.Context, p *model.LendingPool, ts int64) error {
	bucket := model.BucketTimestamp(ts, model.PoolBucketSeconds)
	if err := s.lending.SetHistorical(ctx, p, bucket); err != nil {
		return fmt.Errorf("snapshot lending pool %s: %w", p.ID, err)
	}
	metrics.SnapshotWrites.WithLabelValues("lending_pool").Inc()
	return nil
}

func (s *SnapshotWriter) AMMPool(ctx context.Context, p *model.AMMPool, ts int64) error {
	bucket := model.BucketTimestamp(ts, model.PoolBucketSeconds)
	if err := s.amm.SetHistorical(ctx, p, bucket); err != nil {
		return fmt.Errorf("snapshot amm pool %s: %w", p.ID, err)
	}
	metrics.SnapshotWrites.WithLabelValues("amm_pool").Inc()
	return nil
}

func (s *SnapshotWriter) AggregatorPool(ctx context.Context, p *model.AggregatorPool, ts int64) error {
	bucket := model.BucketTimestamp(ts, model.PoolBucketSeconds)
	if err := s.aggregator.SetHistorical(ctx, p, bucket); err != nil {
		return fmt.Errorf("snapshot aggregator pool %s: %w", p.ID, err)
	}
	metrics.SnapshotWrites.WithLabelValues("aggregator_pool").Inc()
	return nil
}
