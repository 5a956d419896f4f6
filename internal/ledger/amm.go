package ledger

import (
	"context"
	"math/big"

	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/metrics"
)

// HandleSync overwrites the pool's reserves with the event's values. Sync
// carries absolute state, not a delta, so there is nothing to accumulate.
func (r *Router) HandleSync(ctx context.Context, ev event.Sync) error {
	metrics.RouterEventsTotal.WithLabelValues("sync").Inc()

	pool, err := r.resolver.AMMPool(ctx, ev.Contract)
	if err != nil {
		metrics.RouterErrors.WithLabelValues("sync").Inc()
		return err
	}

	pool.Reserve0 = new(big.Int).Set(ev.Reserve0)
	pool.Reserve1 = new(big.Int).Set(ev.Reserve1)
	if err := r.ammPools.Set(ctx, pool); err != nil {
		metrics.RouterErrors.WithLabelValues("sync").Inc()
		return err
	}
	return r.snap.AMMPool(ctx, pool, ev.Block.Timestamp)
}

// HandleLiquidityMint adds minted liquidity to the pool's total supply.
func (r *Router) HandleLiquidityMint(ctx context.Context, ev event.LiquidityMint) error {
	metrics.RouterEventsTotal.WithLabelValues("liquidity_mint").Inc()
	return r.adjustAMMSupply(ctx, ev.Contract, ev.Liquidity, ev.Block.Timestamp, "liquidity_mint")
}

// HandleLiquidityBurn removes burned liquidity from the pool's total supply.
func (r *Router) HandleLiquidityBurn(ctx context.Context, ev event.LiquidityBurn) error {
	metrics.RouterEventsTotal.WithLabelValues("liquidity_burn").Inc()
	return r.adjustAMMSupply(ctx, ev.Contract, new(big.Int).Neg(ev.Liquidity), ev.Block.Timestamp, "liquidity_burn")
}

func (r *Router) adjustAMMSupply(ctx context.Context, contract string, delta *big.Int, ts int64, trigger string) error {
	pool, err := r.resolver.AMMPool(ctx, contract)
	if err != nil {
		metrics.RouterErrors.WithLabelValues(trigger).Inc()
		return err
	}

	pool.TotalSupply = new(big.Int).Add(pool.TotalSupply, delta)
	if err := r.ammPools.Set(ctx, pool); err != nil {
		metrics.RouterErrors.WithLabelValues(trigger).Inc()
		return err
	}
	return r.snap.AMMPool(ctx, pool, ts)
}

// HandlePoolCreated materializes a factory-announced AMM pool and seeds
// the membership set so subsequent LP transfers classify in memory.
func (r *Router) HandlePoolCreated(ctx context.Context, ev event.PoolCreated) error {
	metrics.RouterEventsTotal.WithLabelValues("pool_created").Inc()
	if _, err := r.resolver.CreateAMMPool(ctx, ev); err != nil {
		metrics.RouterErrors.WithLabelValues("pool_created").Inc()
		return err
	}
	return nil
}
