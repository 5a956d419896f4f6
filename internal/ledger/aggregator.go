package ledger

import (
	"context"
	"math/big"

	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/metrics"
)

// HandleAdapterAdded registers an aggregator adapter. Registration order
// is preserved; pool-config probing walks adapters in that order.
func (r *Router) HandleAdapterAdded(ctx context.Context, ev event.AdapterAdded) error {
	metrics.RouterEventsTotal.WithLabelValues("adapter_added").Inc()
	adapter := model.NormalizeAddress(ev.Adapter)
	if err := r.adapters.Set(ctx, &model.Adapter{ID: adapter, Address: adapter}); err != nil {
		metrics.RouterErrors.WithLabelValues("adapter_added").Inc()
		return err
	}
	r.logger.Info("aggregator adapter registered", "adapter", adapter)
	return nil
}

// HandleDeposit applies an aggregator deposit. Unknown pools trigger
// adapter probing; when no adapter claims the pool the user's share
// balance still moves and the pool linkage is deferred — resolution
// failure on this path is logged, never raised.
func (r *Router) HandleDeposit(ctx context.Context, ev event.Deposit) error {
	metrics.RouterEventsTotal.WithLabelValues("deposit").Inc()

	if _, err := r.resolver.ClaimAggregatorPool(ctx, ev.Pool); err != nil {
		// Store-level failure, not a probing miss; this one is fatal.
		metrics.RouterErrors.WithLabelValues("deposit").Inc()
		return err
	}

	return r.applyAggregatorShares(ctx, ev.User, ev.Pool, ev.Shares, ev.Block.Timestamp, "deposit")
}

// HandleWithdraw applies an aggregator withdrawal. The user delta applies
// even when the pool is unknown: a withdraw observed before its deposit
// leaves a transient negative balance that the later deposit cancels.
func (r *Router) HandleWithdraw(ctx context.Context, ev event.Withdraw) error {
	metrics.RouterEventsTotal.WithLabelValues("withdraw").Inc()
	return r.applyAggregatorShares(ctx, ev.User, ev.Pool, model.Neg(ev.Shares), ev.Block.Timestamp, "withdraw")
}

func (r *Router) applyAggregatorShares(ctx context.Context, user, pool string, delta *big.Int, ts int64, trigger string) error {
	user = model.NormalizeAddress(user)
	pool = model.NormalizeAddress(pool)

	prior, err := r.earn.Get(ctx, model.EarnBalanceID(user, pool))
	if err != nil {
		metrics.RouterErrors.WithLabelValues(trigger).Inc()
		return err
	}
	if err := r.accounts.Set(ctx, model.NewAccount(user)); err != nil {
		metrics.RouterErrors.WithLabelValues(trigger).Inc()
		return err
	}

	var priorShares model.Prior
	if prior != nil {
		priorShares = model.PriorOf(prior.ShareBalance)
	}
	b := &model.EarnBalance{
		ID:           model.EarnBalanceID(user, pool),
		Address:      user,
		Pool:         pool,
		Protocol:     model.ProtocolAggregator,
		ShareBalance: priorShares.ApplyDelta(delta),
		LastIndex:    new(big.Int),
	}
	if err := r.earn.Set(ctx, b); err != nil {
		metrics.RouterErrors.WithLabelValues(trigger).Inc()
		return err
	}
	return r.snap.EarnBalance(ctx, b, ts)
}
