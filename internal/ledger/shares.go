package ledger

import (
	"context"
	"math/big"

	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/domain/model"
)

// shareTransfer applies a pool-token transfer for any share-bearing
// protocol. Transfers to or from the aggregator main contract are supply
// adjustments on the aggregator's view of the pool, not account moves —
// the aggregator contract is not a tracked end-user account.
func (r *Router) shareTransfer(ctx context.Context, ev event.Transfer, from, to, src string, tc *transferContext, protocol model.Protocol) error {
	if from == r.aggregatorMain {
		return r.adjustAggregatorSupply(ctx, src, model.Neg(ev.Value), ev.Block.Timestamp)
	}
	if to == r.aggregatorMain {
		return r.adjustAggregatorSupply(ctx, src, ev.Value, ev.Block.Timestamp)
	}

	// The pool must exist before its share records do. Resolution failure
	// is fatal here; only the aggregator deposit path defers it.
	switch protocol {
	case model.ProtocolLending:
		if _, err := r.resolver.LendingPool(ctx, src); err != nil {
			return err
		}
	case model.ProtocolAMM:
		if _, err := r.resolver.AMMPool(ctx, src); err != nil {
			return err
		}
	case model.ProtocolAggregator:
		if _, err := r.resolver.EnsureAggregatorPool(ctx, src); err != nil {
			return err
		}
	}

	if r.isTracked(tc, from) {
		if err := r.applyShareDelta(ctx, from, src, protocol, tc.senderShare, model.Neg(ev.Value), ev.Block.Timestamp); err != nil {
			return err
		}
	}
	if r.isTracked(tc, to) {
		if err := r.applyShareDelta(ctx, to, src, protocol, tc.receiverShare, ev.Value, ev.Block.Timestamp); err != nil {
			return err
		}
	}
	return nil
}

// applyShareDelta writes prior+delta for one (account, pool) share key.
// The lending accrual index is carried forward from the prior record;
// transfers do not change it.
func (r *Router) applyShareDelta(ctx context.Context, addr, pool string, protocol model.Protocol, prior *model.EarnBalance, delta *big.Int, ts int64) error {
	var priorShares model.Prior
	lastIndex := new(big.Int)
	if prior != nil {
		priorShares = model.PriorOf(prior.ShareBalance)
		if prior.LastIndex != nil {
			lastIndex = new(big.Int).Set(prior.LastIndex)
		}
	}

	b := &model.EarnBalance{
		ID:           model.EarnBalanceID(addr, pool),
		Address:      addr,
		Pool:         pool,
		Protocol:     protocol,
		ShareBalance: priorShares.ApplyDelta(delta),
		LastIndex:    lastIndex,
	}
	if err := r.earn.Set(ctx, b); err != nil {
		return err
	}
	return r.snap.EarnBalance(ctx, b, ts)
}

// adjustAggregatorSupply moves the aggregator's recorded stake in a pool
// by a signed delta: outflow from the main contract decrements, inflow
// increments.
func (r *Router) adjustAggregatorSupply(ctx context.Context, pool string, delta *big.Int, ts int64) error {
	p, err := r.resolver.EnsureAggregatorPool(ctx, pool)
	if err != nil {
		return err
	}
	p.TotalShares = model.PriorOf(p.TotalShares).ApplyDelta(delta)
	if err := r.aggregatorPools.Set(ctx, p); err != nil {
		return err
	}
	return r.snap.AggregatorPool(ctx, p, ts)
}
