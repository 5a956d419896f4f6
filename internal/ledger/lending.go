package ledger

import (
	"context"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/metrics"
)

// HandleSupplyMint applies a lending-pool share mint: the pool's accrual
// index always advances to the event's value; the recipient's share
// balance moves only when the recipient is a tracked wallet.
func (r *Router) HandleSupplyMint(ctx context.Context, ev event.SupplyMint) error {
	metrics.RouterEventsTotal.WithLabelValues("supply_mint").Inc()
	return r.applyLendingSupply(ctx, ev.Contract, ev.OnBehalfOf, ev.Value, ev.Index, ev.Block, "supply_mint")
}

// HandleSupplyBurn applies a lending-pool share burn.
func (r *Router) HandleSupplyBurn(ctx context.Context, ev event.SupplyBurn) error {
	metrics.RouterEventsTotal.WithLabelValues("supply_burn").Inc()
	return r.applyLendingSupply(ctx, ev.Contract, ev.From, model.Neg(ev.Value), ev.Index, ev.Block, "supply_burn")
}

func (r *Router) applyLendingSupply(ctx context.Context, contract, user string, delta, index *big.Int, blk event.Block, trigger string) error {
	user = model.NormalizeAddress(user)

	// Pre-load round: prior share balance and wallet membership together.
	var (
		prior   *model.EarnBalance
		tracked map[string]struct{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		b, err := r.earn.Get(gctx, model.EarnBalanceID(user, contract))
		if err != nil {
			return err
		}
		prior = b
		return nil
	})
	g.Go(func() error {
		set, err := r.wallets.BulkCheck(gctx, []string{user})
		if err != nil {
			return err
		}
		tracked = set
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.RouterErrors.WithLabelValues(trigger).Inc()
		return err
	}

	// Pool resolution failure is fatal for a lending event.
	pool, err := r.resolver.LendingPool(ctx, contract)
	if err != nil {
		metrics.RouterErrors.WithLabelValues(trigger).Inc()
		return err
	}

	pool.LastIndex = new(big.Int).Set(index)
	if err := r.lendingPools.Set(ctx, pool); err != nil {
		metrics.RouterErrors.WithLabelValues(trigger).Inc()
		return err
	}
	if err := r.snap.LendingPool(ctx, pool, blk.Timestamp); err != nil {
		return err
	}

	// Untracked wallets move pool-level aggregate state only.
	if _, ok := tracked[user]; !ok && !r.allTracked {
		return nil
	}

	if err := r.accounts.Set(ctx, model.NewAccount(user)); err != nil {
		return err
	}

	var priorShares model.Prior
	if prior != nil {
		priorShares = model.PriorOf(prior.ShareBalance)
	}
	b := &model.EarnBalance{
		ID:           model.EarnBalanceID(user, pool.ID),
		Address:      user,
		Pool:         pool.ID,
		Protocol:     model.ProtocolLending,
		ShareBalance: priorShares.ApplyDelta(delta),
		LastIndex:    new(big.Int).Set(index),
	}
	if err := r.earn.Set(ctx, b); err != nil {
		return err
	}
	return r.snap.EarnBalance(ctx, b, blk.Timestamp)
}
