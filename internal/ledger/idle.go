package ledger

import (
	"context"

	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/domain/model"
)

// idleTransfer applies the plain-token rule: one signed delta per tracked
// party on the (account, token) key. Untracked parties leave no record.
func (r *Router) idleTransfer(ctx context.Context, ev event.Transfer, from, to, src string, tc *transferContext) error {
	if r.isTracked(tc, from) {
		b := &model.IdleBalance{
			ID:      model.IdleBalanceID(from, src),
			Address: from,
			Token:   src,
			Balance: tc.senderIdle.ApplyDelta(model.Neg(ev.Value)),
		}
		if err := r.idle.Set(ctx, b); err != nil {
			return err
		}
		if err := r.snap.IdleBalance(ctx, b, ev.Block.Timestamp); err != nil {
			return err
		}
	}

	if r.isTracked(tc, to) {
		b := &model.IdleBalance{
			ID:      model.IdleBalanceID(to, src),
			Address: to,
			Token:   src,
			Balance: tc.receiverIdle.ApplyDelta(ev.Value),
		}
		if err := r.idle.Set(ctx, b); err != nil {
			return err
		}
		if err := r.snap.IdleBalance(ctx, b, ev.Block.Timestamp); err != nil {
			return err
		}
	}
	return nil
}
