package ledger

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	otelTrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/membership"
	"github.com/getclave/activity-indexer/internal/metrics"
	"github.com/getclave/activity-indexer/internal/pools"
	"github.com/getclave/activity-indexer/internal/store"
	"github.com/getclave/activity-indexer/internal/tracing"
)

// Router is the dispatch layer: it pre-loads everything any candidate rule
// might need in one parallel round, classifies the event against the
// dynamically maintained membership sets, and delegates to exactly one
// protocol rule. Rule errors propagate uncaught — an event either applies
// fully or fails fatally for the caller to handle.
type Router struct {
	accounts        store.AccountRepository
	idle            store.IdleBalanceRepository
	earn            store.EarnBalanceRepository
	lendingPools    store.LendingPoolRepository
	ammPools        store.AMMPoolRepository
	aggregatorPools store.AggregatorPoolRepository
	adapters        store.AdapterRepository
	registry        store.PoolRegistryRepository

	wallets  *membership.WalletCache
	ammSet   *membership.PoolSet
	resolver *pools.Resolver
	snap     *SnapshotWriter

	aggregatorMain string
	allTracked     bool

	logger *slog.Logger
	tracer otelTrace.Tracer
}

// Option customizes Router construction.
type Option func(*Router)

// WithAllWalletsTracked makes every address count as a tracked wallet.
// Test configurations use this to keep fixtures deterministic; it must
// never be enabled in production.
func WithAllWalletsTracked() Option {
	return func(r *Router) {
		r.allTracked = true
	}
}

// NewRouter wires a Router.
func NewRouter(
	accounts store.AccountRepository,
	idle store.IdleBalanceRepository,
	earn store.EarnBalanceRepository,
	lendingPools store.LendingPoolRepository,
	ammPools store.AMMPoolRepository,
	aggregatorPools store.AggregatorPoolRepository,
	adapters store.AdapterRepository,
	registry store.PoolRegistryRepository,
	wallets *membership.WalletCache,
	ammSet *membership.PoolSet,
	resolver *pools.Resolver,
	aggregatorMain string,
	logger *slog.Logger,
	opts ...Option,
) *Router {
	r := &Router{
		accounts:        accounts,
		idle:            idle,
		earn:            earn,
		lendingPools:    lendingPools,
		ammPools:        ammPools,
		aggregatorPools: aggregatorPools,
		adapters:        adapters,
		registry:        registry,
		wallets:         wallets,
		ammSet:          ammSet,
		resolver:        resolver,
		snap: NewSnapshotWriter(
			idle, earn, lendingPools, ammPools, aggregatorPools,
		),
		aggregatorMain: model.NormalizeAddress(aggregatorMain),
		logger:         logger.With("component", "router"),
		tracer:         tracing.Tracer("ledger"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// transferContext is the pre-loaded state for one transfer: both parties'
// idle and share priors, wallet membership, prior account existence and
// the source contract's protocol, all fetched in a single parallel round.
type transferContext struct {
	senderIdle    model.Prior
	receiverIdle  model.Prior
	senderShare   *model.EarnBalance
	receiverShare *model.EarnBalance
	tracked       map[string]struct{}
	senderKnown   bool
	receiverKnown bool
	srcProtocol   model.Protocol
}

// HandleTransfer routes one ERC20-shaped transfer.
func (r *Router) HandleTransfer(ctx context.Context, ev event.Transfer) error {
	metrics.RouterEventsTotal.WithLabelValues("transfer").Inc()
	ctx, span := r.tracer.Start(ctx, "router.transfer",
		otelTrace.WithAttributes(attribute.String("contract", ev.Contract)))
	defer span.End()

	from := model.NormalizeAddress(ev.From)
	to := model.NormalizeAddress(ev.To)
	src := model.NormalizeAddress(ev.Contract)

	// A self-transfer moves nothing; counting it would double-apply.
	if from == to {
		metrics.RouterDroppedTotal.WithLabelValues("self_transfer").Inc()
		return nil
	}

	tc, err := r.preload(ctx, from, to, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "preload failed")
		metrics.RouterErrors.WithLabelValues("transfer").Inc()
		return err
	}

	if err := r.dispatch(ctx, ev, from, to, src, tc); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rule failed")
		metrics.RouterErrors.WithLabelValues("transfer").Inc()
		return err
	}
	return nil
}

// preload is the single suspension point per transfer: every read any
// downstream rule might need is issued together and awaited as a batch
// before the first write happens.
func (r *Router) preload(ctx context.Context, from, to, src string) (*transferContext, error) {
	start := time.Now()
	defer func() {
		metrics.RouterPreloadLatency.Observe(time.Since(start).Seconds())
	}()

	tc := &transferContext{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b, err := r.idle.Get(gctx, model.IdleBalanceID(from, src))
		if err != nil {
			return err
		}
		if b != nil {
			tc.senderIdle = model.PriorOf(b.Balance)
		}
		return nil
	})
	g.Go(func() error {
		b, err := r.idle.Get(gctx, model.IdleBalanceID(to, src))
		if err != nil {
			return err
		}
		if b != nil {
			tc.receiverIdle = model.PriorOf(b.Balance)
		}
		return nil
	})
	g.Go(func() error {
		b, err := r.earn.Get(gctx, model.EarnBalanceID(from, src))
		if err != nil {
			return err
		}
		tc.senderShare = b
		return nil
	})
	g.Go(func() error {
		b, err := r.earn.Get(gctx, model.EarnBalanceID(to, src))
		if err != nil {
			return err
		}
		tc.receiverShare = b
		return nil
	})
	g.Go(func() error {
		tracked, err := r.wallets.BulkCheck(gctx, []string{from, to})
		if err != nil {
			return err
		}
		tc.tracked = tracked
		return nil
	})
	g.Go(func() error {
		a, err := r.accounts.Get(gctx, from)
		if err != nil {
			return err
		}
		tc.senderKnown = a != nil
		return nil
	})
	g.Go(func() error {
		a, err := r.accounts.Get(gctx, to)
		if err != nil {
			return err
		}
		tc.receiverKnown = a != nil
		return nil
	})
	g.Go(func() error {
		// AMM membership is the in-memory hot path; anything it rejects
		// falls back to one registry lookup covering the other families.
		isAMM, err := r.ammSet.Contains(gctx, src)
		if err != nil {
			return err
		}
		if isAMM {
			tc.srcProtocol = model.ProtocolAMM
			return nil
		}
		protocols, err := r.registry.Protocols(gctx, []string{src})
		if err != nil {
			return err
		}
		tc.srcProtocol = protocols[src]
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if r.allTracked {
		tc.tracked = map[string]struct{}{from: {}, to: {}}
	}
	return tc, nil
}

func (r *Router) dispatch(ctx context.Context, ev event.Transfer, from, to, src string, tc *transferContext) error {
	// Classification precedence: pool membership first, then tracked-party
	// relevance, then the plain idle rule.
	switch tc.srcProtocol {
	case model.ProtocolAMM, model.ProtocolLending, model.ProtocolAggregator:
		metrics.RouterDispatchedTotal.WithLabelValues(string(tc.srcProtocol)).Inc()
		if err := r.ensureAccounts(ctx, from, to, tc); err != nil {
			return err
		}
		return r.shareTransfer(ctx, ev, from, to, src, tc, tc.srcProtocol)
	}

	if len(tc.tracked) == 0 && !r.touchesAggregatorMain(from, to) {
		metrics.RouterDroppedTotal.WithLabelValues("untracked").Inc()
		return nil
	}

	metrics.RouterDispatchedTotal.WithLabelValues(string(model.ProtocolERC20)).Inc()
	if err := r.ensureAccounts(ctx, from, to, tc); err != nil {
		return err
	}
	return r.idleTransfer(ctx, ev, from, to, src, tc)
}

// ensureAccounts creates Account records for tracked parties seen for the
// first time, before any balance record referencing them is written.
func (r *Router) ensureAccounts(ctx context.Context, from, to string, tc *transferContext) error {
	if _, ok := tc.tracked[from]; ok && !tc.senderKnown {
		if err := r.accounts.Set(ctx, model.NewAccount(from)); err != nil {
			return err
		}
	}
	if _, ok := tc.tracked[to]; ok && !tc.receiverKnown {
		if err := r.accounts.Set(ctx, model.NewAccount(to)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Router) touchesAggregatorMain(from, to string) bool {
	return r.aggregatorMain != "" && (from == r.aggregatorMain || to == r.aggregatorMain)
}

func (r *Router) isTracked(tc *transferContext, addr string) bool {
	_, ok := tc.tracked[addr]
	return ok
}
