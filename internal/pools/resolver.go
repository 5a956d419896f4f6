package pools

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/getclave/activity-indexer/internal/chain"
	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/membership"
	"github.com/getclave/activity-indexer/internal/metrics"
	"github.com/getclave/activity-indexer/internal/store"
)

// Resolver performs get-or-create pool resolution. Lookup is a store read
// (pool metadata is immutable, so a hit is never re-fetched); materialize
// is one batched on-chain read, a write-once registry entry and a store
// write. Redundant concurrent resolution of the same unseen pool costs a
// duplicate fetch, never a duplicate registry entry — the registry key is
// last-write-wins.
type Resolver struct {
	caller    chain.Caller
	registrar chain.Registrar

	lending    store.LendingPoolRepository
	amm        store.AMMPoolRepository
	aggregator store.AggregatorPoolRepository
	registry   store.PoolRegistryRepository
	adapters   store.AdapterRepository

	ammSet *membership.PoolSet
	logger *slog.Logger
}

// NewResolver wires a Resolver.
func NewResolver(
	caller chain.Caller,
	registrar chain.Registrar,
	lending store.LendingPoolRepository,
	amm store.AMMPoolRepository,
	aggregator store.AggregatorPoolRepository,
	registry store.PoolRegistryRepository,
	adapters store.AdapterRepository,
	ammSet *membership.PoolSet,
	logger *slog.Logger,
) *Resolver {
	return &Resolver{
		caller:     caller,
		registrar:  registrar,
		lending:    lending,
		amm:        amm,
		aggregator: aggregator,
		registry:   registry,
		adapters:   adapters,
		ammSet:     ammSet,
		logger:     logger.With("component", "pool_resolver"),
	}
}

// LendingPool returns the lending pool record, fetching metadata on first
// sight. A failed fetch is fatal for the calling event.
func (r *Resolver) LendingPool(ctx context.Context, address string) (*model.LendingPool, error) {
	addr := model.NormalizeAddress(address)
	if pool, err := r.lending.Get(ctx, addr); err != nil {
		return nil, fmt.Errorf("lookup lending pool %s: %w", addr, err)
	} else if pool != nil {
		return pool, nil
	}

	metrics.PoolResolverFetches.WithLabelValues(string(model.ProtocolLending)).Inc()
	to := common.HexToAddress(addr)
	results, err := r.caller.BatchCall(ctx, []chain.Call{
		viewCall(to, "name"),
		viewCall(to, "symbol"),
		viewCall(to, "UNDERLYING_ASSET_ADDRESS"),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch lending pool %s: %w", addr, err)
	}

	name, err := decodeString("name", results[0])
	if err != nil {
		return nil, fmt.Errorf("lending pool %s: %w", addr, err)
	}
	symbol, err := decodeString("symbol", results[1])
	if err != nil {
		return nil, fmt.Errorf("lending pool %s: %w", addr, err)
	}
	underlying, err := decodeAddress("UNDERLYING_ASSET_ADDRESS", results[2])
	if err != nil {
		return nil, fmt.Errorf("lending pool %s: %w", addr, err)
	}

	pool := &model.LendingPool{
		ID:              addr,
		Address:         addr,
		UnderlyingToken: model.NormalizeAddress(underlying.Hex()),
		Name:            name,
		Symbol:          symbol,
		LastIndex:       new(big.Int),
	}
	if err := r.register(ctx, addr, model.ProtocolLending); err != nil {
		return nil, err
	}
	if err := r.lending.Set(ctx, pool); err != nil {
		return nil, fmt.Errorf("persist lending pool %s: %w", addr, err)
	}
	metrics.PoolResolverCreated.WithLabelValues(string(model.ProtocolLending)).Inc()
	r.logger.Info("lending pool created", "pool", addr, "underlying", pool.UnderlyingToken)
	return pool, nil
}

// AMMPool returns the AMM pool record, fetching full metadata (including
// the token pair) on first sight.
func (r *Resolver) AMMPool(ctx context.Context, address string) (*model.AMMPool, error) {
	addr := model.NormalizeAddress(address)
	if pool, err := r.amm.Get(ctx, addr); err != nil {
		return nil, fmt.Errorf("lookup amm pool %s: %w", addr, err)
	} else if pool != nil {
		return pool, nil
	}

	to := common.HexToAddress(addr)
	results, err := r.fetchAMMMetadata(ctx, to, true)
	if err != nil {
		return nil, fmt.Errorf("fetch amm pool %s: %w", addr, err)
	}

	token0, err := decodeAddress("token0", results[6])
	if err != nil {
		return nil, fmt.Errorf("amm pool %s: %w", addr, err)
	}
	token1, err := decodeAddress("token1", results[7])
	if err != nil {
		return nil, fmt.Errorf("amm pool %s: %w", addr, err)
	}

	return r.materializeAMMPool(ctx, addr,
		model.NormalizeAddress(token0.Hex()), model.NormalizeAddress(token1.Hex()), results)
}

// CreateAMMPool materializes a pool announced by the factory. The token
// pair comes from the event; only the remaining metadata is fetched.
func (r *Resolver) CreateAMMPool(ctx context.Context, ev event.PoolCreated) (*model.AMMPool, error) {
	addr := model.NormalizeAddress(ev.Pool)
	if pool, err := r.amm.Get(ctx, addr); err != nil {
		return nil, fmt.Errorf("lookup amm pool %s: %w", addr, err)
	} else if pool != nil {
		return pool, nil
	}

	results, err := r.fetchAMMMetadata(ctx, common.HexToAddress(addr), false)
	if err != nil {
		return nil, fmt.Errorf("fetch amm pool %s: %w", addr, err)
	}
	return r.materializeAMMPool(ctx, addr,
		model.NormalizeAddress(ev.Token0), model.NormalizeAddress(ev.Token1), results)
}

// fetchAMMMetadata batches the metadata reads. The token pair calls ride
// along only when withTokens is set; result positions stay fixed.
func (r *Resolver) fetchAMMMetadata(ctx context.Context, to common.Address, withTokens bool) ([]chain.Result, error) {
	metrics.PoolResolverFetches.WithLabelValues(string(model.ProtocolAMM)).Inc()
	calls := []chain.Call{
		viewCall(to, "name"),
		viewCall(to, "symbol"),
		viewCall(to, "poolType"),
		viewCall(to, "token0PrecisionMultiplier"),
		viewCall(to, "token1PrecisionMultiplier"),
		viewCall(to, "totalSupply"),
	}
	if withTokens {
		calls = append(calls, viewCall(to, "token0"), viewCall(to, "token1"))
	}
	return r.caller.BatchCall(ctx, calls)
}

func (r *Resolver) materializeAMMPool(ctx context.Context, addr, token0, token1 string, results []chain.Result) (*model.AMMPool, error) {
	name, err := decodeString("name", results[0])
	if err != nil {
		return nil, fmt.Errorf("amm pool %s: %w", addr, err)
	}
	symbol, err := decodeString("symbol", results[1])
	if err != nil {
		return nil, fmt.Errorf("amm pool %s: %w", addr, err)
	}
	poolType, err := decodeBigInt("poolType", results[2])
	if err != nil {
		return nil, fmt.Errorf("amm pool %s: %w", addr, err)
	}
	totalSupply, err := decodeBigInt("totalSupply", results[5])
	if err != nil {
		return nil, fmt.Errorf("amm pool %s: %w", addr, err)
	}

	pool := &model.AMMPool{
		ID:       addr,
		Address:  addr,
		Token0:   token0,
		Token1:   token1,
		Name:     name,
		Symbol:   symbol,
		PoolType: poolType.Int64(),
		// Stable pools expose precision multipliers; classic pools revert.
		Token0PrecisionMultiplier: decodeBigIntOr("token0PrecisionMultiplier", results[3], 1),
		Token1PrecisionMultiplier: decodeBigIntOr("token1PrecisionMultiplier", results[4], 1),
		Reserve0:                  new(big.Int),
		Reserve1:                  new(big.Int),
		TotalSupply:               totalSupply,
	}
	if err := r.register(ctx, addr, model.ProtocolAMM); err != nil {
		return nil, err
	}
	if err := r.amm.Set(ctx, pool); err != nil {
		return nil, fmt.Errorf("persist amm pool %s: %w", addr, err)
	}
	r.ammSet.Add(addr)

	// Registration failure must not abort accounting; the pool will be
	// re-registered the next time the delivery subsystem restarts.
	if err := r.registrar.TrackContract(ctx, addr); err != nil {
		r.logger.Warn("dynamic contract registration failed", "pool", addr, "error", err)
	}

	metrics.PoolResolverCreated.WithLabelValues(string(model.ProtocolAMM)).Inc()
	r.logger.Info("amm pool created", "pool", addr, "token0", token0, "token1", token1)
	return pool, nil
}

// EnsureAggregatorPool returns the aggregator pool record, creating a bare
// one (no adapter linkage, zeroed supply) when absent. Used by the supply
// adjusting transfer path, which must not block on adapter probing.
func (r *Resolver) EnsureAggregatorPool(ctx context.Context, address string) (*model.AggregatorPool, error) {
	addr := model.NormalizeAddress(address)
	if pool, err := r.aggregator.Get(ctx, addr); err != nil {
		return nil, fmt.Errorf("lookup aggregator pool %s: %w", addr, err)
	} else if pool != nil {
		return pool, nil
	}

	pool := &model.AggregatorPool{
		ID:             addr,
		Address:        addr,
		TotalShares:    new(big.Int),
		TotalLiquidity: new(big.Int),
	}
	if err := r.register(ctx, addr, model.ProtocolAggregator); err != nil {
		return nil, err
	}
	if err := r.aggregator.Set(ctx, pool); err != nil {
		return nil, fmt.Errorf("persist aggregator pool %s: %w", addr, err)
	}
	metrics.PoolResolverCreated.WithLabelValues(string(model.ProtocolAggregator)).Inc()
	return pool, nil
}

// ClaimAggregatorPool resolves adapter ownership for an aggregator pool.
// Adapters are probed in registration order with a pool-config call; the
// first one reporting a non-zero underlying asset becomes the owner. When
// no adapter claims the pool the failure is logged, not raised, and
// (nil, nil) is returned — the caller's user-balance effect still applies
// and linkage is deferred to a future event.
func (r *Resolver) ClaimAggregatorPool(ctx context.Context, address string) (*model.AggregatorPool, error) {
	addr := model.NormalizeAddress(address)
	pool, err := r.aggregator.Get(ctx, addr)
	if err != nil {
		return nil, fmt.Errorf("lookup aggregator pool %s: %w", addr, err)
	}
	if pool != nil && pool.Adapter != "" {
		return pool, nil
	}

	adapters, err := r.adapters.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list adapters: %w", err)
	}

	poolAddr := common.HexToAddress(addr)
	for _, adapter := range adapters {
		metrics.PoolResolverFetches.WithLabelValues(string(model.ProtocolAggregator)).Inc()
		results, err := r.caller.BatchCall(ctx, []chain.Call{
			poolConfigCall(common.HexToAddress(adapter.Address), poolAddr),
		})
		if err != nil {
			r.logger.Error("adapter probe failed", "pool", addr, "adapter", adapter.Address, "error", err)
			continue
		}
		cfg, err := decodePoolConfig(results[0])
		if err != nil {
			r.logger.Error("adapter probe failed", "pool", addr, "adapter", adapter.Address, "error", err)
			continue
		}
		if cfg.Token == (common.Address{}) {
			continue
		}

		claimed := &model.AggregatorPool{
			ID:              addr,
			Address:         addr,
			Adapter:         model.NormalizeAddress(adapter.Address),
			UnderlyingToken: model.NormalizeAddress(cfg.Token.Hex()),
			TotalShares:     new(big.Int),
			TotalLiquidity:  new(big.Int),
		}
		if pool != nil {
			// Linkage deferred from an earlier event: keep the supply
			// accumulated before the adapter was known.
			claimed.TotalShares = pool.TotalShares
			claimed.TotalLiquidity = pool.TotalLiquidity
		}
		if err := r.register(ctx, addr, model.ProtocolAggregator); err != nil {
			return nil, err
		}
		if err := r.aggregator.Set(ctx, claimed); err != nil {
			return nil, fmt.Errorf("persist aggregator pool %s: %w", addr, err)
		}
		metrics.PoolResolverCreated.WithLabelValues(string(model.ProtocolAggregator)).Inc()
		r.logger.Info("aggregator pool claimed", "pool", addr, "adapter", claimed.Adapter, "underlying", claimed.UnderlyingToken)
		return claimed, nil
	}

	metrics.PoolResolverUnclaimed.Inc()
	r.logger.Warn("no adapter claimed aggregator pool", "pool", addr, "adapters_probed", len(adapters))
	return pool, nil
}

func (r *Resolver) register(ctx context.Context, addr string, protocol model.Protocol) error {
	entry := &model.PoolRegistryEntry{ID: addr, Pool: addr, Protocol: protocol}
	if err := r.registry.Set(ctx, entry); err != nil {
		return fmt.Errorf("register %s pool %s: %w", protocol, addr, err)
	}
	return nil
}
