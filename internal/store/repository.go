package store

import (
	"context"

	"github.com/getclave/activity-indexer/internal/domain/model"
)

// AccountRepository provides access to tracked wallet accounts.
type AccountRepository interface {
	Get(ctx context.Context, id string) (*model.Account, error)
	Set(ctx context.Context, a *model.Account) error
}

// IdleBalanceRepository provides access to plain token balances. Get
// returns (nil, nil) when no record exists; an absent prior is implicit
// zero, never an error. SetHistorical upserts the snapshot row for the
// given bucket (last write in a bucket wins).
type IdleBalanceRepository interface {
	Get(ctx context.Context, id string) (*model.IdleBalance, error)
	Set(ctx context.Context, b *model.IdleBalance) error
	SetHistorical(ctx context.Context, b *model.IdleBalance, bucketTS int64) error
}

// EarnBalanceRepository provides access to per-pool share balances.
type EarnBalanceRepository interface {
	Get(ctx context.Context, id string) (*model.EarnBalance, error)
	Set(ctx context.Context, b *model.EarnBalance) error
	SetHistorical(ctx context.Context, b *model.EarnBalance, bucketTS int64) error
}

// LendingPoolRepository provides access to lending pool state.
type LendingPoolRepository interface {
	Get(ctx context.Context, id string) (*model.LendingPool, error)
	Set(ctx context.Context, p *model.LendingPool) error
	SetHistorical(ctx context.Context, p *model.LendingPool, bucketTS int64) error
}

// AMMPoolRepository provides access to AMM pool state.
type AMMPoolRepository interface {
	Get(ctx context.Context, id string) (*model.AMMPool, error)
	Set(ctx context.Context, p *model.AMMPool) error
	SetHistorical(ctx context.Context, p *model.AMMPool, bucketTS int64) error
}

// AggregatorPoolRepository provides access to aggregator pool state.
type AggregatorPoolRepository interface {
	Get(ctx context.Context, id string) (*model.AggregatorPool, error)
	Set(ctx context.Context, p *model.AggregatorPool) error
	SetHistorical(ctx context.Context, p *model.AggregatorPool, bucketTS int64) error
}

// PoolRegistryRepository is the cross-protocol pool index. Set is
// first-write-wins on the pool key: a pool's protocol is immutable, so
// redundant concurrent creation of the same pool cannot flip its
// classification. Protocols answers a bulk membership query for
// classification.
type PoolRegistryRepository interface {
	Set(ctx context.Context, e *model.PoolRegistryEntry) error
	Protocols(ctx context.Context, pools []string) (map[string]model.Protocol, error)
	ListByProtocol(ctx context.Context, p model.Protocol) ([]string, error)
}

// AdapterRepository provides access to registered aggregator adapters.
// List returns adapters in registration order; probing depends on it.
type AdapterRepository interface {
	Set(ctx context.Context, a *model.Adapter) error
	List(ctx context.Context) ([]model.Adapter, error)
}

// WalletRepository is the authoritative source of tracked wallet
// membership. FilterTracked returns the subset of addrs that are tracked.
type WalletRepository interface {
	FilterTracked(ctx context.Context, addrs []string) (map[string]struct{}, error)
}
