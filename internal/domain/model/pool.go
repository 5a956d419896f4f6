package model

import "math/big"

// LendingPool is an interest-bearing pool whose share token accrues value
// through a monotonically growing index. Identity, underlying linkage and
// display metadata are immutable after creation; only LastIndex mutates.
type LendingPool struct {
	ID              string   `db:"id"`
	Address         string   `db:"address"`
	UnderlyingToken string   `db:"underlying_token"`
	Name            string   `db:"name"`
	Symbol          string   `db:"symbol"`
	LastIndex       *big.Int `db:"last_index"`
}

// AMMPool is a two-sided liquidity pool. Reserves and total supply mutate;
// everything else is fixed at creation. Precision multipliers default to 1
// when the contract does not expose them.
type AMMPool struct {
	ID                        string   `db:"id"`
	Address                   string   `db:"address"`
	Token0                    string   `db:"token0"`
	Token1                    string   `db:"token1"`
	Name                      string   `db:"name"`
	Symbol                    string   `db:"symbol"`
	PoolType                  int64    `db:"pool_type"`
	Token0PrecisionMultiplier *big.Int `db:"token0_precision_multiplier"`
	Token1PrecisionMultiplier *big.Int `db:"token1_precision_multiplier"`
	Reserve0                  *big.Int `db:"reserve0"`
	Reserve1                  *big.Int `db:"reserve1"`
	TotalSupply               *big.Int `db:"total_supply"`
}

// AggregatorPool is a meta-protocol pool: the aggregator deposits into an
// underlying pool on behalf of users via a per-protocol adapter. Adapter
// and underlying linkage are discovered lazily; TotalShares and
// TotalLiquidity mutate.
type AggregatorPool struct {
	ID              string   `db:"id"`
	Address         string   `db:"address"`
	Adapter         string   `db:"adapter"`
	UnderlyingToken string   `db:"underlying_token"`
	TotalShares     *big.Int `db:"total_shares"`
	TotalLiquidity  *big.Int `db:"total_liquidity"`
}

// PoolRegistryEntry maps a pool address to the protocol family that owns
// it. Written once at pool creation; never updated.
type PoolRegistryEntry struct {
	ID       string   `db:"id"`
	Pool     string   `db:"pool"`
	Protocol Protocol `db:"protocol"`
}

// Adapter is a registered aggregator adapter, probed in registration order
// when an unknown pool is first seen through the aggregator.
type Adapter struct {
	ID      string `db:"id"`
	Address string `db:"address"`
}
