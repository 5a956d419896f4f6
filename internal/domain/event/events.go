package event

import (
	"math/big"
	"time"
)

// Block carries the chain position every event is anchored to.
type Block struct {
	Number    int64
	Timestamp int64
}

// Time returns the block timestamp as a time.Time.
func (b Block) Time() time.Time {
	return time.Unix(b.Timestamp, 0)
}

// Transfer is an ERC20-shaped transfer: token contract, both parties and
// the unsigned amount. The router classifies it by the source contract.
type Transfer struct {
	Contract string
	From     string
	To       string
	Value    *big.Int
	Block    Block
}

// Sync is an AMM reserve synchronization. Reserves overwrite pool state
// unconditionally; there is no delta semantics here.
type Sync struct {
	Contract string
	Reserve0 *big.Int
	Reserve1 *big.Int
	Block    Block
}

// LiquidityMint is an AMM LP mint: liquidity added to the pool's supply.
type LiquidityMint struct {
	Contract  string
	Liquidity *big.Int
	Block     Block
}

// LiquidityBurn is an AMM LP burn: liquidity removed from the pool's supply.
type LiquidityBurn struct {
	Contract  string
	Liquidity *big.Int
	Block     Block
}

// SupplyMint is a lending-pool share mint. Index is the pool accrual index
// carried by the event; it overwrites both pool and user bookkeeping.
type SupplyMint struct {
	Contract   string
	OnBehalfOf string
	Value      *big.Int
	Index      *big.Int
	Block      Block
}

// SupplyBurn is a lending-pool share burn.
type SupplyBurn struct {
	Contract string
	From     string
	Value    *big.Int
	Index    *big.Int
	Block    Block
}

// Deposit is an aggregator deposit: the user receives shares of the
// referenced underlying pool.
type Deposit struct {
	Contract string
	Pool     string
	User     string
	Shares   *big.Int
	Block    Block
}

// Withdraw is an aggregator withdrawal.
type Withdraw struct {
	Contract string
	Pool     string
	User     string
	Shares   *big.Int
	Block    Block
}

// PoolCreated announces a new AMM pool from the factory.
type PoolCreated struct {
	Contract string
	Pool     string
	Token0   string
	Token1   string
	Block    Block
}

// AdapterAdded registers a new aggregator adapter.
type AdapterAdded struct {
	Contract string
	Adapter  string
	Block    Block
}
