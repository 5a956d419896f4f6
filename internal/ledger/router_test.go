package ledger

import (
	"context"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getclave/activity-indexer/internal/domain/event"
	"github.com/getclave/activity-indexer/internal/domain/model"
	"github.com/getclave/activity-indexer/internal/membership"
	"github.com/getclave/activity-indexer/internal/pools"
)

const (
	walletA        = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	walletB        = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	strangerC      = "0xcccccccccccccccccccccccccccccccccccccccc"
	tokenUSDC      = "0x1111111111111111111111111111111111111111"
	lendingPool1   = "0x2222222222222222222222222222222222222222"
	ammPool1       = "0x3333333333333333333333333333333333333333"
	aggPool1       = "0x4444444444444444444444444444444444444444"
	adapterOne     = "0x5555555555555555555555555555555555555555"
	adapterTwo     = "0x6666666666666666666666666666666666666666"
	aggregatorMain = "0x9999999999999999999999999999999999999999"
	underlyingDAI  = "0x7777777777777777777777777777777777777777"
)

type testEnv struct {
	router     *Router
	accounts   *fakeAccountRepo
	idle       *fakeIdleRepo
	earn       *fakeEarnRepo
	lending    *fakeLendingRepo
	amm        *fakeAMMRepo
	aggregator *fakeAggregatorRepo
	registry   *fakeRegistryRepo
	adapters   *fakeAdapterRepo
	caller     *fakeCaller
	registrar  *fakeRegistrar
}

func newTestEnv(t *testing.T, trackedWallets ...string) *testEnv {
	t.Helper()

	env := &testEnv{
		accounts:   newFakeAccountRepo(),
		idle:       newFakeIdleRepo(),
		earn:       newFakeEarnRepo(),
		lending:    newFakeLendingRepo(),
		amm:        newFakeAMMRepo(),
		aggregator: newFakeAggregatorRepo(),
		registry:   newFakeRegistryRepo(),
		adapters:   &fakeAdapterRepo{},
		caller:     newFakeCaller(),
		registrar:  &fakeRegistrar{},
	}

	logger := slog.Default()
	wallets := membership.NewWalletCache(newFakeWalletRepo(trackedWallets...), membership.WalletCacheConfig{})
	ammSet := membership.NewPoolSet(model.ProtocolAMM, env.registry, 64)
	resolver := pools.NewResolver(env.caller, env.registrar,
		env.lending, env.amm, env.aggregator, env.registry, env.adapters, ammSet, logger)

	env.router = NewRouter(
		env.accounts, env.idle, env.earn, env.lending, env.amm, env.aggregator,
		env.adapters, env.registry, wallets, ammSet, resolver,
		aggregatorMain, logger,
	)
	return env
}

func (e *testEnv) stubLendingPool(contract string) {
	e.caller.stub(contract, "name", encodeOutput("name", "Clave Interest DAI"))
	e.caller.stub(contract, "symbol", encodeOutput("symbol", "cDAI"))
	e.caller.stub(contract, "UNDERLYING_ASSET_ADDRESS",
		encodeOutput("UNDERLYING_ASSET_ADDRESS", addr(underlyingDAI)))
}

func (e *testEnv) stubAMMPool(contract string, withMultipliers bool) {
	e.caller.stub(contract, "name", encodeOutput("name", "USDC/DAI cLP"))
	e.caller.stub(contract, "symbol", encodeOutput("symbol", "cLP"))
	e.caller.stub(contract, "poolType", encodeOutput("poolType", big.NewInt(2)))
	e.caller.stub(contract, "totalSupply", encodeOutput("totalSupply", big.NewInt(0)))
	e.caller.stub(contract, "token0", encodeOutput("token0", addr(tokenUSDC)))
	e.caller.stub(contract, "token1", encodeOutput("token1", addr(underlyingDAI)))
	if withMultipliers {
		e.caller.stub(contract, "token0PrecisionMultiplier",
			encodeOutput("token0PrecisionMultiplier", big.NewInt(1_000_000)))
		e.caller.stub(contract, "token1PrecisionMultiplier",
			encodeOutput("token1PrecisionMultiplier", big.NewInt(1)))
	}
}

func transferEvent(from, to string, value int64, ts int64) event.Transfer {
	return event.Transfer{
		Contract: tokenUSDC,
		From:     from,
		To:       to,
		Value:    big.NewInt(value),
		Block:    event.Block{Number: 100, Timestamp: ts},
	}
}

func TestHandleTransfer_SelfTransferIsNoOp(t *testing.T) {
	env := newTestEnv(t, walletA)

	err := env.router.HandleTransfer(context.Background(), transferEvent(walletA, walletA, 100, 1000))
	require.NoError(t, err)

	assert.Empty(t, env.idle.balances)
	assert.Empty(t, env.accounts.accounts)
}

func TestHandleTransfer_BothPartiesUntrackedIsDropped(t *testing.T) {
	env := newTestEnv(t, walletA)

	err := env.router.HandleTransfer(context.Background(), transferEvent(strangerC, walletB, 100, 1000))
	require.NoError(t, err)

	assert.Empty(t, env.idle.balances)
}

func TestHandleTransfer_IdleBalancesMoveForTrackedParties(t *testing.T) {
	env := newTestEnv(t, walletA, walletB)

	err := env.router.HandleTransfer(context.Background(), transferEvent(walletA, walletB, 100, 1000))
	require.NoError(t, err)

	sender := env.idle.balances[model.IdleBalanceID(walletA, tokenUSDC)]
	require.NotNil(t, sender)
	assert.Equal(t, int64(-100), sender.Balance.Int64())

	receiver := env.idle.balances[model.IdleBalanceID(walletB, tokenUSDC)]
	require.NotNil(t, receiver)
	assert.Equal(t, int64(100), receiver.Balance.Int64())

	// Both parties got accounts on first sight.
	assert.NotNil(t, env.accounts.accounts[walletA])
	assert.NotNil(t, env.accounts.accounts[walletB])
}

func TestHandleTransfer_UntrackedCounterpartyLeavesNoRecord(t *testing.T) {
	env := newTestEnv(t, walletA)

	err := env.router.HandleTransfer(context.Background(), transferEvent(walletA, strangerC, 40, 1000))
	require.NoError(t, err)

	require.NotNil(t, env.idle.balances[model.IdleBalanceID(walletA, tokenUSDC)])
	assert.Nil(t, env.idle.balances[model.IdleBalanceID(strangerC, tokenUSDC)])
	assert.Nil(t, env.accounts.accounts[strangerC])
}

// An outgoing transfer observed before any incoming one must leave a
// negative balance that a later deposit cancels exactly.
func TestHandleTransfer_NegativeTransientBalance(t *testing.T) {
	env := newTestEnv(t, walletA, walletB)
	ctx := context.Background()

	require.NoError(t, env.router.HandleTransfer(ctx, transferEvent(walletA, walletB, 70, 1000)))
	sender := env.idle.balances[model.IdleBalanceID(walletA, tokenUSDC)]
	assert.Equal(t, int64(-70), sender.Balance.Int64())

	require.NoError(t, env.router.HandleTransfer(ctx, transferEvent(walletB, walletA, 70, 1001)))
	sender = env.idle.balances[model.IdleBalanceID(walletA, tokenUSDC)]
	assert.Equal(t, int64(0), sender.Balance.Int64())
}

// Applying the same transfer set in different orders must converge.
func TestHandleTransfer_OrderIndependence(t *testing.T) {
	transfers := []event.Transfer{
		transferEvent(walletA, walletB, 100, 1000),
		transferEvent(walletB, walletA, 30, 1001),
		transferEvent(walletA, walletB, 55, 1002),
	}
	orders := [][]int{{0, 1, 2}, {2, 0, 1}, {1, 2, 0}}

	var want int64
	for i, order := range orders {
		env := newTestEnv(t, walletA, walletB)
		for _, idx := range order {
			require.NoError(t, env.router.HandleTransfer(context.Background(), transfers[idx]))
		}
		got := env.idle.balances[model.IdleBalanceID(walletA, tokenUSDC)].Balance.Int64()
		if i == 0 {
			want = got
			continue
		}
		assert.Equal(t, want, got, "order %v diverged", order)
	}
}

// A transfer whose source contract is a registered pool is a share
// transfer even when neither party is a tracked wallet's counterparty in
// the idle sense.
func TestHandleTransfer_PoolTokenClassifiesAsShares(t *testing.T) {
	env := newTestEnv(t, walletA, walletB)
	env.stubLendingPool(lendingPool1)
	require.NoError(t, env.registry.Set(context.Background(),
		&model.PoolRegistryEntry{ID: lendingPool1, Pool: lendingPool1, Protocol: model.ProtocolLending}))

	ev := event.Transfer{
		Contract: lendingPool1,
		From:     walletA,
		To:       walletB,
		Value:    big.NewInt(25),
		Block:    event.Block{Number: 100, Timestamp: 1000},
	}
	require.NoError(t, env.router.HandleTransfer(context.Background(), ev))

	// No idle records; both sides moved in shares.
	assert.Empty(t, env.idle.balances)
	sender := env.earn.balances[model.EarnBalanceID(walletA, lendingPool1)]
	require.NotNil(t, sender)
	assert.Equal(t, int64(-25), sender.ShareBalance.Int64())
	assert.Equal(t, model.ProtocolLending, sender.Protocol)

	receiver := env.earn.balances[model.EarnBalanceID(walletB, lendingPool1)]
	require.NotNil(t, receiver)
	assert.Equal(t, int64(25), receiver.ShareBalance.Int64())
}

// Share transfers touching the aggregator main contract adjust the pool's
// recorded supply instead of any account balance.
func TestHandleTransfer_AggregatorMainAdjustsSupply(t *testing.T) {
	env := newTestEnv(t, walletA)
	require.NoError(t, env.registry.Set(context.Background(),
		&model.PoolRegistryEntry{ID: aggPool1, Pool: aggPool1, Protocol: model.ProtocolAggregator}))

	deposit := event.Transfer{
		Contract: aggPool1,
		From:     walletA,
		To:       aggregatorMain,
		Value:    big.NewInt(500),
		Block:    event.Block{Number: 100, Timestamp: 1000},
	}
	require.NoError(t, env.router.HandleTransfer(context.Background(), deposit))

	pool := env.aggregator.pools[aggPool1]
	require.NotNil(t, pool)
	assert.Equal(t, int64(500), pool.TotalShares.Int64())
	assert.Empty(t, env.earn.balances, "main contract is not an account")

	withdraw := event.Transfer{
		Contract: aggPool1,
		From:     aggregatorMain,
		To:       walletA,
		Value:    big.NewInt(200),
		Block:    event.Block{Number: 101, Timestamp: 1001},
	}
	require.NoError(t, env.router.HandleTransfer(context.Background(), withdraw))
	assert.Equal(t, int64(300), env.aggregator.pools[aggPool1].TotalShares.Int64())
}

// Repeated writes inside one hour collapse onto a single historical row;
// a write in the next hour opens a new one.
func TestHandleTransfer_SnapshotBucketCollapse(t *testing.T) {
	env := newTestEnv(t, walletA, walletB)
	ctx := context.Background()

	base := int64(7200)
	require.NoError(t, env.router.HandleTransfer(ctx, transferEvent(walletA, walletB, 10, base+1)))
	require.NoError(t, env.router.HandleTransfer(ctx, transferEvent(walletA, walletB, 10, base+1800)))
	require.NoError(t, env.router.HandleTransfer(ctx, transferEvent(walletA, walletB, 10, base+3600)))

	id := model.IdleBalanceID(walletA, tokenUSDC)
	inBucket := env.idle.historical[model.HistoricalID(id, base)]
	require.NotNil(t, inBucket)
	assert.Equal(t, int64(-20), inBucket.Balance.Int64(), "second write wins within the bucket")

	nextBucket := env.idle.historical[model.HistoricalID(id, base+3600)]
	require.NotNil(t, nextBucket)
	assert.Equal(t, int64(-30), nextBucket.Balance.Int64())
	assert.Len(t, env.idle.historical, 2)
}

func TestHandleTransfer_AllTrackedOverride(t *testing.T) {
	env := newTestEnv(t) // no tracked wallets at all

	logger := slog.Default()
	wallets := membership.NewWalletCache(newFakeWalletRepo(), membership.WalletCacheConfig{})
	ammSet := membership.NewPoolSet(model.ProtocolAMM, env.registry, 64)
	resolver := pools.NewResolver(env.caller, env.registrar,
		env.lending, env.amm, env.aggregator, env.registry, env.adapters, ammSet, logger)
	router := NewRouter(
		env.accounts, env.idle, env.earn, env.lending, env.amm, env.aggregator,
		env.adapters, env.registry, wallets, ammSet, resolver,
		aggregatorMain, logger, WithAllWalletsTracked(),
	)

	require.NoError(t, router.HandleTransfer(context.Background(), transferEvent(strangerC, walletB, 5, 1000)))
	assert.NotNil(t, env.idle.balances[model.IdleBalanceID(strangerC, tokenUSDC)])
	assert.NotNil(t, env.idle.balances[model.IdleBalanceID(walletB, tokenUSDC)])
}
