package ledger

import (
	"context"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/getclave/activity-indexer/internal/chain"
	"github.com/getclave/activity-indexer/internal/domain/model"
)

// In-memory repository fakes. Each one records historical writes keyed by
// the bucketed id so tests can assert snapshot collapse.

type fakeAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]*model.Account
}

func newFakeAccountRepo() *fakeAccountRepo {
	return &fakeAccountRepo{accounts: map[string]*model.Account{}}
}

func (f *fakeAccountRepo) Get(_ context.Context, id string) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.accounts[id], nil
}

func (f *fakeAccountRepo) Set(_ context.Context, a *model.Account) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[a.ID] = a
	return nil
}

type fakeIdleRepo struct {
	mu         sync.Mutex
	balances   map[string]*model.IdleBalance
	historical map[string]*model.IdleBalance
}

func newFakeIdleRepo() *fakeIdleRepo {
	return &fakeIdleRepo{
		balances:   map[string]*model.IdleBalance{},
		historical: map[string]*model.IdleBalance{},
	}
}

func (f *fakeIdleRepo) Get(_ context.Context, id string) (*model.IdleBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[id], nil
}

func (f *fakeIdleRepo) Set(_ context.Context, b *model.IdleBalance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[b.ID] = b
	return nil
}

func (f *fakeIdleRepo) SetHistorical(_ context.Context, b *model.IdleBalance, bucketTS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historical[model.HistoricalID(b.ID, bucketTS)] = b
	return nil
}

type fakeEarnRepo struct {
	mu         sync.Mutex
	balances   map[string]*model.EarnBalance
	historical map[string]*model.EarnBalance
}

func newFakeEarnRepo() *fakeEarnRepo {
	return &fakeEarnRepo{
		balances:   map[string]*model.EarnBalance{},
		historical: map[string]*model.EarnBalance{},
	}
}

func (f *fakeEarnRepo) Get(_ context.Context, id string) (*model.EarnBalance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balances[id], nil
}

func (f *fakeEarnRepo) Set(_ context.Context, b *model.EarnBalance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[b.ID] = b
	return nil
}

func (f *fakeEarnRepo) SetHistorical(_ context.Context, b *model.EarnBalance, bucketTS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historical[model.HistoricalID(b.ID, bucketTS)] = b
	return nil
}

type fakeLendingRepo struct {
	mu         sync.Mutex
	pools      map[string]*model.LendingPool
	historical map[string]*model.LendingPool
}

func newFakeLendingRepo() *fakeLendingRepo {
	return &fakeLendingRepo{
		pools:      map[string]*model.LendingPool{},
		historical: map[string]*model.LendingPool{},
	}
}

func (f *fakeLendingRepo) Get(_ context.Context, id string) (*model.LendingPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pools[id], nil
}

func (f *fakeLendingRepo) Set(_ context.Context, p *model.LendingPool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools[p.ID] = p
	return nil
}

func (f *fakeLendingRepo) SetHistorical(_ context.Context, p *model.LendingPool, bucketTS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historical[model.HistoricalID(p.ID, bucketTS)] = p
	return nil
}

type fakeAMMRepo struct {
	mu         sync.Mutex
	pools      map[string]*model.AMMPool
	historical map[string]*model.AMMPool
}

func newFakeAMMRepo() *fakeAMMRepo {
	return &fakeAMMRepo{
		pools:      map[string]*model.AMMPool{},
		historical: map[string]*model.AMMPool{},
	}
}

func (f *fakeAMMRepo) Get(_ context.Context, id string) (*model.AMMPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pools[id], nil
}

func (f *fakeAMMRepo) Set(_ context.Context, p *model.AMMPool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools[p.ID] = p
	return nil
}

func (f *fakeAMMRepo) SetHistorical(_ context.Context, p *model.AMMPool, bucketTS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historical[model.HistoricalID(p.ID, bucketTS)] = p
	return nil
}

type fakeAggregatorRepo struct {
	mu         sync.Mutex
	pools      map[string]*model.AggregatorPool
	historical map[string]*model.AggregatorPool
}

func newFakeAggregatorRepo() *fakeAggregatorRepo {
	return &fakeAggregatorRepo{
		pools:      map[string]*model.AggregatorPool{},
		historical: map[string]*model.AggregatorPool{},
	}
}

func (f *fakeAggregatorRepo) Get(_ context.Context, id string) (*model.AggregatorPool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pools[id], nil
}

func (f *fakeAggregatorRepo) Set(_ context.Context, p *model.AggregatorPool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pools[p.ID] = p
	return nil
}

func (f *fakeAggregatorRepo) SetHistorical(_ context.Context, p *model.AggregatorPool, bucketTS int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historical[model.HistoricalID(p.ID, bucketTS)] = p
	return nil
}

type fakeRegistryRepo struct {
	mu      sync.Mutex
	entries map[string]model.Protocol
}

func newFakeRegistryRepo() *fakeRegistryRepo {
	return &fakeRegistryRepo{entries: map[string]model.Protocol{}}
}

func (f *fakeRegistryRepo) Set(_ context.Context, e *model.PoolRegistryEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.entries[e.Pool]; !ok {
		f.entries[e.Pool] = e.Protocol
	}
	return nil
}

func (f *fakeRegistryRepo) Protocols(_ context.Context, pools []string) (map[string]model.Protocol, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]model.Protocol{}
	for _, pool := range pools {
		if p, ok := f.entries[pool]; ok {
			out[pool] = p
		}
	}
	return out, nil
}

func (f *fakeRegistryRepo) ListByProtocol(_ context.Context, p model.Protocol) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for pool, proto := range f.entries {
		if proto == p {
			out = append(out, pool)
		}
	}
	return out, nil
}

type fakeAdapterRepo struct {
	mu       sync.Mutex
	adapters []model.Adapter
}

func (f *fakeAdapterRepo) Set(_ context.Context, a *model.Adapter) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.adapters {
		if existing.ID == a.ID {
			return nil
		}
	}
	f.adapters = append(f.adapters, *a)
	return nil
}

func (f *fakeAdapterRepo) List(_ context.Context) ([]model.Adapter, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Adapter, len(f.adapters))
	copy(out, f.adapters)
	return out, nil
}

type fakeWalletRepo struct {
	mu      sync.Mutex
	tracked map[string]struct{}
}

func newFakeWalletRepo(addrs ...string) *fakeWalletRepo {
	f := &fakeWalletRepo{tracked: map[string]struct{}{}}
	for _, a := range addrs {
		f.tracked[model.NormalizeAddress(a)] = struct{}{}
	}
	return f
}

func (f *fakeWalletRepo) FilterTracked(_ context.Context, addrs []string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]struct{}{}
	for _, a := range addrs {
		a = model.NormalizeAddress(a)
		if _, ok := f.tracked[a]; ok {
			out[a] = struct{}{}
		}
	}
	return out, nil
}

// fakeCaller serves batched view calls from canned per-contract method
// results, ABI-encoded the way a node would return them.
type fakeCaller struct {
	mu      sync.Mutex
	returns map[string]map[string][]byte
	batches int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{returns: map[string]map[string][]byte{}}
}

func (f *fakeCaller) stub(contract, method string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(contract)
	if f.returns[key] == nil {
		f.returns[key] = map[string][]byte{}
	}
	f.returns[key][method] = data
}

func (f *fakeCaller) BatchCall(_ context.Context, calls []chain.Call) ([]chain.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches++
	results := make([]chain.Result, len(calls))
	for i, call := range calls {
		method, err := testPoolABI.MethodById(call.Data[:4])
		if err != nil {
			results[i] = chain.Result{Err: err}
			continue
		}
		data, ok := f.returns[strings.ToLower(call.To.Hex())][method.Name]
		if !ok {
			results[i] = chain.Result{Err: errExecutionReverted}
			continue
		}
		results[i] = chain.Result{Data: data}
	}
	return results, nil
}

var errExecutionReverted = &revertError{}

type revertError struct{}

func (*revertError) Error() string { return "execution reverted" }

type fakeRegistrar struct {
	mu        sync.Mutex
	contracts []string
}

func (f *fakeRegistrar) TrackContract(_ context.Context, address string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contracts = append(f.contracts, address)
	return nil
}

// testPoolABI mirrors the view surface the resolver reads, used to encode
// canned return data for the fake caller.
var testPoolABI = mustTestABI(`[
	{"type":"function","stateMutability":"view","name":"name","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","stateMutability":"view","name":"symbol","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","stateMutability":"view","name":"UNDERLYING_ASSET_ADDRESS","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","stateMutability":"view","name":"token0","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","stateMutability":"view","name":"token1","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","stateMutability":"view","name":"poolType","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"token0PrecisionMultiplier","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"token1PrecisionMultiplier","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"totalSupply","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","stateMutability":"view","name":"getPoolConfig","inputs":[{"name":"pool","type":"address"}],"outputs":[{"name":"","type":"tuple","components":[{"name":"token","type":"address"},{"name":"performanceFee","type":"uint256"},{"name":"nonClaveFee","type":"uint256"}]}]}
]`)

func mustTestABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

func addr(s string) common.Address {
	return common.HexToAddress(s)
}

func encodeOutput(method string, values ...interface{}) []byte {
	data, err := testPoolABI.Methods[method].Outputs.Pack(values...)
	if err != nil {
		panic(err)
	}
	return data
}

func encodePoolConfig(token common.Address) []byte {
	data, err := testPoolABI.Methods["getPoolConfig"].Outputs.Pack(struct {
		Token          common.Address
		PerformanceFee *big.Int
		NonClaveFee    *big.Int
	}{Token: token, PerformanceFee: new(big.Int), NonClaveFee: new(big.Int)})
	if err != nil {
		panic(err)
	}
	return data
}
