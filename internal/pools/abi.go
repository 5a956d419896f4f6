package pools

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/getclave/activity-indexer/internal/chain"
)

// poolABI covers every read-only method the resolver touches across the
// three pool families. Pools that lack a method simply fail that one call
// in the batch; the resolver substitutes defaults for absent views.
const poolABIJSON = `[
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
]`

var poolABI = mustParseABI(poolABIJSON)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse pool abi: %v", err))
	}
	return parsed
}

// viewCall packs a zero-argument view method into a chain.Call.
func viewCall(to common.Address, method string) chain.Call {
	data, err := poolABI.Pack(method)
	if err != nil {
		panic(fmt.Sprintf("pack %s: %v", method, err))
	}
	return chain.Call{To: to, Data: data}
}

// poolConfigCall packs getPoolConfig(pool) against an adapter.
func poolConfigCall(adapter, pool common.Address) chain.Call {
	data, err := poolABI.Pack("getPoolConfig", pool)
	if err != nil {
		panic(fmt.Sprintf("pack getPoolConfig: %v", err))
	}
	return chain.Call{To: adapter, Data: data}
}

func decodeString(method string, res chain.Result) (string, error) {
	if res.Err != nil {
		return "", fmt.Errorf("%s: %w", method, res.Err)
	}
	out, err := poolABI.Unpack(method, res.Data)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", method, err)
	}
	s, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return s, nil
}

func decodeAddress(method string, res chain.Result) (common.Address, error) {
	if res.Err != nil {
		return common.Address{}, fmt.Errorf("%s: %w", method, res.Err)
	}
	out, err := poolABI.Unpack(method, res.Data)
	if err != nil {
		return common.Address{}, fmt.Errorf("unpack %s: %w", method, err)
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return addr, nil
}

func decodeBigInt(method string, res chain.Result) (*big.Int, error) {
	if res.Err != nil {
		return nil, fmt.Errorf("%s: %w", method, res.Err)
	}
	out, err := poolABI.Unpack(method, res.Data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unpack %s: unexpected type %T", method, out[0])
	}
	return v, nil
}

// decodeBigIntOr decodes a uint256 result, substituting def when the call
// failed or returned nothing (precision multipliers default to 1).
func decodeBigIntOr(method string, res chain.Result, def int64) *big.Int {
	if res.Err != nil || len(res.Data) == 0 {
		return big.NewInt(def)
	}
	v, err := decodeBigInt(method, res)
	if err != nil {
		return big.NewInt(def)
	}
	return v
}

// poolConfig mirrors the adapter getPoolConfig return tuple.
type poolConfig struct {
	Token          common.Address
	PerformanceFee *big.Int
	NonClaveFee    *big.Int
}

func decodePoolConfig(res chain.Result) (poolConfig, error) {
	if res.Err != nil {
		return poolConfig{}, fmt.Errorf("getPoolConfig: %w", res.Err)
	}
	out, err := poolABI.Unpack("getPoolConfig", res.Data)
	if err != nil {
		return poolConfig{}, fmt.Errorf("unpack getPoolConfig: %w", err)
	}
	cfg := abi.ConvertType(out[0], poolConfig{}).(poolConfig)
	return cfg, nil
}
