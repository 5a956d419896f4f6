package evm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethrpc "github.com/ethereum/go-ethereum/rpc"

	"github.com/getclave/activity-indexer/internal/chain"
	"github.com/getclave/activity-indexer/internal/chain/ratelimit"
	"github.com/getclave/activity-indexer/internal/metrics"
)

// Client implements chain.Caller on top of an EVM JSON-RPC endpoint,
// batching eth_call requests into a single round trip.
type Client struct {
	rpc     *gethrpc.Client
	limiter *ratelimit.Limiter
	logger  *slog.Logger
}

var _ chain.Caller = (*Client)(nil)

// Dial connects to the given JSON-RPC endpoint.
func Dial(ctx context.Context, rpcURL string, rps float64, burst int, logger *slog.Logger) (*Client, error) {
	rc, err := gethrpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return &Client{
		rpc:     rc,
		limiter: ratelimit.NewLimiter(rps, burst),
		logger:  logger.With("component", "evm_client"),
	}, nil
}

// NewClient wraps an existing rpc client. Used by tests.
func NewClient(rc *gethrpc.Client, rps float64, burst int, logger *slog.Logger) *Client {
	return &Client{
		rpc:     rc,
		limiter: ratelimit.NewLimiter(rps, burst),
		logger:  logger.With("component", "evm_client"),
	}
}

// BatchCall issues every call as an eth_call against the latest block in
// one batched request. Per-call failures (reverts, bad targets) land in
// the matching Result; only transport-level failures fail the batch.
func (c *Client) BatchCall(ctx context.Context, calls []chain.Call) ([]chain.Result, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	batch := make([]gethrpc.BatchElem, len(calls))
	outputs := make([]hexutil.Bytes, len(calls))
	for i, call := range calls {
		batch[i] = gethrpc.BatchElem{
			Method: "eth_call",
			Args: []interface{}{
				map[string]interface{}{
					"to":   call.To,
					"data": hexutil.Bytes(call.Data),
				},
				"latest",
			},
			Result: &outputs[i],
		}
	}

	metrics.RPCBatchSize.Observe(float64(len(calls)))
	err := c.rpc.BatchCallContext(ctx, batch)
	ratelimit.RecordRPCCall("eth_call", err)
	if err != nil {
		return nil, fmt.Errorf("batch eth_call: %w", err)
	}

	results := make([]chain.Result, len(calls))
	for i := range batch {
		results[i] = chain.Result{Data: outputs[i], Err: batch[i].Error}
	}
	return results, nil
}

// Close releases the underlying rpc connection.
func (c *Client) Close() {
	c.rpc.Close()
}
