package chain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

// Call is one read-only contract call: target address plus ABI-encoded
// calldata. Callers own the encoding; the transport stays codec-free.
type Call struct {
	To   common.Address
	Data []byte
}

// Result is the outcome of one call. Err is per-call: a reverted or
// malformed call does not fail the rest of the batch.
type Result struct {
	Data []byte
	Err  error
}

// Caller issues a batch of read-only calls in one round trip, returning
// one Result per Call in input order.
type Caller interface {
	BatchCall(ctx context.Context, calls []Call) ([]Result, error)
}

// Registrar asks the external delivery subsystem to start tracking a
// contract address for future events. Used when a new pool is created.
type Registrar interface {
	TrackContract(ctx context.Context, address string) error
}
