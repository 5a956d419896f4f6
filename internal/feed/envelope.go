package feed

import (
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/getclave/activity-indexer/internal/domain/event"
)

// Trigger names carried in the envelope type field.
const (
	TriggerTransfer      = "transfer"
	TriggerSync          = "sync"
	TriggerLiquidityMint = "liquidity_mint"
	TriggerLiquidityBurn = "liquidity_burn"
	TriggerSupplyMint    = "supply_mint"
	TriggerSupplyBurn    = "supply_burn"
	TriggerDeposit       = "deposit"
	TriggerWithdraw      = "withdraw"
	TriggerPoolCreated   = "pool_created"
	TriggerAdapterAdded  = "adapter_added"
)

// Envelope is the wire framing of one chain event on the stream. Amounts
// travel as decimal strings; uint256 does not survive JSON numbers.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type wireBlock struct {
	Number    int64 `json:"number"`
	Timestamp int64 `json:"timestamp"`
}

func (b wireBlock) block() event.Block {
	return event.Block{Number: b.Number, Timestamp: b.Timestamp}
}

type wireTransfer struct {
	Contract string    `json:"contract"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Value    string    `json:"value"`
	Block    wireBlock `json:"block"`
}

type wireSync struct {
	Contract string    `json:"contract"`
	Reserve0 string    `json:"reserve0"`
	Reserve1 string    `json:"reserve1"`
	Block    wireBlock `json:"block"`
}

type wireLiquidity struct {
	Contract  string    `json:"contract"`
	Liquidity string    `json:"liquidity"`
	Block     wireBlock `json:"block"`
}

type wireSupplyMint struct {
	Contract   string    `json:"contract"`
	OnBehalfOf string    `json:"onBehalfOf"`
	Value      string    `json:"value"`
	Index      string    `json:"index"`
	Block      wireBlock `json:"block"`
}

type wireSupplyBurn struct {
	Contract string    `json:"contract"`
	From     string    `json:"from"`
	Value    string    `json:"value"`
	Index    string    `json:"index"`
	Block    wireBlock `json:"block"`
}

type wireVault struct {
	Contract string    `json:"contract"`
	Pool     string    `json:"pool"`
	User     string    `json:"user"`
	Shares   string    `json:"shares"`
	Block    wireBlock `json:"block"`
}

type wirePoolCreated struct {
	Contract string    `json:"contract"`
	Pool     string    `json:"pool"`
	Token0   string    `json:"token0"`
	Token1   string    `json:"token1"`
	Block    wireBlock `json:"block"`
}

type wireAdapterAdded struct {
	Contract string    `json:"contract"`
	Adapter  string    `json:"adapter"`
	Block    wireBlock `json:"block"`
}

func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%s: empty amount", field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%s: malformed amount %q", field, s)
	}
	return v, nil
}

func decodePayload[T any](raw json.RawMessage) (T, error) {
	var w T
	if err := json.Unmarshal(raw, &w); err != nil {
		return w, fmt.Errorf("unmarshal payload: %w", err)
	}
	return w, nil
}
