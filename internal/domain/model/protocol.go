package model

// Protocol identifies which accounting rule owns a pool address.
type Protocol string

const (
	ProtocolERC20      Protocol = "erc20"
	ProtocolLending    Protocol = "lending"
	ProtocolAMM        Protocol = "amm"
	ProtocolAggregator Protocol = "aggregator"
)

// Valid reports whether p is one of the known protocol families.
func (p Protocol) Valid() bool {
	switch p {
	case ProtocolERC20, ProtocolLending, ProtocolAMM, ProtocolAggregator:
		return true
	}
	return false
}
