package tradefactory

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "vaultchain/native/common"
)

// AsyncTradeExecutionDetails describes a trade a mechanic settles on behalf
// of a strategy.
type AsyncTradeExecutionDetails struct {
	Strategy     common.Address
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int
	MinAmountOut *big.Int
}

// Pair is an enabled tokenIn -> tokenOut route for a strategy.
type Pair struct {
	TokenIn  common.Address
	TokenOut common.Address
}

// Receipt records a settled trade.
type Receipt struct {
	ID        string
	Strategy  common.Address
	Swapper   common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
	Height    uint64
	Timestamp uint64
}

// Clone returns a deep copy of the receipt.
func (r Receipt) Clone() Receipt {
	r.AmountIn = nativecommon.Clone(r.AmountIn)
	r.AmountOut = nativecommon.Clone(r.AmountOut)
	return r
}

// Swapper converts tokens it already holds. The factory moves AmountIn of
// tokenIn to the swapper before calling Swap; the swapper must deliver the
// output to receiver and report how much it sent. Data is opaque routing
// input.
type Swapper interface {
	Address() common.Address
	Swap(receiver, tokenIn, tokenOut common.Address, amountIn *big.Int, data []byte) (*big.Int, error)
}
