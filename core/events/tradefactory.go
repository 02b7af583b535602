package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/types"
)

const (
	TypeTradeExecuted   = "tradefactory.trade_executed"
	TypeTradePairToggle = "tradefactory.pair_toggled"
)

type TradeExecuted struct {
	ID        string
	Strategy  common.Address
	Swapper   common.Address
	TokenIn   common.Address
	TokenOut  common.Address
	AmountIn  *big.Int
	AmountOut *big.Int
}

func (TradeExecuted) EventType() string { return TypeTradeExecuted }

func (e TradeExecuted) Event() *types.Event {
	return &types.Event{
		Type: TypeTradeExecuted,
		Attributes: map[string]string{
			"id":        e.ID,
			"strategy":  formatAddress(e.Strategy),
			"swapper":   formatAddress(e.Swapper),
			"tokenIn":   formatAddress(e.TokenIn),
			"tokenOut":  formatAddress(e.TokenOut),
			"amountIn":  formatAmount(e.AmountIn),
			"amountOut": formatAmount(e.AmountOut),
		},
	}
}

type TradePairToggled struct {
	Strategy common.Address
	TokenIn  common.Address
	TokenOut common.Address
	Enabled  bool
}

func (TradePairToggled) EventType() string { return TypeTradePairToggle }

func (e TradePairToggled) Event() *types.Event {
	return &types.Event{
		Type: TypeTradePairToggle,
		Attributes: map[string]string{
			"strategy": formatAddress(e.Strategy),
			"tokenIn":  formatAddress(e.TokenIn),
			"tokenOut": formatAddress(e.TokenOut),
			"enabled":  boolToString(e.Enabled),
		},
	}
}
