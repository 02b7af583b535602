package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/types"
)

const (
	TypeStrategyHarvested           = "strategy.harvested"
	TypeStrategyEmergencyExit       = "strategy.emergency_exit"
	TypeStrategySwept               = "strategy.swept"
	TypeStrategyTradeFactoryUpdated = "strategy.trade_factory_updated"
	TypeStrategyRewardsClaimed      = "strategy.rewards_claimed"
	TypeStrategyFeesClaimed         = "strategy.fees_claimed"
	TypeStrategyParamUpdated        = "strategy.param_updated"
)

type StrategyHarvested struct {
	Strategy        common.Address
	Profit          *big.Int
	Loss            *big.Int
	DebtPayment     *big.Int
	DebtOutstanding *big.Int
}

func (StrategyHarvested) EventType() string { return TypeStrategyHarvested }

func (e StrategyHarvested) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyHarvested,
		Attributes: map[string]string{
			"strategy":        formatAddress(e.Strategy),
			"profit":          formatAmount(e.Profit),
			"loss":            formatAmount(e.Loss),
			"debtPayment":     formatAmount(e.DebtPayment),
			"debtOutstanding": formatAmount(e.DebtOutstanding),
		},
	}
}

type StrategyEmergencyExit struct {
	Strategy common.Address
}

func (StrategyEmergencyExit) EventType() string { return TypeStrategyEmergencyExit }

func (e StrategyEmergencyExit) Event() *types.Event {
	return &types.Event{
		Type:       TypeStrategyEmergencyExit,
		Attributes: map[string]string{"strategy": formatAddress(e.Strategy)},
	}
}

type StrategySwept struct {
	Strategy  common.Address
	Token     common.Address
	Recipient common.Address
	Amount    *big.Int
}

func (StrategySwept) EventType() string { return TypeStrategySwept }

func (e StrategySwept) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategySwept,
		Attributes: map[string]string{
			"strategy":  formatAddress(e.Strategy),
			"token":     formatAddress(e.Token),
			"recipient": formatAddress(e.Recipient),
			"amount":    formatAmount(e.Amount),
		},
	}
}

type StrategyTradeFactoryUpdated struct {
	Strategy     common.Address
	TradeFactory common.Address
}

func (StrategyTradeFactoryUpdated) EventType() string { return TypeStrategyTradeFactoryUpdated }

func (e StrategyTradeFactoryUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyTradeFactoryUpdated,
		Attributes: map[string]string{
			"strategy":     formatAddress(e.Strategy),
			"tradeFactory": formatAddress(e.TradeFactory),
		},
	}
}

type StrategyRewardsClaimed struct {
	Strategy common.Address
	Token    common.Address
	Amount   *big.Int
}

func (StrategyRewardsClaimed) EventType() string { return TypeStrategyRewardsClaimed }

func (e StrategyRewardsClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyRewardsClaimed,
		Attributes: map[string]string{
			"strategy": formatAddress(e.Strategy),
			"token":    formatAddress(e.Token),
			"amount":   formatAmount(e.Amount),
		},
	}
}

type StrategyFeesClaimed struct {
	Strategy common.Address
	Amount   *big.Int
}

func (StrategyFeesClaimed) EventType() string { return TypeStrategyFeesClaimed }

func (e StrategyFeesClaimed) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyFeesClaimed,
		Attributes: map[string]string{
			"strategy": formatAddress(e.Strategy),
			"amount":   formatAmount(e.Amount),
		},
	}
}

type StrategyParamUpdated struct {
	Strategy common.Address
	Name     string
	Value    string
}

func (StrategyParamUpdated) EventType() string { return TypeStrategyParamUpdated }

func (e StrategyParamUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeStrategyParamUpdated,
		Attributes: map[string]string{
			"strategy": formatAddress(e.Strategy),
			"name":     e.Name,
			"value":    e.Value,
		},
	}
}
