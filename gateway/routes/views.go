package routes

import (
	"vaultchain/core"
	"vaultchain/core/state"
	"vaultchain/native/farm"
	"vaultchain/native/strategy"
	"vaultchain/native/tradefactory"
	"vaultchain/native/vault"
)

type tokenView struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type infoView struct {
	Height       uint64      `json:"height"`
	Timestamp    uint64      `json:"timestamp"`
	Want         tokenView   `json:"want"`
	Reward       tokenView   `json:"reward"`
	Shares       tokenView   `json:"shares"`
	Tokens       []tokenView `json:"tokens"`
	Vault        string      `json:"vault"`
	Strategy     string      `json:"strategy"`
	Farm         string      `json:"farm"`
	TradeFactory string      `json:"tradeFactory"`
	Swapper      string      `json:"swapper"`
	Governance   string      `json:"governance"`
	Mechanics    []string    `json:"mechanics"`
}

func newTokenView(t core.TokenInfo) tokenView {
	return tokenView{Address: t.Address.Hex(), Symbol: t.Symbol, Decimals: t.Decimals}
}

func newInfoView(info core.ChainInfo) infoView {
	mechanics := make([]string, len(info.Mechanics))
	for i, m := range info.Mechanics {
		mechanics[i] = m.Hex()
	}
	tokens := make([]tokenView, len(info.Tokens))
	for i, t := range info.Tokens {
		tokens[i] = newTokenView(t)
	}
	return infoView{
		Height:       info.Height,
		Timestamp:    info.Timestamp,
		Want:         newTokenView(info.Want),
		Reward:       newTokenView(info.Reward),
		Shares:       newTokenView(info.Shares),
		Tokens:       tokens,
		Vault:        info.Vault.Hex(),
		Strategy:     info.Strategy.Hex(),
		Farm:         info.Farm.Hex(),
		TradeFactory: info.TradeFactory.Hex(),
		Swapper:      info.Swapper.Hex(),
		Governance:   info.Governance.Hex(),
		Mechanics:    mechanics,
	}
}

type vaultView struct {
	Address           string   `json:"address"`
	Token             string   `json:"token"`
	TotalAssets       Amount   `json:"totalAssets"`
	TotalIdle         Amount   `json:"totalIdle"`
	TotalDebt         Amount   `json:"totalDebt"`
	TotalSupply       Amount   `json:"totalSupply"`
	PricePerShare     Amount   `json:"pricePerShare"`
	LockedProfit      Amount   `json:"lockedProfit"`
	DepositLimit      Amount   `json:"depositLimit"`
	DebtRatio         uint64   `json:"debtRatio"`
	PerformanceFee    uint64   `json:"performanceFee"`
	ManagementFee     uint64   `json:"managementFee"`
	LastReport        uint64   `json:"lastReport"`
	EmergencyShutdown bool     `json:"emergencyShutdown"`
	WithdrawalQueue   []string `json:"withdrawalQueue"`
}

func newVaultView(s vault.Summary, decimals uint8) vaultView {
	queue := make([]string, len(s.WithdrawalQueue))
	for i, addr := range s.WithdrawalQueue {
		queue[i] = addr.Hex()
	}
	return vaultView{
		Address:           s.Address.Hex(),
		Token:             s.Token.Hex(),
		TotalAssets:       newAmount(s.TotalAssets, decimals),
		TotalIdle:         newAmount(s.TotalIdle, decimals),
		TotalDebt:         newAmount(s.TotalDebt, decimals),
		TotalSupply:       newAmount(s.TotalSupply, decimals),
		PricePerShare:     newAmount(s.PricePerShare, decimals),
		LockedProfit:      newAmount(s.LockedProfit, decimals),
		DepositLimit:      newAmount(s.DepositLimit, decimals),
		DebtRatio:         s.DebtRatio,
		PerformanceFee:    s.PerformanceFee,
		ManagementFee:     s.ManagementFee,
		LastReport:        s.LastReport,
		EmergencyShutdown: s.EmergencyShutdown,
		WithdrawalQueue:   queue,
	}
}

type strategyView struct {
	Address              string       `json:"address"`
	TradeFactory         string       `json:"tradeFactory"`
	Strategist           string       `json:"strategist"`
	Keeper               string       `json:"keeper"`
	EmergencyExit        bool         `json:"emergencyExit"`
	EstimatedTotalAssets Amount       `json:"estimatedTotalAssets"`
	IdleWant             Amount       `json:"idleWant"`
	TotalLP              Amount       `json:"totalLP"`
	ExitPenaltyWant      Amount       `json:"exitPenaltyWant"`
	PendingRewards       Amount       `json:"pendingRewards"`
	PendingFees          Amount       `json:"pendingFees"`
	TotalDebt            Amount       `json:"totalDebt"`
	DebtRatio            uint64       `json:"debtRatio"`
	LastReport           uint64       `json:"lastReport"`
	MinReportDelay       uint64       `json:"minReportDelay"`
	MaxReportDelay       uint64       `json:"maxReportDelay"`
	Params               *paramsView  `json:"params,omitempty"`
	Triggers             triggersView `json:"triggers"`
}

type paramsView struct {
	PerformanceFee    uint64 `json:"performanceFee"`
	Activation        uint64 `json:"activation"`
	DebtRatio         uint64 `json:"debtRatio"`
	MinDebtPerHarvest Amount `json:"minDebtPerHarvest"`
	MaxDebtPerHarvest Amount `json:"maxDebtPerHarvest"`
	TotalDebt         Amount `json:"totalDebt"`
	TotalGain         Amount `json:"totalGain"`
	TotalLoss         Amount `json:"totalLoss"`
}

type triggersView struct {
	Harvest        bool   `json:"harvest"`
	Tend           bool   `json:"tend"`
	ExpectedReturn Amount `json:"expectedReturn"`
	Credit         Amount `json:"credit"`
	Debt           Amount `json:"debtOutstanding"`
}

func newStrategyView(s strategy.Status, params *vault.StrategyParams, triggers core.Triggers, wantDecimals, rewardDecimals uint8) strategyView {
	view := strategyView{
		Address:              s.Address.Hex(),
		TradeFactory:         s.TradeFactory.Hex(),
		Strategist:           s.Strategist.Hex(),
		Keeper:               s.Keeper.Hex(),
		EmergencyExit:        s.EmergencyExit,
		EstimatedTotalAssets: newAmount(s.EstimatedTotalAssets, wantDecimals),
		IdleWant:             newAmount(s.IdleWant, wantDecimals),
		TotalLP:              newAmount(s.TotalLP, wantDecimals),
		ExitPenaltyWant:      newAmount(s.ExitPenaltyWant, wantDecimals),
		PendingRewards:       newAmount(s.PendingRewards, rewardDecimals),
		PendingFees:          newAmount(s.PendingFees, wantDecimals),
		TotalDebt:            newAmount(s.TotalDebt, wantDecimals),
		DebtRatio:            s.DebtRatio,
		LastReport:           s.LastReport,
		MinReportDelay:       s.MinReportDelay,
		MaxReportDelay:       s.MaxReportDelay,
		Triggers: triggersView{
			Harvest:        triggers.Harvest,
			Tend:           triggers.Tend,
			ExpectedReturn: newAmount(triggers.ExpectedReturn, wantDecimals),
			Credit:         newAmount(triggers.Credit, wantDecimals),
			Debt:           newAmount(triggers.Debt, wantDecimals),
		},
	}
	if params != nil {
		view.Params = &paramsView{
			PerformanceFee:    params.PerformanceFee,
			Activation:        params.Activation,
			DebtRatio:         params.DebtRatio,
			MinDebtPerHarvest: newAmount(params.MinDebtPerHarvest, wantDecimals),
			MaxDebtPerHarvest: newAmount(params.MaxDebtPerHarvest, wantDecimals),
			TotalDebt:         newAmount(params.TotalDebt, wantDecimals),
			TotalGain:         newAmount(params.TotalGain, wantDecimals),
			TotalLoss:         newAmount(params.TotalLoss, wantDecimals),
		}
	}
	return view
}

type farmView struct {
	TotalLP      Amount `json:"totalLP"`
	Underlying   Amount `json:"underlying"`
	FeeReserve   Amount `json:"feeReserve"`
	Retained     Amount `json:"retained"`
	VirtualPrice Amount `json:"virtualPrice"`
	LastAccrual  uint64 `json:"lastAccrual"`
}

func newFarmView(t farm.Totals, decimals uint8) farmView {
	return farmView{
		TotalLP:      newAmount(t.TotalLP, decimals),
		Underlying:   newAmount(t.Underlying, decimals),
		FeeReserve:   newAmount(t.FeeReserve, decimals),
		Retained:     newAmount(t.Retained, decimals),
		VirtualPrice: newAmount(t.VirtualPrice, 18),
		LastAccrual:  t.LastAccrual,
	}
}

type accountView struct {
	Address        string `json:"address"`
	Want           Amount `json:"want"`
	Reward         Amount `json:"reward"`
	Shares         Amount `json:"shares"`
	ShareValue     Amount `json:"shareValue"`
	VaultAllowance Amount `json:"vaultAllowance"`
}

func newAccountView(a core.AccountView, wantDecimals, rewardDecimals uint8) accountView {
	return accountView{
		Address:        a.Address.Hex(),
		Want:           newAmount(a.Want, wantDecimals),
		Reward:         newAmount(a.Reward, rewardDecimals),
		Shares:         newAmount(a.Shares, wantDecimals),
		ShareValue:     newAmount(a.ShareValue, wantDecimals),
		VaultAllowance: newAmount(a.VaultAllowance, wantDecimals),
	}
}

type reportView struct {
	Seq             uint64 `json:"seq"`
	Strategy        string `json:"strategy"`
	Height          uint64 `json:"height"`
	Timestamp       uint64 `json:"timestamp"`
	Profit          Amount `json:"profit"`
	Loss            Amount `json:"loss"`
	DebtPayment     Amount `json:"debtPayment"`
	DebtOutstanding Amount `json:"debtOutstanding"`
	Credit          Amount `json:"credit"`
	Fees            Amount `json:"fees"`
	PricePerShare   Amount `json:"pricePerShare"`
}

func newReportView(r state.ReportRecord, decimals uint8) reportView {
	return reportView{
		Seq:             r.Seq,
		Strategy:        r.Strategy.Hex(),
		Height:          r.Height,
		Timestamp:       r.Timestamp,
		Profit:          newAmount(r.Profit, decimals),
		Loss:            newAmount(r.Loss, decimals),
		DebtPayment:     newAmount(r.DebtPayment, decimals),
		DebtOutstanding: newAmount(r.DebtOutstanding, decimals),
		Credit:          newAmount(r.Credit, decimals),
		Fees:            newAmount(r.Fees, decimals),
		PricePerShare:   newAmount(r.PricePerShare, decimals),
	}
}

type tradeView struct {
	Seq       uint64 `json:"seq"`
	ID        string `json:"id"`
	Strategy  string `json:"strategy"`
	Swapper   string `json:"swapper"`
	TokenIn   string `json:"tokenIn"`
	TokenOut  string `json:"tokenOut"`
	AmountIn  Amount `json:"amountIn"`
	AmountOut Amount `json:"amountOut"`
	Height    uint64 `json:"height"`
	Timestamp uint64 `json:"timestamp"`
}

func newTradeRecordView(r state.TradeRecord, inDecimals, outDecimals uint8) tradeView {
	return tradeView{
		Seq:       r.Seq,
		ID:        r.ID,
		Strategy:  r.Strategy.Hex(),
		Swapper:   r.Swapper.Hex(),
		TokenIn:   r.TokenIn.Hex(),
		TokenOut:  r.TokenOut.Hex(),
		AmountIn:  newAmount(r.AmountIn, inDecimals),
		AmountOut: newAmount(r.AmountOut, outDecimals),
		Height:    r.Height,
		Timestamp: r.Timestamp,
	}
}

func newTradeReceiptView(r *tradefactory.Receipt, inDecimals, outDecimals uint8) tradeView {
	return tradeView{
		ID:        r.ID,
		Strategy:  r.Strategy.Hex(),
		Swapper:   r.Swapper.Hex(),
		TokenIn:   r.TokenIn.Hex(),
		TokenOut:  r.TokenOut.Hex(),
		AmountIn:  newAmount(r.AmountIn, inDecimals),
		AmountOut: newAmount(r.AmountOut, outDecimals),
		Height:    r.Height,
		Timestamp: r.Timestamp,
	}
}

type harvestView struct {
	Profit          Amount `json:"profit"`
	Loss            Amount `json:"loss"`
	DebtPayment     Amount `json:"debtPayment"`
	DebtOutstanding Amount `json:"debtOutstanding"`
	Credit          Amount `json:"credit"`
	Fees            Amount `json:"fees"`
	Timestamp       uint64 `json:"timestamp"`
}

func newHarvestView(r *strategy.HarvestReceipt, decimals uint8) harvestView {
	return harvestView{
		Profit:          newAmount(r.Profit, decimals),
		Loss:            newAmount(r.Loss, decimals),
		DebtPayment:     newAmount(r.DebtPayment, decimals),
		DebtOutstanding: newAmount(r.DebtOutstanding, decimals),
		Credit:          newAmount(r.Credit, decimals),
		Fees:            newAmount(r.Fees, decimals),
		Timestamp:       r.Timestamp,
	}
}
