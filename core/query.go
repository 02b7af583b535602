package core

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/state"
	"vaultchain/crypto"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/farm"
	"vaultchain/native/strategy"
	"vaultchain/native/token"
	"vaultchain/native/vault"
)

// ErrUnknownToken is returned by LookupToken for unregistered tokens.
var ErrUnknownToken = errors.New("node: unknown token")

// AccountView is the balance sheet of a single holder.
type AccountView struct {
	Address        common.Address
	Want           *big.Int
	Reward         *big.Int
	Shares         *big.Int
	ShareValue     *big.Int
	VaultAllowance *big.Int
}

// ChainInfo describes the node's tokens, contracts and clock.
type ChainInfo struct {
	Height       uint64
	Timestamp    uint64
	Want         TokenInfo
	Reward       TokenInfo
	Shares       TokenInfo
	Tokens       []TokenInfo
	Vault        common.Address
	Strategy     common.Address
	Farm         common.Address
	TradeFactory common.Address
	Swapper      common.Address
	Governance   common.Address
	Mechanics    []common.Address
}

// TokenInfo identifies a ledger.
type TokenInfo struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// Triggers reports whether a keeper should act at the given call cost.
type Triggers struct {
	Harvest        bool
	Tend           bool
	ExpectedReturn *big.Int
	Credit         *big.Int
	Debt           *big.Int
}

// Info returns static deployment data and the current clock.
func (n *Node) Info() ChainInfo {
	n.mu.Lock()
	defer n.mu.Unlock()
	mechanics := make([]common.Address, len(n.mechanics))
	copy(mechanics, n.mechanics)
	extras := make([]TokenInfo, 0, len(n.extras))
	for _, ledger := range n.extras {
		extras = append(extras, tokenInfo(ledger))
	}
	return ChainInfo{
		Height:       n.clock.Height(),
		Timestamp:    n.clock.Now(),
		Want:         tokenInfo(n.want),
		Reward:       tokenInfo(n.reward),
		Shares:       tokenInfo(n.shares),
		Tokens:       extras,
		Vault:        n.vault.Address(),
		Strategy:     n.strategy.Address(),
		Farm:         n.pool.Address(),
		TradeFactory: n.factory.Address(),
		Swapper:      n.swapper.Address(),
		Governance:   n.governance,
		Mechanics:    mechanics,
	}
}

func tokenInfo(ledger *token.Ledger) TokenInfo {
	return TokenInfo{Address: ledger.Address(), Symbol: ledger.Symbol(), Decimals: ledger.Decimals()}
}

// VaultSummary returns the vault view at the current block time.
func (n *Node) VaultSummary() vault.Summary {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.vault.Summary()
}

// StrategyStatus returns the strategy view at the current block time.
func (n *Node) StrategyStatus() strategy.Status {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.strategy.Status()
}

// StrategyParams returns the vault's ledger entry for the strategy.
func (n *Node) StrategyParams() *vault.StrategyParams {
	n.mu.Lock()
	defer n.mu.Unlock()
	params, _ := n.vault.StrategyParams(n.strategy.Address())
	return params
}

// FarmTotals returns the pool accounting totals.
func (n *Node) FarmTotals() farm.Totals {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pool.Totals()
}

// Account returns the balances of addr.
func (n *Node) Account(addr common.Address) AccountView {
	n.mu.Lock()
	defer n.mu.Unlock()
	shares := n.vault.BalanceOf(addr)
	return AccountView{
		Address:        addr,
		Want:           n.want.BalanceOf(addr),
		Reward:         n.reward.BalanceOf(addr),
		Shares:         shares,
		ShareValue:     n.vault.ShareValue(shares),
		VaultAllowance: n.want.Allowance(addr, n.vault.Address()),
	}
}

// Triggers evaluates the keeper triggers at callCost want.
func (n *Node) Triggers(callCost *big.Int) Triggers {
	n.mu.Lock()
	defer n.mu.Unlock()
	cost := nativecommon.Clone(callCost)
	addr := n.strategy.Address()
	return Triggers{
		Harvest:        n.strategy.HarvestTrigger(cost),
		Tend:           n.strategy.TendTrigger(cost),
		ExpectedReturn: n.vault.ExpectedReturn(addr),
		Credit:         n.vault.CreditAvailable(addr),
		Debt:           n.vault.DebtOutstanding(addr),
	}
}

// Reports returns the most recent limit harvest reports.
func (n *Node) Reports(limit int) ([]state.ReportRecord, error) {
	return n.state.Reports(limit)
}

// Trades returns the most recent limit settled trades.
func (n *Node) Trades(limit int) ([]state.TradeRecord, error) {
	return n.state.Trades(limit)
}

// Governance returns the vault governance address.
func (n *Node) Governance() common.Address { return n.governance }

// Mechanic returns the first configured trade factory mechanic.
func (n *Node) Mechanic() (common.Address, bool) {
	if len(n.mechanics) == 0 {
		return common.Address{}, false
	}
	return n.mechanics[0], true
}

// LookupToken resolves a registered token by symbol or by address.
func (n *Node) LookupToken(ref string) (TokenInfo, error) {
	ledger, err := n.registry.BySymbol(ref)
	if err != nil {
		addr, perr := crypto.ParseAddress(ref)
		if perr != nil {
			return TokenInfo{}, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
		}
		if ledger, err = n.registry.Get(addr); err != nil {
			return TokenInfo{}, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
		}
	}
	return tokenInfo(ledger), nil
}

// TokenBalance returns holder's balance of any registered token.
func (n *Node) TokenBalance(tokenAddr, holder common.Address) (*big.Int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ledger, err := n.registry.Get(tokenAddr)
	if err != nil {
		return nil, err
	}
	return ledger.BalanceOf(holder), nil
}
