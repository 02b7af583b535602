package core

import (
	"context"
	"errors"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vaultchain/core/state"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/strategy"
	"vaultchain/native/tradefactory"
	"vaultchain/native/vault"
	"vaultchain/observability"
)

var (
	// ErrUnknownModule is returned by SetPaused for names outside the engine set.
	ErrUnknownModule = errors.New("node: unknown module")
	// ErrShareFaucet rejects minting vault shares outside a deposit.
	ErrShareFaucet = nativecommon.Revert("!shares")
	// ErrNothingToTrade is returned when the strategy holds no reward tokens.
	ErrNothingToTrade = nativecommon.Revert("nothing to trade")
)

var pausableModules = map[string]struct{}{
	"vault":        {},
	"strategy":     {},
	"farm":         {},
	"tradefactory": {},
}

// Faucet mints want to recipient. Development and simulation only.
func (n *Node) Faucet(ctx context.Context, recipient common.Address, amount *big.Int) error {
	return n.FaucetToken(ctx, n.want.Address(), recipient, amount)
}

// FaucetToken mints any registered token to recipient, for example a stray
// airdrop onto the strategy. The vault share is minted only by deposits.
// Development and simulation only.
func (n *Node) FaucetToken(ctx context.Context, tokenAddr, recipient common.Address, amount *big.Int) error {
	if tokenAddr == n.shares.Address() {
		return ErrShareFaucet
	}
	ledger, err := n.registry.Get(tokenAddr)
	if err != nil {
		return err
	}
	return n.transact(ctx, "faucet", common.Address{}, func() error {
		return ledger.Mint(recipient, amount)
	}, nil)
}

// Approve sets owner's want allowance for spender.
func (n *Node) Approve(ctx context.Context, owner, spender common.Address, amount *big.Int) error {
	return n.transact(ctx, "approve", owner, func() error {
		return n.want.Approve(owner, spender, amount)
	}, nil)
}

// Deposit moves amount of caller's want into the vault and mints shares to
// recipient.
func (n *Node) Deposit(ctx context.Context, caller common.Address, amount *big.Int, recipient common.Address) (*big.Int, error) {
	var minted *big.Int
	err := n.transact(ctx, "deposit", caller, func() error {
		shares, err := n.vault.Deposit(caller, amount, recipient)
		minted = shares
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	return minted, nil
}

// Withdraw burns shares of caller. A nil shares amount withdraws the full
// balance.
func (n *Node) Withdraw(ctx context.Context, caller common.Address, shares *big.Int, recipient common.Address, maxLossBps uint64) (*vault.WithdrawResult, error) {
	var result *vault.WithdrawResult
	err := n.transact(ctx, "withdraw", caller, func() error {
		amount := shares
		if amount == nil {
			amount = n.vault.BalanceOf(caller)
		}
		res, err := n.vault.Withdraw(caller, amount, recipient, maxLossBps)
		result = res
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Harvest runs the strategy harvest and appends the report to history.
func (n *Node) Harvest(ctx context.Context, caller common.Address) (*strategy.HarvestReceipt, error) {
	var receipt *strategy.HarvestReceipt
	err := n.transact(ctx, "harvest", caller, func() error {
		res, err := n.strategy.Harvest(caller)
		receipt = res
		return err
	}, func() {
		rec := state.ReportRecord{
			Strategy:        n.strategy.Address(),
			Height:          n.clock.Height(),
			Timestamp:       receipt.Timestamp,
			Profit:          receipt.Profit,
			Loss:            receipt.Loss,
			DebtPayment:     receipt.DebtPayment,
			DebtOutstanding: receipt.DebtOutstanding,
			Credit:          receipt.Credit,
			Fees:            receipt.Fees,
			PricePerShare:   n.vault.PricePerShare(),
		}
		if _, err := n.state.AppendReport(rec); err != nil {
			n.logger.Error("persist harvest report", slog.Any("error", err))
		}
	})
	if n.metrics {
		if err != nil {
			observability.VaultMetrics().RecordHarvest(nil, nil, nil, n.want.Decimals(), err)
		} else {
			observability.VaultMetrics().RecordHarvest(receipt.Profit, receipt.Loss, receipt.Fees, n.want.Decimals(), nil)
		}
	}
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// Tend redeploys idle want without reporting.
func (n *Node) Tend(ctx context.Context, caller common.Address) error {
	return n.transact(ctx, "tend", caller, func() error {
		return n.strategy.Tend(caller)
	}, nil)
}

// SetDebtRatio updates the strategy's share of vault assets.
func (n *Node) SetDebtRatio(ctx context.Context, caller common.Address, debtRatio uint64) error {
	return n.transact(ctx, "set_debt_ratio", caller, func() error {
		return n.vault.UpdateStrategyDebtRatio(caller, n.strategy.Address(), debtRatio)
	}, nil)
}

// SetEmergencyExit puts the strategy into emergency exit.
func (n *Node) SetEmergencyExit(ctx context.Context, caller common.Address) error {
	return n.transact(ctx, "emergency_exit", caller, func() error {
		return n.strategy.SetEmergencyExit(caller)
	}, nil)
}

// SetEmergencyShutdown toggles vault shutdown.
func (n *Node) SetEmergencyShutdown(ctx context.Context, caller common.Address, active bool) error {
	return n.transact(ctx, "emergency_shutdown", caller, func() error {
		return n.vault.SetEmergencyShutdown(caller, active)
	}, nil)
}

// RevokeStrategy sets the strategy's debt ratio to zero.
func (n *Node) RevokeStrategy(ctx context.Context, caller common.Address) error {
	return n.transact(ctx, "revoke_strategy", caller, func() error {
		return n.vault.RevokeStrategy(caller, n.strategy.Address())
	}, nil)
}

// Sweep sends a stray token held by the strategy to governance.
func (n *Node) Sweep(ctx context.Context, caller, tokenAddr common.Address) (*big.Int, error) {
	var swept *big.Int
	err := n.transact(ctx, "sweep", caller, func() error {
		amount, err := n.strategy.Sweep(caller, tokenAddr)
		swept = amount
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	return swept, nil
}

// ClaimRewards pulls farm rewards into the strategy.
func (n *Node) ClaimRewards(ctx context.Context, caller common.Address) (*big.Int, error) {
	var claimed *big.Int
	err := n.transact(ctx, "claim_rewards", caller, func() error {
		amount, err := n.strategy.ClaimRewards(caller)
		claimed = amount
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// ClaimFees collects the strategy's farm trading fees as idle want.
func (n *Node) ClaimFees(ctx context.Context, caller common.Address) (*big.Int, error) {
	var claimed *big.Int
	err := n.transact(ctx, "claim_fees", caller, func() error {
		amount, err := n.strategy.ClaimFees(caller)
		claimed = amount
		return err
	}, nil)
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// SetFees updates the vault performance and management fees. A nil value
// leaves that fee unchanged.
func (n *Node) SetFees(ctx context.Context, caller common.Address, performanceBps, managementBps *uint64) error {
	return n.transact(ctx, "set_fees", caller, func() error {
		if performanceBps != nil {
			if err := n.vault.SetPerformanceFee(caller, *performanceBps); err != nil {
				return err
			}
		}
		if managementBps != nil {
			return n.vault.SetManagementFee(caller, *managementBps)
		}
		return nil
	}, nil)
}

// SetTradeFactory attaches the trade factory to the strategy, or revokes its
// permissions when enabled is false.
func (n *Node) SetTradeFactory(ctx context.Context, caller common.Address, enabled bool) error {
	return n.transact(ctx, "set_trade_factory", caller, func() error {
		if enabled {
			return n.strategy.SetTradeFactory(caller, n.factory)
		}
		return n.strategy.RemoveTradeFactoryPermissions(caller)
	}, nil)
}

// ExecuteTrade settles the strategy's reward-to-want trade through the
// built-in swapper. A nil amountIn sells the strategy's whole reward balance.
func (n *Node) ExecuteTrade(ctx context.Context, mechanic common.Address, amountIn, minAmountOut *big.Int) (*tradefactory.Receipt, error) {
	var receipt *tradefactory.Receipt
	err := n.transact(ctx, "trade", mechanic, func() error {
		amount := amountIn
		if amount == nil {
			amount = n.reward.BalanceOf(n.strategy.Address())
		}
		if amount.Sign() == 0 {
			return ErrNothingToTrade
		}
		minOut := minAmountOut
		if minOut == nil {
			minOut = big.NewInt(0)
		}
		res, err := n.factory.Execute(mechanic, tradefactory.AsyncTradeExecutionDetails{
			Strategy:     n.strategy.Address(),
			TokenIn:      n.reward.Address(),
			TokenOut:     n.want.Address(),
			AmountIn:     amount,
			MinAmountOut: minOut,
		}, n.swapper.Address(), nil)
		receipt = res
		return err
	}, func() {
		if n.metrics {
			observability.VaultMetrics().RecordTrade(n.reward.Symbol())
		}
		if _, err := n.state.AppendTrade(state.TradeRecord{
			ID:        receipt.ID,
			Strategy:  receipt.Strategy,
			Swapper:   receipt.Swapper,
			TokenIn:   receipt.TokenIn,
			TokenOut:  receipt.TokenOut,
			AmountIn:  receipt.AmountIn,
			AmountOut: receipt.AmountOut,
			Height:    receipt.Height,
			Timestamp: receipt.Timestamp,
		}); err != nil {
			n.logger.Error("persist trade", slog.Any("error", err))
		}
	})
	if err != nil {
		return nil, err
	}
	return receipt, nil
}

// SetPaused pauses or resumes an engine. Governance only.
func (n *Node) SetPaused(ctx context.Context, caller common.Address, module string, paused bool) error {
	if _, ok := pausableModules[module]; !ok {
		return ErrUnknownModule
	}
	return n.transact(ctx, "set_paused", caller, func() error {
		if caller != n.governance {
			return nativecommon.ErrNotGovernance
		}
		n.pauses.Set(module, paused)
		return nil
	}, nil)
}

// Advance moves the simulated clock forward by seconds and mines blocks
// worth of height. It is not journaled: time never rolls back.
func (n *Node) Advance(seconds, blocks uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.clock.Sleep(seconds)
	n.clock.Mine(blocks)
	n.checkpoint()
}

// SyncClock moves the clock up to a wall clock timestamp. Earlier
// timestamps are ignored.
func (n *Node) SyncClock(timestamp uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	now := n.clock.Now()
	if timestamp <= now {
		return
	}
	n.clock.Set(timestamp, n.clock.Height()+1)
}
