package main

import (
	"bytes"
	"context"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"vaultchain/config"
	"vaultchain/core"
	"vaultchain/core/chain"
	"vaultchain/crypto"
	nativecommon "vaultchain/native/common"
)

// Scenario is a scripted sequence of node operations.
type Scenario struct {
	Name        string `yaml:"name"`
	GenesisTime uint64 `yaml:"genesisTime"`
	// Accounts listed here are included in the final report.
	Accounts []string `yaml:"accounts"`
	Steps    []Step   `yaml:"steps"`
}

// Step is one operation. Amounts are decimal token units.
type Step struct {
	Action     string  `yaml:"action"`
	Caller     string  `yaml:"caller"`
	Recipient  string  `yaml:"recipient"`
	Amount     string  `yaml:"amount"`
	Shares     string  `yaml:"shares"`
	MaxLossBps *uint64 `yaml:"maxLossBps"`
	DebtRatio  uint64  `yaml:"debtRatio"`
	Active     *bool   `yaml:"active"`
	Seconds    uint64  `yaml:"seconds"`
	Blocks     uint64  `yaml:"blocks"`
	MinOut     string  `yaml:"minOut"`
	Token      string  `yaml:"token"`

	// PerformanceBps and ManagementBps are vault fee updates.
	PerformanceBps *uint64 `yaml:"performanceBps"`
	ManagementBps  *uint64 `yaml:"managementBps"`

	// ExpectRevert makes the step pass only when it reverts with this reason.
	ExpectRevert string `yaml:"expectRevert"`
}

// StepResult records the outcome of a step.
type StepResult struct {
	Index     int               `json:"index"`
	Action    string            `json:"action"`
	Height    uint64            `json:"height"`
	Timestamp uint64            `json:"timestamp"`
	Reverted  string            `json:"reverted,omitempty"`
	Output    map[string]string `json:"output,omitempty"`
}

// VaultReport is the final vault state.
type VaultReport struct {
	TotalAssets   string `json:"totalAssets"`
	TotalIdle     string `json:"totalIdle"`
	TotalDebt     string `json:"totalDebt"`
	TotalSupply   string `json:"totalSupply"`
	PricePerShare string `json:"pricePerShare"`
	LockedProfit  string `json:"lockedProfit"`
	Shutdown      bool   `json:"emergencyShutdown"`
}

// AccountReport is the final balance sheet of a listed account.
type AccountReport struct {
	Label      string `json:"label"`
	Address    string `json:"address"`
	Want       string `json:"want"`
	Shares     string `json:"shares"`
	ShareValue string `json:"shareValue"`
}

// Report is printed as JSON after a run.
type Report struct {
	Scenario string          `json:"scenario"`
	Steps    []StepResult    `json:"steps"`
	Vault    VaultReport     `json:"vault"`
	Accounts []AccountReport `json:"accounts"`
	Harvests int             `json:"harvests"`
	Trades   int             `json:"trades"`
}

// LoadScenario reads a YAML scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario, rejecting unknown fields.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("scenario %q has no steps", sc.Name)
	}
	for i, step := range sc.Steps {
		if _, ok := actions[strings.ToLower(step.Action)]; !ok {
			return nil, fmt.Errorf("step %d: unknown action %q", i, step.Action)
		}
	}
	return &sc, nil
}

type runner struct {
	node           *core.Node
	wantDecimals   uint8
	rewardDecimals uint8
}

type action func(r *runner, ctx context.Context, step Step) (map[string]string, error)

var actions = map[string]action{
	"faucet":         (*runner).faucet,
	"approve":        (*runner).approve,
	"deposit":        (*runner).deposit,
	"withdraw":       (*runner).withdraw,
	"harvest":        (*runner).harvest,
	"tend":           (*runner).tend,
	"claim":          (*runner).claim,
	"claim-fees":     (*runner).claimFees,
	"fees":           (*runner).fees,
	"trade":          (*runner).trade,
	"sleep":          (*runner).sleep,
	"debt-ratio":     (*runner).debtRatio,
	"emergency-exit": (*runner).emergencyExit,
	"shutdown":       (*runner).shutdown,
	"revoke":         (*runner).revoke,
	"sweep":          (*runner).sweep,
}

// Run executes sc against a fresh in-memory node built from cfg.
func Run(ctx context.Context, cfg *config.Config, sc *Scenario, opts ...core.Option) (*Report, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	start := sc.GenesisTime
	if start == 0 {
		start = cfg.GenesisTime
	}
	opts = append([]core.Option{core.WithClock(chain.NewSimClock(start))}, opts...)
	node, err := core.NewNode(cfg, nil, opts...)
	if err != nil {
		return nil, err
	}
	info := node.Info()
	r := &runner{node: node, wantDecimals: info.Want.Decimals, rewardDecimals: info.Reward.Decimals}

	report := &Report{Scenario: sc.Name}
	for i, step := range sc.Steps {
		name := strings.ToLower(step.Action)
		out, err := actions[name](r, ctx, step)
		reason, reverted := nativecommon.ReasonOf(err)
		switch {
		case err != nil && !reverted:
			return nil, fmt.Errorf("step %d (%s): %w", i, name, err)
		case step.ExpectRevert != "" && reason != step.ExpectRevert:
			return nil, fmt.Errorf("step %d (%s): expected revert %q, got %q", i, name, step.ExpectRevert, reason)
		case reverted && step.ExpectRevert == "":
			return nil, fmt.Errorf("step %d (%s): unexpected revert: %s", i, name, reason)
		}
		now := node.Info()
		report.Steps = append(report.Steps, StepResult{
			Index:     i,
			Action:    name,
			Height:    now.Height,
			Timestamp: now.Timestamp,
			Reverted:  reason,
			Output:    out,
		})
	}

	summary := node.VaultSummary()
	report.Vault = VaultReport{
		TotalAssets:   r.want(summary.TotalAssets),
		TotalIdle:     r.want(summary.TotalIdle),
		TotalDebt:     r.want(summary.TotalDebt),
		TotalSupply:   r.want(summary.TotalSupply),
		PricePerShare: r.want(summary.PricePerShare),
		LockedProfit:  r.want(summary.LockedProfit),
		Shutdown:      summary.EmergencyShutdown,
	}
	for _, label := range sc.Accounts {
		addr, err := crypto.ParseAddress(label)
		if err != nil {
			return nil, fmt.Errorf("account %q: %w", label, err)
		}
		acct := node.Account(addr)
		report.Accounts = append(report.Accounts, AccountReport{
			Label:      label,
			Address:    addr.Hex(),
			Want:       r.want(acct.Want),
			Shares:     r.want(acct.Shares),
			ShareValue: r.want(acct.ShareValue),
		})
	}
	reports, err := node.Reports(0)
	if err != nil {
		return nil, err
	}
	trades, err := node.Trades(0)
	if err != nil {
		return nil, err
	}
	report.Harvests, report.Trades = len(reports), len(trades)
	return report, nil
}

func (r *runner) want(v *big.Int) string { return formatUnits(v, r.wantDecimals) }

func formatUnits(v *big.Int, decimals uint8) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -int32(decimals)).String()
}

func parseUnits(raw string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(raw), "_", ""))
	if err != nil {
		return nil, fmt.Errorf("amount %q: %w", raw, err)
	}
	scaled := d.Shift(int32(decimals))
	if d.IsNegative() || !scaled.IsInteger() {
		return nil, fmt.Errorf("amount %q is not a valid token quantity", raw)
	}
	return scaled.BigInt(), nil
}

func parseOptionalUnits(raw string, decimals uint8) (*big.Int, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	return parseUnits(raw, decimals)
}

func address(raw, fallback string) (common.Address, error) {
	if strings.TrimSpace(raw) == "" {
		raw = fallback
	}
	return crypto.ParseAddress(raw)
}

func (r *runner) faucet(ctx context.Context, step Step) (map[string]string, error) {
	to, err := address(step.Recipient, step.Caller)
	if err != nil {
		return nil, err
	}
	tok := r.node.Info().Want
	if strings.TrimSpace(step.Token) != "" {
		if tok, err = r.node.LookupToken(step.Token); err != nil {
			return nil, err
		}
	}
	amount, err := parseUnits(step.Amount, tok.Decimals)
	if err != nil {
		return nil, err
	}
	return nil, r.node.FaucetToken(ctx, tok.Address, to, amount)
}

func (r *runner) sweep(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@governance")
	if err != nil {
		return nil, err
	}
	tok, err := r.node.LookupToken(step.Token)
	if err != nil {
		return nil, err
	}
	swept, err := r.node.Sweep(ctx, caller, tok.Address)
	if err != nil {
		return nil, err
	}
	return map[string]string{"token": tok.Symbol, "amount": formatUnits(swept, tok.Decimals)}, nil
}

func (r *runner) approve(ctx context.Context, step Step) (map[string]string, error) {
	owner, err := address(step.Caller, "")
	if err != nil {
		return nil, err
	}
	amount, err := parseUnits(step.Amount, r.wantDecimals)
	if err != nil {
		return nil, err
	}
	return nil, r.node.Approve(ctx, owner, core.VaultAddress, amount)
}

func (r *runner) deposit(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "")
	if err != nil {
		return nil, err
	}
	recipient, err := address(step.Recipient, step.Caller)
	if err != nil {
		return nil, err
	}
	amount, err := parseUnits(step.Amount, r.wantDecimals)
	if err != nil {
		return nil, err
	}
	shares, err := r.node.Deposit(ctx, caller, amount, recipient)
	if err != nil {
		return nil, err
	}
	return map[string]string{"shares": r.want(shares)}, nil
}

func (r *runner) withdraw(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "")
	if err != nil {
		return nil, err
	}
	recipient, err := address(step.Recipient, step.Caller)
	if err != nil {
		return nil, err
	}
	shares, err := parseOptionalUnits(step.Shares, r.wantDecimals)
	if err != nil {
		return nil, err
	}
	maxLoss := uint64(1)
	if step.MaxLossBps != nil {
		maxLoss = *step.MaxLossBps
	}
	res, err := r.node.Withdraw(ctx, caller, shares, recipient, maxLoss)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"shares": r.want(res.Shares),
		"value":  r.want(res.Value),
		"loss":   r.want(res.Loss),
	}, nil
}

func (r *runner) harvest(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@strategist")
	if err != nil {
		return nil, err
	}
	receipt, err := r.node.Harvest(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"profit":          r.want(receipt.Profit),
		"loss":            r.want(receipt.Loss),
		"debtPayment":     r.want(receipt.DebtPayment),
		"debtOutstanding": r.want(receipt.DebtOutstanding),
		"fees":            r.want(receipt.Fees),
		"pricePerShare":   r.want(r.node.VaultSummary().PricePerShare),
	}, nil
}

func (r *runner) tend(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@strategist")
	if err != nil {
		return nil, err
	}
	return nil, r.node.Tend(ctx, caller)
}

func (r *runner) claim(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@strategist")
	if err != nil {
		return nil, err
	}
	claimed, err := r.node.ClaimRewards(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{"claimed": formatUnits(claimed, r.rewardDecimals)}, nil
}

func (r *runner) claimFees(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@strategist")
	if err != nil {
		return nil, err
	}
	claimed, err := r.node.ClaimFees(ctx, caller)
	if err != nil {
		return nil, err
	}
	return map[string]string{"claimed": formatUnits(claimed, r.wantDecimals)}, nil
}

func (r *runner) fees(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@governance")
	if err != nil {
		return nil, err
	}
	return nil, r.node.SetFees(ctx, caller, step.PerformanceBps, step.ManagementBps)
}

func (r *runner) trade(ctx context.Context, step Step) (map[string]string, error) {
	caller, ok := r.node.Mechanic()
	if strings.TrimSpace(step.Caller) != "" {
		addr, err := crypto.ParseAddress(step.Caller)
		if err != nil {
			return nil, err
		}
		caller, ok = addr, true
	}
	if !ok {
		return nil, fmt.Errorf("no mechanic configured")
	}
	amountIn, err := parseOptionalUnits(step.Amount, r.rewardDecimals)
	if err != nil {
		return nil, err
	}
	minOut, err := parseOptionalUnits(step.MinOut, r.wantDecimals)
	if err != nil {
		return nil, err
	}
	receipt, err := r.node.ExecuteTrade(ctx, caller, amountIn, minOut)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"id":        receipt.ID,
		"amountIn":  formatUnits(receipt.AmountIn, r.rewardDecimals),
		"amountOut": r.want(receipt.AmountOut),
	}, nil
}

func (r *runner) sleep(_ context.Context, step Step) (map[string]string, error) {
	blocks := step.Blocks
	if blocks == 0 {
		blocks = 1
	}
	r.node.Advance(step.Seconds, blocks)
	return nil, nil
}

func (r *runner) debtRatio(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@governance")
	if err != nil {
		return nil, err
	}
	return nil, r.node.SetDebtRatio(ctx, caller, step.DebtRatio)
}

func (r *runner) emergencyExit(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@strategist")
	if err != nil {
		return nil, err
	}
	return nil, r.node.SetEmergencyExit(ctx, caller)
}

func (r *runner) shutdown(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@governance")
	if err != nil {
		return nil, err
	}
	active := true
	if step.Active != nil {
		active = *step.Active
	}
	return nil, r.node.SetEmergencyShutdown(ctx, caller, active)
}

func (r *runner) revoke(ctx context.Context, step Step) (map[string]string, error) {
	caller, err := address(step.Caller, "@governance")
	if err != nil {
		return nil, err
	}
	return nil, r.node.RevokeStrategy(ctx, caller)
}
