package token

import (
	"errors"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "vaultchain/native/common"
)

var (
	ErrInsufficientBalance   = nativecommon.Revert("insufficient balance")
	ErrInsufficientAllowance = nativecommon.Revert("insufficient allowance")
	ErrZeroAddress           = nativecommon.Revert("zero address")

	errUnknownToken = errors.New("token registry: unknown token")
)

type allowanceKey struct {
	owner   common.Address
	spender common.Address
}

// Ledger is a fungible token balance sheet with ERC-20 semantics. It is not
// safe for concurrent mutation; callers serialise access through the chain
// journal.
type Ledger struct {
	address     common.Address
	symbol      string
	decimals    uint8
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[allowanceKey]*big.Int
}

// NewLedger creates an empty token ledger.
func NewLedger(address common.Address, symbol string, decimals uint8) *Ledger {
	return &Ledger{
		address:     address,
		symbol:      strings.TrimSpace(symbol),
		decimals:    decimals,
		totalSupply: big.NewInt(0),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[allowanceKey]*big.Int),
	}
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Symbol() string          { return l.symbol }
func (l *Ledger) Decimals() uint8         { return l.decimals }

// Unit returns 10^decimals.
func (l *Ledger) Unit() *big.Int { return nativecommon.Pow10(l.decimals) }

// TotalSupply returns a copy of the circulating supply.
func (l *Ledger) TotalSupply() *big.Int { return nativecommon.Clone(l.totalSupply) }

// BalanceOf returns a copy of the holder's balance.
func (l *Ledger) BalanceOf(holder common.Address) *big.Int {
	return nativecommon.Clone(l.balances[holder])
}

// Allowance returns the amount spender may move on behalf of owner.
func (l *Ledger) Allowance(owner, spender common.Address) *big.Int {
	return nativecommon.Clone(l.allowances[allowanceKey{owner: owner, spender: spender}])
}

// Approve sets the allowance of spender over owner's balance. A zero amount
// clears the allowance.
func (l *Ledger) Approve(owner, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount == nil || amount.Sign() < 0 {
		return nativecommon.ErrInvalidAmount
	}
	if err := nativecommon.CheckWord(amount); err != nil {
		return err
	}
	key := allowanceKey{owner: owner, spender: spender}
	if amount.Sign() == 0 {
		delete(l.allowances, key)
		return nil
	}
	l.allowances[key] = new(big.Int).Set(amount)
	return nil
}

// Transfer moves amount from one holder to another.
func (l *Ledger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return nativecommon.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() == 0 {
		return nil
	}
	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	credited, err := nativecommon.Add(l.balances[to], amount)
	if err != nil {
		return err
	}
	l.setBalance(from, new(big.Int).Sub(balance, amount))
	if from == to {
		credited = new(big.Int).Set(balance)
	}
	l.setBalance(to, credited)
	return nil
}

// TransferFrom moves amount from owner to recipient using spender's
// allowance. An infinite allowance is not decremented.
func (l *Ledger) TransferFrom(spender, owner, recipient common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return nativecommon.ErrInvalidAmount
	}
	key := allowanceKey{owner: owner, spender: spender}
	allowance := l.allowances[key]
	if spender != owner {
		if allowance == nil || allowance.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
	}
	if err := l.Transfer(owner, recipient, amount); err != nil {
		return err
	}
	if spender != owner && allowance.Cmp(nativecommon.MaxUint256) != 0 {
		remaining := new(big.Int).Sub(allowance, amount)
		if remaining.Sign() == 0 {
			delete(l.allowances, key)
		} else {
			l.allowances[key] = remaining
		}
	}
	return nil
}

// Mint credits new tokens to holder.
func (l *Ledger) Mint(to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return nativecommon.ErrInvalidAmount
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	supply, err := nativecommon.Add(l.totalSupply, amount)
	if err != nil {
		return err
	}
	balance, err := nativecommon.Add(l.balances[to], amount)
	if err != nil {
		return err
	}
	l.totalSupply = supply
	l.setBalance(to, balance)
	return nil
}

// Burn destroys amount from holder.
func (l *Ledger) Burn(from common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return nativecommon.ErrInvalidAmount
	}
	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}
	l.setBalance(from, new(big.Int).Sub(balance, amount))
	l.totalSupply = new(big.Int).Sub(l.totalSupply, amount)
	return nil
}

// Holders lists every address with a non-zero balance in byte order.
func (l *Ledger) Holders() []common.Address {
	out := make([]common.Address, 0, len(l.balances))
	for holder := range l.balances {
		out = append(out, holder)
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.Compare(string(out[i].Bytes()), string(out[j].Bytes())) < 0
	})
	return out
}

func (l *Ledger) setBalance(holder common.Address, amount *big.Int) {
	if amount.Sign() == 0 {
		delete(l.balances, holder)
		return
	}
	l.balances[holder] = amount
}

type ledgerSnapshot struct {
	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[allowanceKey]*big.Int
}

// Snapshot implements chain.Journaled.
func (l *Ledger) Snapshot() any {
	snap := ledgerSnapshot{
		totalSupply: nativecommon.Clone(l.totalSupply),
		balances:    make(map[common.Address]*big.Int, len(l.balances)),
		allowances:  make(map[allowanceKey]*big.Int, len(l.allowances)),
	}
	for k, v := range l.balances {
		snap.balances[k] = new(big.Int).Set(v)
	}
	for k, v := range l.allowances {
		snap.allowances[k] = new(big.Int).Set(v)
	}
	return snap
}

// Restore implements chain.Journaled.
func (l *Ledger) Restore(snapshot any) {
	snap, ok := snapshot.(ledgerSnapshot)
	if !ok {
		return
	}
	l.totalSupply = snap.totalSupply
	l.balances = snap.balances
	l.allowances = snap.allowances
}
