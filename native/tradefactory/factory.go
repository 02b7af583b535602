package tradefactory

import (
	"errors"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"vaultchain/core/chain"
	"vaultchain/core/events"
	nativecommon "vaultchain/native/common"
	"vaultchain/native/token"
)

const moduleName = "tradefactory"

var (
	errNilClock    = errors.New("trade factory: clock not configured")
	errNilRegistry = errors.New("trade factory: token registry not configured")

	ErrNotMechanic     = nativecommon.Revert("!mechanic")
	ErrPairDisabled    = nativecommon.Revert("pair not enabled")
	ErrUnknownSwapper  = nativecommon.Revert("unknown swapper")
	ErrUnknownToken    = nativecommon.Revert("unknown token")
	ErrInsufficientOut = nativecommon.Revert("insufficient out")
	ErrSameToken       = nativecommon.Revert("same token")
)

// TradeFactory lets strategies delegate reward swaps to relayers. A strategy
// enables the pairs it wants sold and grants the factory an allowance over
// tokenIn; mechanics then settle trades through a registered swapper.
type TradeFactory struct {
	address    common.Address
	governance common.Address
	registry   *token.Registry
	clock      chain.Clock
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	newID      func() string

	mechanics map[common.Address]bool
	swappers  map[common.Address]Swapper
	enabled   map[common.Address]map[Pair]bool
	trades    []Receipt
}

// New constructs a trade factory governed by governance.
func New(address, governance common.Address, registry *token.Registry, clock chain.Clock) (*TradeFactory, error) {
	if clock == nil {
		return nil, errNilClock
	}
	if registry == nil {
		return nil, errNilRegistry
	}
	return &TradeFactory{
		address:    address,
		governance: governance,
		registry:   registry,
		clock:      clock,
		emitter:    events.NoopEmitter{},
		newID:      func() string { return uuid.NewString() },
		mechanics:  make(map[common.Address]bool),
		swappers:   make(map[common.Address]Swapper),
		enabled:    make(map[common.Address]map[Pair]bool),
	}, nil
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (f *TradeFactory) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		f.emitter = events.NoopEmitter{}
		return
	}
	f.emitter = emitter
}

func (f *TradeFactory) SetPauses(p nativecommon.PauseView) { f.pauses = p }

// SetIDFunc overrides trade id generation. Tests use it for stable ids.
func (f *TradeFactory) SetIDFunc(fn func() string) {
	if fn == nil {
		fn = func() string { return uuid.NewString() }
	}
	f.newID = fn
}

func (f *TradeFactory) Address() common.Address    { return f.address }
func (f *TradeFactory) Governance() common.Address { return f.governance }

func (f *TradeFactory) AddMechanic(caller, mechanic common.Address) error {
	if caller != f.governance {
		return nativecommon.ErrNotGovernance
	}
	f.mechanics[mechanic] = true
	return nil
}

func (f *TradeFactory) RemoveMechanic(caller, mechanic common.Address) error {
	if caller != f.governance {
		return nativecommon.ErrNotGovernance
	}
	delete(f.mechanics, mechanic)
	return nil
}

func (f *TradeFactory) IsMechanic(addr common.Address) bool { return f.mechanics[addr] }

// AddSwapper registers a swapper mechanics may route through.
func (f *TradeFactory) AddSwapper(caller common.Address, swapper Swapper) error {
	if caller != f.governance {
		return nativecommon.ErrNotGovernance
	}
	if swapper == nil {
		return ErrUnknownSwapper
	}
	f.swappers[swapper.Address()] = swapper
	return nil
}

// Enable allows tokenIn -> tokenOut trades for the calling strategy.
func (f *TradeFactory) Enable(strategy, tokenIn, tokenOut common.Address) error {
	if tokenIn == tokenOut {
		return ErrSameToken
	}
	pairs, ok := f.enabled[strategy]
	if !ok {
		pairs = make(map[Pair]bool)
		f.enabled[strategy] = pairs
	}
	pairs[Pair{TokenIn: tokenIn, TokenOut: tokenOut}] = true
	f.emitter.Emit(events.TradePairToggled{Strategy: strategy, TokenIn: tokenIn, TokenOut: tokenOut, Enabled: true})
	return nil
}

// Disable revokes a pair for the calling strategy. Disabling an unknown pair
// is a no-op.
func (f *TradeFactory) Disable(strategy, tokenIn, tokenOut common.Address) error {
	pairs, ok := f.enabled[strategy]
	if !ok {
		return nil
	}
	key := Pair{TokenIn: tokenIn, TokenOut: tokenOut}
	if !pairs[key] {
		return nil
	}
	delete(pairs, key)
	if len(pairs) == 0 {
		delete(f.enabled, strategy)
	}
	f.emitter.Emit(events.TradePairToggled{Strategy: strategy, TokenIn: tokenIn, TokenOut: tokenOut, Enabled: false})
	return nil
}

// IsEnabled reports whether strategy allows the pair.
func (f *TradeFactory) IsEnabled(strategy, tokenIn, tokenOut common.Address) bool {
	return f.enabled[strategy][Pair{TokenIn: tokenIn, TokenOut: tokenOut}]
}

// EnabledPairs lists the strategy's pairs in a stable order.
func (f *TradeFactory) EnabledPairs(strategy common.Address) []Pair {
	out := make([]Pair, 0, len(f.enabled[strategy]))
	for pair := range f.enabled[strategy] {
		out = append(out, pair)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TokenIn != out[j].TokenIn {
			return out[i].TokenIn.Hex() < out[j].TokenIn.Hex()
		}
		return out[i].TokenOut.Hex() < out[j].TokenOut.Hex()
	})
	return out
}

// Execute settles a trade on behalf of a strategy. It pulls AmountIn through
// the strategy's allowance, routes it through swapper and checks the strategy
// received at least MinAmountOut.
func (f *TradeFactory) Execute(caller common.Address, details AsyncTradeExecutionDetails, swapperAddr common.Address, data []byte) (*Receipt, error) {
	if err := nativecommon.Guard(f.pauses, moduleName); err != nil {
		return nil, err
	}
	if !f.mechanics[caller] {
		return nil, ErrNotMechanic
	}
	if !f.IsEnabled(details.Strategy, details.TokenIn, details.TokenOut) {
		return nil, ErrPairDisabled
	}
	if details.AmountIn == nil || details.AmountIn.Sign() <= 0 {
		return nil, nativecommon.ErrInvalidAmount
	}
	swapper, ok := f.swappers[swapperAddr]
	if !ok {
		return nil, ErrUnknownSwapper
	}
	in, err := f.registry.Get(details.TokenIn)
	if err != nil {
		return nil, ErrUnknownToken
	}
	out, err := f.registry.Get(details.TokenOut)
	if err != nil {
		return nil, ErrUnknownToken
	}

	before := out.BalanceOf(details.Strategy)
	if err := in.TransferFrom(f.address, details.Strategy, swapper.Address(), details.AmountIn); err != nil {
		return nil, err
	}
	if _, err := swapper.Swap(details.Strategy, details.TokenIn, details.TokenOut, details.AmountIn, data); err != nil {
		return nil, err
	}
	received := nativecommon.SubFloor(out.BalanceOf(details.Strategy), before)
	minOut := nativecommon.Clone(details.MinAmountOut)
	if received.Cmp(minOut) < 0 || received.Sign() == 0 {
		return nil, ErrInsufficientOut
	}

	receipt := Receipt{
		ID:        f.newID(),
		Strategy:  details.Strategy,
		Swapper:   swapper.Address(),
		TokenIn:   details.TokenIn,
		TokenOut:  details.TokenOut,
		AmountIn:  nativecommon.Clone(details.AmountIn),
		AmountOut: received,
		Height:    f.clock.Height(),
		Timestamp: f.clock.Now(),
	}
	f.trades = append(f.trades, receipt)
	f.emitter.Emit(events.TradeExecuted{
		ID:        receipt.ID,
		Strategy:  receipt.Strategy,
		Swapper:   receipt.Swapper,
		TokenIn:   receipt.TokenIn,
		TokenOut:  receipt.TokenOut,
		AmountIn:  nativecommon.Clone(receipt.AmountIn),
		AmountOut: nativecommon.Clone(receipt.AmountOut),
	})
	result := receipt.Clone()
	return &result, nil
}

// Trades returns settled trades, oldest first.
func (f *TradeFactory) Trades() []Receipt {
	out := make([]Receipt, len(f.trades))
	for i, r := range f.trades {
		out[i] = r.Clone()
	}
	return out
}

// TotalTraded sums AmountIn over settled trades of tokenIn.
func (f *TradeFactory) TotalTraded(tokenIn common.Address) *big.Int {
	total := big.NewInt(0)
	for _, r := range f.trades {
		if r.TokenIn == tokenIn {
			total.Add(total, r.AmountIn)
		}
	}
	return total
}

type factorySnapshot struct {
	mechanics map[common.Address]bool
	swappers  map[common.Address]Swapper
	enabled   map[common.Address]map[Pair]bool
	trades    []Receipt
}

// Snapshot implements chain.Journaled.
func (f *TradeFactory) Snapshot() any {
	snap := factorySnapshot{
		mechanics: make(map[common.Address]bool, len(f.mechanics)),
		swappers:  make(map[common.Address]Swapper, len(f.swappers)),
		enabled:   make(map[common.Address]map[Pair]bool, len(f.enabled)),
		trades:    append([]Receipt(nil), f.trades...),
	}
	for k, v := range f.mechanics {
		snap.mechanics[k] = v
	}
	for k, v := range f.swappers {
		snap.swappers[k] = v
	}
	for strategy, pairs := range f.enabled {
		copied := make(map[Pair]bool, len(pairs))
		for pair, on := range pairs {
			copied[pair] = on
		}
		snap.enabled[strategy] = copied
	}
	return snap
}

// Restore implements chain.Journaled.
func (f *TradeFactory) Restore(snapshot any) {
	snap, ok := snapshot.(factorySnapshot)
	if !ok {
		return
	}
	f.mechanics = snap.mechanics
	f.swappers = snap.swappers
	f.enabled = snap.enabled
	f.trades = snap.trades
}
