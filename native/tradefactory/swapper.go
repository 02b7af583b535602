package tradefactory

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	nativecommon "vaultchain/native/common"
	"vaultchain/native/token"
)

var ErrNoRate = nativecommon.Revert("swapper: no rate")

// FixedRateSwapper settles trades at configured 1e18 fixed point rates. It
// burns the input it receives and mints the output, standing in for an
// external liquidity source.
type FixedRateSwapper struct {
	address  common.Address
	registry *token.Registry

	mu    sync.RWMutex
	rates map[Pair]*big.Int
}

// NewFixedRateSwapper constructs a swapper resolving tokens through registry.
func NewFixedRateSwapper(address common.Address, registry *token.Registry) *FixedRateSwapper {
	return &FixedRateSwapper{address: address, registry: registry, rates: make(map[Pair]*big.Int)}
}

func (s *FixedRateSwapper) Address() common.Address { return s.address }

// SetRate sets the amount of tokenOut paid per 1e18 of tokenIn.
func (s *FixedRateSwapper) SetRate(tokenIn, tokenOut common.Address, rate *big.Int) error {
	if rate == nil || rate.Sign() <= 0 {
		return nativecommon.ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rates[Pair{TokenIn: tokenIn, TokenOut: tokenOut}] = new(big.Int).Set(rate)
	return nil
}

// Rate returns the configured rate for the pair.
func (s *FixedRateSwapper) Rate(tokenIn, tokenOut common.Address) (*big.Int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rate, ok := s.rates[Pair{TokenIn: tokenIn, TokenOut: tokenOut}]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(rate), true
}

// Quote returns the output for amountIn at the configured rate.
func (s *FixedRateSwapper) Quote(tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	rate, ok := s.Rate(tokenIn, tokenOut)
	if !ok {
		return nil, ErrNoRate
	}
	return nativecommon.MulDiv(amountIn, rate, nativecommon.WAD), nil
}

// Swap implements Swapper.
func (s *FixedRateSwapper) Swap(receiver, tokenIn, tokenOut common.Address, amountIn *big.Int, _ []byte) (*big.Int, error) {
	out, err := s.Quote(tokenIn, tokenOut, amountIn)
	if err != nil {
		return nil, err
	}
	in, err := s.registry.Get(tokenIn)
	if err != nil {
		return nil, ErrUnknownToken
	}
	dst, err := s.registry.Get(tokenOut)
	if err != nil {
		return nil, ErrUnknownToken
	}
	if err := in.Burn(s.address, amountIn); err != nil {
		return nil, err
	}
	if err := dst.Mint(receiver, out); err != nil {
		return nil, err
	}
	return out, nil
}
