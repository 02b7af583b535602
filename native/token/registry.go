package token

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry indexes the token ledgers known to the node.
type Registry struct {
	mu      sync.RWMutex
	ledgers map[common.Address]*Ledger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ledgers: make(map[common.Address]*Ledger)}
}

// Register adds a ledger. Registering the same address twice fails.
func (r *Registry) Register(ledger *Ledger) error {
	if ledger == nil {
		return fmt.Errorf("token registry: nil ledger")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.ledgers[ledger.Address()]; exists {
		return fmt.Errorf("token registry: %s already registered", ledger.Address().Hex())
	}
	r.ledgers[ledger.Address()] = ledger
	return nil
}

// Get resolves a ledger by address.
func (r *Registry) Get(addr common.Address) (*Ledger, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ledger, ok := r.ledgers[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownToken, addr.Hex())
	}
	return ledger, nil
}

// BySymbol resolves a ledger by its symbol, case-insensitively.
func (r *Registry) BySymbol(symbol string) (*Ledger, error) {
	normalized := strings.TrimSpace(symbol)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ledger := range r.ledgers {
		if strings.EqualFold(ledger.Symbol(), normalized) {
			return ledger, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errUnknownToken, symbol)
}

// All returns every ledger sorted by symbol.
func (r *Registry) All() []*Ledger {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Ledger, 0, len(r.ledgers))
	for _, ledger := range r.ledgers {
		out = append(out, ledger)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}
