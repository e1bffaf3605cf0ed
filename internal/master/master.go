// Package master exposes the read-only view of the contract master that
// the analytics core consumes. The master itself (symbol files, refresh,
// corporate actions) is owned elsewhere; this package defines the lookup
// capability plus an in-memory implementation used by wiring and tests.
package master

import (
	"sync"

	"Options_Analytics/internal/model"
)

// Lookup is the read capability the analytics core depends on.
type Lookup interface {
	// ByToken returns the option contract for a token, if the token is a
	// known option.
	ByToken(token uint32) (*model.OptionContract, bool)

	// OptionsFor lists all option tokens linked to an underlying token.
	OptionsFor(underlyingToken uint32) []uint32

	// NearFutureToken returns the nearest-expiry future on the underlying.
	NearFutureToken(underlyingToken uint32) (uint32, bool)

	// UnderlyingOfFuture maps a futures token back to its underlying, so a
	// futures tick can trigger the option chain it prices.
	UnderlyingOfFuture(futToken uint32) (uint32, bool)

	// TokenForSymbol resolves a feed symbol to its instrument token.
	TokenForSymbol(symbol string) (uint32, bool)
}

// future pairs a token with its expiry ordinal for near-month selection.
type future struct {
	token     uint32
	expiryKey int64 // unix day of expiry
}

// InMemory is a Lookup backed by registration calls. Registration happens
// at startup before the feed is live; lookups afterwards are concurrent.
type InMemory struct {
	mu        sync.RWMutex
	contracts map[uint32]*model.OptionContract
	byUnd     map[uint32][]uint32
	futures   map[uint32][]future
	futUnd    map[uint32]uint32
	symbols   map[string]uint32
}

func NewInMemory() *InMemory {
	return &InMemory{
		contracts: make(map[uint32]*model.OptionContract),
		byUnd:     make(map[uint32][]uint32),
		futures:   make(map[uint32][]future),
		futUnd:    make(map[uint32]uint32),
		symbols:   make(map[string]uint32),
	}
}

// AddOption registers an option contract. The symbol key is the feed's
// instrument identifier for the option itself.
func (m *InMemory) AddOption(symbol string, c *model.OptionContract) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.contracts[c.Token] = c
	m.byUnd[c.UnderlyingToken] = append(m.byUnd[c.UnderlyingToken], c.Token)
	if symbol != "" {
		m.symbols[symbol] = c.Token
	}
}

// AddFuture registers a future on an underlying; expiryDay orders the
// near-month pick (unix day or any monotone expiry ordinal).
func (m *InMemory) AddFuture(symbol string, token, underlyingToken uint32, expiryDay int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.futures[underlyingToken] = append(m.futures[underlyingToken], future{token: token, expiryKey: expiryDay})
	m.futUnd[token] = underlyingToken
	if symbol != "" {
		m.symbols[symbol] = token
	}
}

// AddUnderlying registers a cash-market symbol mapping.
func (m *InMemory) AddUnderlying(symbol string, token uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if symbol != "" {
		m.symbols[symbol] = token
	}
}

func (m *InMemory) ByToken(token uint32) (*model.OptionContract, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[token]
	return c, ok
}

func (m *InMemory) OptionsFor(underlyingToken uint32) []uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.byUnd[underlyingToken]
	out := make([]uint32, len(src))
	copy(out, src)
	return out
}

func (m *InMemory) NearFutureToken(underlyingToken uint32) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.futures[underlyingToken]
	if len(list) == 0 {
		return 0, false
	}
	best := list[0]
	for _, f := range list[1:] {
		if f.expiryKey < best.expiryKey {
			best = f
		}
	}
	return best.token, true
}

func (m *InMemory) UnderlyingOfFuture(futToken uint32) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	und, ok := m.futUnd[futToken]
	return und, ok
}

func (m *InMemory) TokenForSymbol(symbol string) (uint32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.symbols[symbol]
	return t, ok
}
