// Package data holds the shared price state written by ingestion adapters
// and read by the calculation workers.
package data

import (
	"sync"
	"sync/atomic"

	"Options_Analytics/internal/model"
)

// PriceStore keeps the latest MarketQuote per token for one exchange
// segment. Writers store a fresh value, readers load a copy; a reader can
// never observe a quote mid-update.
type PriceStore struct {
	quotes sync.Map // uint32 -> *atomic.Value holding model.MarketQuote
}

func NewPriceStore() *PriceStore {
	return &PriceStore{}
}

// Apply records a tick. Out-of-order ticks (older timestamp than the stored
// quote) are dropped so a slow feed path cannot roll prices backwards.
func (s *PriceStore) Apply(u model.PriceUpdate) {
	slot := s.slot(u.Token)
	next := model.MarketQuote{LastTradedPrice: u.LastTradedPrice, TimestampMicros: u.TimestampMicros}
	for {
		cur := slot.Load()
		if cur != nil && cur.(model.MarketQuote).TimestampMicros > u.TimestampMicros {
			return
		}
		if slot.CompareAndSwap(cur, next) {
			return
		}
	}
}

// Last returns the latest quote for token, if any tick has arrived.
func (s *PriceStore) Last(token uint32) (model.MarketQuote, bool) {
	v, ok := s.quotes.Load(token)
	if !ok {
		return model.MarketQuote{}, false
	}
	q := v.(*atomic.Value).Load()
	if q == nil {
		return model.MarketQuote{}, false
	}
	return q.(model.MarketQuote), true
}

// Ltp returns the last traded price or 0 when the token has never ticked.
func (s *PriceStore) Ltp(token uint32) float64 {
	q, ok := s.Last(token)
	if !ok {
		return 0
	}
	return q.LastTradedPrice
}

func (s *PriceStore) slot(token uint32) *atomic.Value {
	if v, ok := s.quotes.Load(token); ok {
		return v.(*atomic.Value)
	}
	v, _ := s.quotes.LoadOrStore(token, new(atomic.Value))
	return v.(*atomic.Value)
}
