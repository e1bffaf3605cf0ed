package data

import (
	"Options_Analytics/internal/master"
	"Options_Analytics/internal/model"
)

// SpotSource names which market supplied a resolved underlying price.
type SpotSource int

const (
	SpotNone SpotSource = iota
	SpotFuture
	SpotCash
)

func (s SpotSource) String() string {
	switch s {
	case SpotFuture:
		return "future"
	case SpotCash:
		return "cash"
	}
	return "none"
}

// UnderlyingResolver maps an option contract to the reference price used as
// spot. The choice is deterministic per contract: near-month futures LTP
// when a future exists and has ticked, otherwise the cash-market LTP.
// PreferFuture=false skips the futures leg entirely (cash-settled mode).
type UnderlyingResolver struct {
	Master       master.Lookup
	Derivatives  *PriceStore // futures + options segment
	Cash         *PriceStore // cash market segment
	PreferFuture bool
}

// Resolve returns the spot price for contract's underlying and the source
// it came from. ok=false means neither market has a usable price yet.
func (r *UnderlyingResolver) Resolve(contract *model.OptionContract) (spot float64, src SpotSource, ok bool) {
	if r.PreferFuture {
		if futToken, found := r.Master.NearFutureToken(contract.UnderlyingToken); found {
			if ltp := r.Derivatives.Ltp(futToken); ltp > 0 {
				return ltp, SpotFuture, true
			}
		}
	}
	if ltp := r.Cash.Ltp(contract.UnderlyingToken); ltp > 0 {
		return ltp, SpotCash, true
	}
	return 0, SpotNone, false
}
