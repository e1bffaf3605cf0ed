package model

// GreeksResult is one completed calculation for one option token.
// Immutable once produced; recalculation yields a new value.
type GreeksResult struct {
	Token             uint32
	ExchangeSegment   int
	ImpliedVolatility float64 // decimal, e.g. 0.18 = 18%
	Delta             float64
	Gamma             float64
	Vega              float64 // per 1% IV change
	Theta             float64 // per calendar day
	Rho               float64 // per 1% rate change
	TheoreticalPrice  float64
	Converged         bool
	Iterations        int
	ComputedAtMicros  int64

	// Inputs the result was produced from.
	SpotPrice    float64
	StrikePrice  float64
	TimeToExpiry float64 // years
	OptionPrice  float64 // market price used
}

// CacheSnapshot is the consumer-visible copy of one cache entry.
type CacheSnapshot struct {
	Result                    GreeksResult
	LastPrice                 float64 // option LTP used at last calculation
	LastUnderlyingPrice       float64
	LastCalculationTimeMicros int64
	LastTradeTimeMicros       int64 // last time the option itself traded
}
