// Package engine turns one option quote plus resolved market inputs into a
// self-consistent GreeksResult.
package engine

import (
	"Options_Analytics/internal/model"
	"Options_Analytics/internal/quant"
)

// Inputs is everything one calculation needs. Assembled fresh per call by
// the orchestrating service; never retained.
type Inputs struct {
	Contract      *model.OptionContract
	Quote         model.MarketQuote
	Spot          float64
	TimeToExpiry  float64 // years
	RiskFreeRate  float64
	DividendYield float64

	InitialGuess  float64 // <= 0 picks the moneyness-based guess
	Tolerance     float64
	MaxIterations int

	NowMicros int64
}

// Compute solves IV from the market price and re-prices at the solved IV so
// price and greeks come from the same volatility.
//
// When the solver does not converge, the returned result carries
// Converged=false with the greeks copied from prev (the last converged
// result) instead of zeros, so consumers see a stale-but-plausible value
// rather than a flicker to garbage. prev may be nil.
func Compute(in Inputs, prev *model.GreeksResult) model.GreeksResult {
	res := model.GreeksResult{
		Token:            in.Contract.Token,
		ExchangeSegment:  in.Contract.ExchangeSegment,
		ComputedAtMicros: in.NowMicros,
		SpotPrice:        in.Spot,
		StrikePrice:      in.Contract.StrikeFloat(),
		TimeToExpiry:     in.TimeToExpiry,
		OptionPrice:      in.Quote.LastTradedPrice,
	}

	iv := quant.ImpliedVol(
		in.Quote.LastTradedPrice,
		in.Spot,
		res.StrikePrice,
		in.TimeToExpiry,
		in.RiskFreeRate,
		in.DividendYield,
		in.Contract.IsCall(),
		in.InitialGuess,
		in.Tolerance,
		in.MaxIterations,
	)
	res.Iterations = iv.Iterations

	if !iv.Converged {
		if prev != nil && prev.Converged {
			res.ImpliedVolatility = prev.ImpliedVolatility
			res.Delta = prev.Delta
			res.Gamma = prev.Gamma
			res.Vega = prev.Vega
			res.Theta = prev.Theta
			res.Rho = prev.Rho
			res.TheoreticalPrice = prev.TheoreticalPrice
		}
		return res
	}

	g := quant.Calculate(
		in.Spot,
		res.StrikePrice,
		in.TimeToExpiry,
		in.RiskFreeRate,
		in.DividendYield,
		iv.IV,
		in.Contract.IsCall(),
	)

	res.ImpliedVolatility = iv.IV
	res.Converged = true
	res.Delta = g.Delta
	res.Gamma = g.Gamma
	res.Vega = g.Vega
	res.Theta = g.Theta
	res.Rho = g.Rho
	res.TheoreticalPrice = g.Price
	return res
}
