package quant

import "math"

// Implied volatility solver bounds.
const (
	MinVolatility    = 0.01 // 1% floor; anything lower is quote noise
	MaxVolatility    = 5.0  // 500% ceiling
	minVegaThreshold = 1e-10

	// Market price may sit slightly below intrinsic from bid-ask effects
	// on stale/illiquid quotes; reject only below this fraction.
	intrinsicSlack = 0.99
)

// IVResult reports one implied-volatility solve.
// Converged=false means IV must not be trusted; callers keep the
// previously converged value instead.
type IVResult struct {
	IV         float64
	Iterations int
	Converged  bool
	FinalError float64 // price(iv) - marketPrice
}

// IsCalculable rejects inputs for which no implied volatility exists:
// expired contracts, non-positive prices, or a market price below the
// intrinsic value (arbitrage condition from stale data).
func IsCalculable(marketPrice, s, k, t float64, isCall bool) bool {
	if t <= 0 || s <= 0 || k <= 0 || marketPrice <= 0 {
		return false
	}
	if marketPrice < intrinsic(s, k, isCall)*intrinsicSlack {
		return false
	}
	return true
}

// Intrinsic is the exercise value: max(S-K,0) for calls, max(K-S,0) for puts.
func Intrinsic(s, k float64, isCall bool) float64 {
	return intrinsic(s, k, isCall)
}

// InitialGuessFromMoneyness picks a starting volatility from |ln(S/K)| and
// time to expiry. Pure convergence optimization; any clamp-range value is
// correct, a closer one just saves Newton iterations.
func InitialGuessFromMoneyness(s, k, t float64) float64 {
	absMoneyness := math.Abs(math.Log(s / k))

	baseVol := 0.20 // typical for index options
	if absMoneyness > 0.2 {
		baseVol = 0.30 + absMoneyness*0.5
	} else if absMoneyness > 0.1 {
		baseVol = 0.25
	}

	// Near-expiry options trade at elevated vols.
	if t < 7.0/365.0 {
		baseVol *= 1.5
	} else if t < 30.0/365.0 {
		baseVol *= 1.2
	}

	return clampVol(baseVol)
}

func clampVol(sigma float64) float64 {
	return math.Min(math.Max(sigma, MinVolatility), MaxVolatility)
}

// ImpliedVol recovers the volatility that reproduces marketPrice under the
// pricer, by Newton-Raphson on the price with the analytic vega as the
// derivative. When vega underflows (deep ITM/OTM near expiry) it falls back
// to SolveBrent, which needs no derivative.
//
// initialGuess <= 0 selects the moneyness-based guess. Convergence is
// tested in price space: |price(sigma) - marketPrice| < tol.
func ImpliedVol(marketPrice, s, k, t, r, q float64, isCall bool, initialGuess, tol float64, maxIter int) IVResult {
	if !IsCalculable(marketPrice, s, k, t, isCall) {
		return IVResult{FinalError: math.NaN()}
	}

	sigma := initialGuess
	if sigma <= 0 {
		sigma = InitialGuessFromMoneyness(s, k, t)
	}
	sigma = clampVol(sigma)

	for i := 0; i < maxIter; i++ {
		g := Calculate(s, k, t, r, q, sigma, isCall)
		priceDiff := g.Price - marketPrice

		if math.Abs(priceDiff) < tol {
			return IVResult{IV: sigma, Iterations: i + 1, Converged: true, FinalError: priceDiff}
		}

		// Vega is reported per 1% change; the derivative needs the raw value.
		rawVega := g.Vega * 100.0
		if math.Abs(rawVega) < minVegaThreshold {
			return SolveBrent(marketPrice, s, k, t, r, q, isCall)
		}

		last := sigma
		sigma = clampVol(sigma - priceDiff/rawVega)

		// Stuck on the clamp or oscillating between two sigmas: the price
		// error is not shrinking, so stop instead of burning iterations.
		if math.Abs(sigma-last) < tol*0.01 {
			return SolveBrent(marketPrice, s, k, t, r, q, isCall)
		}
	}

	// Out of iterations without reaching tol. Converged=true must mean
	// within tol, so hand over to the bracketing solver instead of
	// accepting a loose result.
	return SolveBrent(marketPrice, s, k, t, r, q, isCall)
}

// SolveBrent finds the implied volatility with Brent's method over the
// full [MinVolatility, MaxVolatility] bracket using price evaluations only.
// Slower than Newton but converges for any input passing IsCalculable, in
// particular when vega is numerically zero.
func SolveBrent(marketPrice, s, k, t, r, q float64, isCall bool) IVResult {
	if !IsCalculable(marketPrice, s, k, t, isCall) {
		return IVResult{FinalError: math.NaN()}
	}

	const (
		tol     = 1e-8
		maxIter = 100
	)

	priceFunc := func(sigma float64) float64 {
		return TheoPrice(s, k, t, r, q, sigma, isCall) - marketPrice
	}

	a, b := MinVolatility, MaxVolatility
	fa, fb := priceFunc(a), priceFunc(b)

	if fa*fb > 0 {
		// Market price outside the model's attainable range for any vol.
		return IVResult{FinalError: fa}
	}

	if math.Abs(fa) < math.Abs(fb) {
		a, b = b, a
		fa, fb = fb, fa
	}

	c, fc := a, fa
	mflag := true
	var d float64

	for i := 0; i < maxIter; i++ {
		if math.Abs(b-a) < tol || math.Abs(fb) < tol {
			return IVResult{IV: b, Iterations: i + 1, Converged: true, FinalError: fb}
		}

		var s2 float64
		if fa != fc && fb != fc {
			// Inverse quadratic interpolation.
			s2 = a*fb*fc/((fa-fb)*(fa-fc)) +
				b*fa*fc/((fb-fa)*(fb-fc)) +
				c*fa*fb/((fc-fa)*(fc-fb))
		} else {
			// Secant step.
			s2 = b - fb*(b-a)/(fb-fa)
		}

		lo, hi := (3*a+b)/4, b
		if lo > hi {
			lo, hi = hi, lo
		}
		cond1 := s2 < lo || s2 > hi
		cond2 := mflag && math.Abs(s2-b) >= math.Abs(b-c)/2
		cond3 := !mflag && math.Abs(s2-b) >= math.Abs(c-d)/2
		cond4 := mflag && math.Abs(b-c) < tol
		cond5 := !mflag && math.Abs(c-d) < tol

		if cond1 || cond2 || cond3 || cond4 || cond5 {
			s2 = (a + b) / 2
			mflag = true
		} else {
			mflag = false
		}

		fs := priceFunc(s2)
		d = c
		c, fc = b, fb

		if fa*fs < 0 {
			b, fb = s2, fs
		} else {
			a, fa = s2, fs
		}

		if math.Abs(fa) < math.Abs(fb) {
			a, b = b, a
			fa, fb = fb, fa
		}
	}

	return IVResult{IV: b, Iterations: maxIter, Converged: math.Abs(fb) < tol*100, FinalError: fb}
}
