package quant

import "math"

// OptionGreeks holds the Black-Scholes theoretical price and sensitivities
// for one contract. Scaling conventions follow NSE display practice:
// vega per 1% vol change, theta per calendar day, rho per 1% rate change.
type OptionGreeks struct {
	Price float64
	Delta float64 // [0,1] calls, [-1,0] puts
	Gamma float64
	Vega  float64
	Theta float64
	Rho   float64
}

// Input bundles the pricing parameters.
type Input struct {
	Spot         float64 // S
	Strike       float64 // K
	TimeToExpiry float64 // T, years
	RiskFreeRate float64 // r, decimal
	DividendYld  float64 // q, decimal (0 for indices)
	Volatility   float64 // sigma, decimal
	IsCall       bool
}

// NormalCDF is the standard normal cumulative distribution function.
// erfc-based: stable for large |x|, unlike polynomial approximations.
func NormalCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x*math.Sqrt2/2)
}

// NormalPDF is the standard normal probability density function.
func NormalPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// D1 computes the d1 term of the Black-Scholes formula.
func D1(s, k, t, r, q, sigma float64) float64 {
	return (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * math.Sqrt(t))
}

// D2 computes d2 from d1.
func D2(d1, sigma, t float64) float64 {
	return d1 - sigma*math.Sqrt(t)
}

func intrinsic(s, k float64, isCall bool) float64 {
	if isCall {
		return math.Max(s-k, 0)
	}
	return math.Max(k-s, 0)
}

// TheoPrice returns only the theoretical price. Faster than Calculate when
// the greeks are not needed, e.g. inside the IV root search.
func TheoPrice(s, k, t, r, q, sigma float64, isCall bool) float64 {
	if t <= 0 {
		return intrinsic(s, k, isCall)
	}
	if sigma <= 0 {
		// Zero-vol limit: discounted intrinsic on the forward.
		var p float64
		if isCall {
			p = s*math.Exp(-q*t) - k*math.Exp(-r*t)
		} else {
			p = k*math.Exp(-r*t) - s*math.Exp(-q*t)
		}
		return math.Max(p, 0)
	}

	d1 := D1(s, k, t, r, q, sigma)
	d2 := D2(d1, sigma, t)
	expRT := math.Exp(-r * t)
	expQT := math.Exp(-q * t)

	if isCall {
		return s*expQT*NormalCDF(d1) - k*expRT*NormalCDF(d2)
	}
	return k*expRT*NormalCDF(-d2) - s*expQT*NormalCDF(-d1)
}

// Calculate prices a European option and its greeks.
//
// T <= 0 (expired or past cutover) returns the intrinsic value with zero
// greeks except delta, which is set by moneyness. sigma <= 0 returns the
// zero-vol limit price. Neither path divides by sigma*sqrt(T).
func Calculate(s, k, t, r, q, sigma float64, isCall bool) OptionGreeks {
	var g OptionGreeks

	if t <= 0 {
		g.Price = intrinsic(s, k, isCall)
		if isCall {
			if s > k {
				g.Delta = 1.0
			}
		} else {
			if k > s {
				g.Delta = -1.0
			}
		}
		return g
	}

	if sigma <= 0 {
		g.Price = TheoPrice(s, k, t, r, q, sigma, isCall)
		if isCall {
			if s > k {
				g.Delta = 1.0
			}
		} else {
			if k > s {
				g.Delta = -1.0
			}
		}
		return g
	}

	d1 := D1(s, k, t, r, q, sigma)
	d2 := D2(d1, sigma, t)

	nd1 := NormalCDF(d1)
	nd2 := NormalCDF(d2)
	npd1 := NormalPDF(d1)

	sqrtT := math.Sqrt(t)
	expRT := math.Exp(-r * t)
	expQT := math.Exp(-q * t)

	if isCall {
		g.Price = s*expQT*nd1 - k*expRT*nd2
		g.Delta = expQT * nd1
		g.Rho = k * t * expRT * nd2
		g.Theta = -s*expQT*npd1*sigma/(2*sqrtT) - r*k*expRT*nd2 + q*s*expQT*nd1
	} else {
		nmd1 := NormalCDF(-d1)
		nmd2 := NormalCDF(-d2)

		g.Price = k*expRT*nmd2 - s*expQT*nmd1
		g.Delta = expQT * (nd1 - 1.0)
		g.Rho = -k * t * expRT * nmd2
		g.Theta = -s*expQT*npd1*sigma/(2*sqrtT) + r*k*expRT*nmd2 - q*s*expQT*nmd1
	}

	// Gamma and vega are identical for calls and puts.
	g.Gamma = expQT * npd1 / (s * sigma * sqrtT)
	g.Vega = s * expQT * sqrtT * npd1 / 100.0 // per 1% vol change

	g.Theta /= 365.0 // per calendar day
	g.Rho /= 100.0   // per 1% rate change

	return g
}

// CalculateInput is the struct-parameter form of Calculate.
func CalculateInput(in Input) OptionGreeks {
	return Calculate(in.Spot, in.Strike, in.TimeToExpiry, in.RiskFreeRate, in.DividendYld, in.Volatility, in.IsCall)
}
