package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalCDF(t *testing.T) {
	assert.InDelta(t, 0.5, NormalCDF(0), 1e-12)
	assert.InDelta(t, 0.841344746, NormalCDF(1), 1e-8)
	assert.InDelta(t, 0.158655254, NormalCDF(-1), 1e-8)
	assert.InDelta(t, 0.977249868, NormalCDF(2), 1e-8)

	// Tails stay monotone and bounded.
	assert.Less(t, NormalCDF(-10), 1e-20)
	assert.Greater(t, NormalCDF(10), 1-1e-20)
}

func TestCalculateKnownValues(t *testing.T) {
	// S=100 K=100 T=1y r=5% q=0 sigma=20%, textbook ATM values.
	g := Calculate(100, 100, 1.0, 0.05, 0, 0.20, true)

	assert.InDelta(t, 10.4506, g.Price, 1e-3)
	assert.InDelta(t, 0.6368, g.Delta, 1e-3)
	assert.InDelta(t, 0.018762, g.Gamma, 1e-5)
	assert.InDelta(t, 0.37524, g.Vega, 1e-4)    // per 1% vol
	assert.InDelta(t, -0.017573, g.Theta, 1e-5) // per day
	assert.InDelta(t, 0.53232, g.Rho, 1e-4)     // per 1% rate

	p := Calculate(100, 100, 1.0, 0.05, 0, 0.20, false)
	assert.InDelta(t, 5.5735, p.Price, 1e-3)
	assert.InDelta(t, g.Delta-1.0, p.Delta, 1e-9) // q=0 parity on delta

	// Gamma and vega are call/put invariant.
	assert.InDelta(t, g.Gamma, p.Gamma, 1e-12)
	assert.InDelta(t, g.Vega, p.Vega, 1e-12)
}

func TestPutCallParity(t *testing.T) {
	cases := []struct {
		s, k, t, r, q, sigma float64
	}{
		{18000, 18000, 30.0 / 252, 0.065, 0, 0.18},
		{18000, 17000, 10.0 / 252, 0.065, 0, 0.25},
		{18000, 19500, 60.0 / 252, 0.065, 0.01, 0.30},
		{250, 240, 0.5, 0.05, 0.02, 0.45},
	}
	for _, c := range cases {
		call := TheoPrice(c.s, c.k, c.t, c.r, c.q, c.sigma, true)
		put := TheoPrice(c.s, c.k, c.t, c.r, c.q, c.sigma, false)
		lhs := call - put
		rhs := c.s*math.Exp(-c.q*c.t) - c.k*math.Exp(-c.r*c.t)
		assert.InDelta(t, rhs, lhs, 1e-8, "parity broken for K=%v", c.k)
	}
}

func TestCalculateExpired(t *testing.T) {
	itm := Calculate(18200, 18000, 0, 0.065, 0, 0.2, true)
	assert.Equal(t, 200.0, itm.Price)
	assert.Equal(t, 1.0, itm.Delta)
	assert.Zero(t, itm.Gamma)
	assert.Zero(t, itm.Vega)
	assert.Zero(t, itm.Theta)
	assert.Zero(t, itm.Rho)

	otm := Calculate(17800, 18000, 0, 0.065, 0, 0.2, true)
	assert.Zero(t, otm.Price)
	assert.Zero(t, otm.Delta)

	put := Calculate(17800, 18000, 0, 0.065, 0, 0.2, false)
	assert.Equal(t, 200.0, put.Price)
	assert.Equal(t, -1.0, put.Delta)
}

func TestCalculateZeroVol(t *testing.T) {
	g := Calculate(18200, 18000, 30.0/252, 0.065, 0, 0, true)
	want := 18200 - 18000*math.Exp(-0.065*30.0/252)
	assert.InDelta(t, want, g.Price, 1e-9)
	assert.Equal(t, 1.0, g.Delta)

	// Zero-vol OTM option is worthless, not negative.
	otm := Calculate(17000, 18000, 30.0/252, 0.065, 0, 0, true)
	assert.Zero(t, otm.Price)
}

func TestGreeksSigns(t *testing.T) {
	g := Calculate(18000, 18100, 20.0/252, 0.065, 0, 0.22, true)
	assert.Greater(t, g.Delta, 0.0)
	assert.Less(t, g.Delta, 1.0)
	assert.Greater(t, g.Gamma, 0.0)
	assert.Greater(t, g.Vega, 0.0)
	assert.Less(t, g.Theta, 0.0)
	assert.Greater(t, g.Rho, 0.0)

	p := Calculate(18000, 18100, 20.0/252, 0.065, 0, 0.22, false)
	assert.Less(t, p.Delta, 0.0)
	assert.Greater(t, p.Delta, -1.0)
	assert.Less(t, p.Rho, 0.0)
}

func TestDividendYieldLowersCallDelta(t *testing.T) {
	noDiv := Calculate(18000, 18000, 0.25, 0.065, 0, 0.2, true)
	withDiv := Calculate(18000, 18000, 0.25, 0.065, 0.03, 0.2, true)
	assert.Less(t, withDiv.Delta, noDiv.Delta)
	assert.Less(t, withDiv.Price, noDiv.Price)
}

func TestCalculateInput(t *testing.T) {
	in := Input{Spot: 18000, Strike: 18000, TimeToExpiry: 30.0 / 252, RiskFreeRate: 0.065, Volatility: 0.18, IsCall: true}
	assert.Equal(t, Calculate(18000, 18000, 30.0/252, 0.065, 0, 0.18, true), CalculateInput(in))
}
