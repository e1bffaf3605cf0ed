package quant

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ivTol     = 1e-6
	ivMaxIter = 100
)

func TestIsCalculable(t *testing.T) {
	assert.True(t, IsCalculable(150, 18000, 18000, 0.1, true))

	assert.False(t, IsCalculable(150, 18000, 18000, 0, true), "expired")
	assert.False(t, IsCalculable(150, 0, 18000, 0.1, true), "no spot")
	assert.False(t, IsCalculable(150, 18000, 0, 0.1, true), "no strike")
	assert.False(t, IsCalculable(0, 18000, 18000, 0.1, true), "no price")

	// Deep ITM call, market price far below intrinsic: arbitrage, no IV.
	assert.False(t, IsCalculable(100, 19000, 18000, 0.1, true))
	// Slightly below intrinsic survives the slack for stale quotes.
	assert.True(t, IsCalculable(995, 19000, 18000, 0.1, true))
}

func TestImpliedVolATMScenario(t *testing.T) {
	// ATM NIFTY-scale contract with a known volatility.
	const (
		s, k    = 18000.0, 18000.0
		tt      = 30.0 / 365.0
		r       = 0.06
		trueVol = 0.18
	)
	price := TheoPrice(s, k, tt, r, 0, trueVol, true)

	res := ImpliedVol(price, s, k, tt, r, 0, true, 0.20, ivTol, ivMaxIter)
	require.True(t, res.Converged)
	assert.InDelta(t, trueVol, res.IV, 1e-4)
	assert.Less(t, res.Iterations, 10, "ATM Newton should converge fast")
}

func TestImpliedVolRoundTrip(t *testing.T) {
	// Healthy-vega region: solving the model's own price must recover sigma.
	spots := []float64{18000}
	strikes := []float64{15000, 16500, 18000, 19500, 21000}
	vols := []float64{0.10, 0.18, 0.35, 0.80, 1.50}
	expiries := []float64{5.0 / 252, 21.0 / 252, 63.0 / 252}

	for _, s := range spots {
		for _, k := range strikes {
			for _, sigma := range vols {
				for _, tt := range expiries {
					for _, isCall := range []bool{true, false} {
						g := Calculate(s, k, tt, 0.065, 0, sigma, isCall)
						price := g.Price
						if price < 0.05 {
							continue // below tick size, quote would not exist
						}
						if g.Vega*100 < 0.5 {
							continue // dead vega: sigma is unidentifiable from price
						}
						res := ImpliedVol(price, s, k, tt, 0.065, 0, isCall, 0, ivTol, ivMaxIter)
						require.True(t, res.Converged,
							"K=%v sigma=%v T=%v call=%v", k, sigma, tt, isCall)
						assert.InDelta(t, sigma, res.IV, 1e-3,
							"K=%v sigma=%v T=%v call=%v", k, sigma, tt, isCall)
					}
				}
			}
		}
	}
}

func TestImpliedVolIdempotent(t *testing.T) {
	price := TheoPrice(18000, 18500, 21.0/252, 0.065, 0, 0.22, false)
	a := ImpliedVol(price, 18000, 18500, 21.0/252, 0.065, 0, false, 0, ivTol, ivMaxIter)
	b := ImpliedVol(price, 18000, 18500, 21.0/252, 0.065, 0, false, 0, ivTol, ivMaxIter)
	assert.Equal(t, a, b)
}

func TestImpliedVolWarmStart(t *testing.T) {
	price := TheoPrice(18000, 18000, 30.0/252, 0.065, 0, 0.24, true)
	cold := ImpliedVol(price, 18000, 18000, 30.0/252, 0.065, 0, true, 0, ivTol, ivMaxIter)
	warm := ImpliedVol(price, 18000, 18000, 30.0/252, 0.065, 0, true, 0.239, ivTol, ivMaxIter)
	require.True(t, cold.Converged)
	require.True(t, warm.Converged)
	assert.InDelta(t, cold.IV, warm.IV, 1e-4)
	assert.LessOrEqual(t, warm.Iterations, cold.Iterations)
}

func TestImpliedVolDeepITMNearExpiry(t *testing.T) {
	// Vega is numerically dead here; Newton must hand over to Brent and
	// still return something inside the clamp range.
	const (
		s, k = 19500.0, 16000.0
		tt   = 1.0 / 252.0
	)
	price := TheoPrice(s, k, tt, 0.065, 0, 0.45, true)
	res := ImpliedVol(price, s, k, tt, 0.065, 0, true, 0.20, ivTol, ivMaxIter)
	require.True(t, res.Converged)
	assert.GreaterOrEqual(t, res.IV, MinVolatility)
	assert.LessOrEqual(t, res.IV, MaxVolatility)
	// Price-space agreement is what matters where vega vanishes.
	assert.InDelta(t, price, TheoPrice(s, k, tt, 0.065, 0, res.IV, true), 1e-4)
}

func TestImpliedVolIterationBudgetExhausted(t *testing.T) {
	// One Newton iteration is never enough from a cold guess; the solve
	// must finish through the bracketing fallback and still honor the
	// price-space tolerance, not report a loose result as converged.
	price := TheoPrice(18000, 18000, 30.0/252, 0.065, 0, 0.45, true)
	res := ImpliedVol(price, 18000, 18000, 30.0/252, 0.065, 0, true, 0.20, ivTol, 1)
	require.True(t, res.Converged)
	assert.InDelta(t, price, TheoPrice(18000, 18000, 30.0/252, 0.065, 0, res.IV, true), 1e-6)
	assert.InDelta(t, 0.45, res.IV, 1e-3)
}

func TestImpliedVolRejectsBadInput(t *testing.T) {
	res := ImpliedVol(150, 18000, 18000, 0, 0.065, 0, true, 0, ivTol, ivMaxIter)
	assert.False(t, res.Converged)
	assert.True(t, math.IsNaN(res.FinalError))
}

func TestSolveBrentMatchesNewton(t *testing.T) {
	price := TheoPrice(18000, 18300, 42.0/252, 0.065, 0, 0.28, true)
	newton := ImpliedVol(price, 18000, 18300, 42.0/252, 0.065, 0, true, 0.20, ivTol, ivMaxIter)
	brent := SolveBrent(price, 18000, 18300, 42.0/252, 0.065, 0, true)
	require.True(t, newton.Converged)
	require.True(t, brent.Converged)
	assert.InDelta(t, newton.IV, brent.IV, 1e-4)
}

func TestSolveBrentUnattainablePrice(t *testing.T) {
	// More expensive than the K-discounted upper bound at 500% vol.
	res := SolveBrent(30000, 18000, 18000, 10.0/252, 0.065, 0, true)
	assert.False(t, res.Converged)
}

func TestInitialGuessFromMoneyness(t *testing.T) {
	atm := InitialGuessFromMoneyness(18000, 18000, 60.0/252)
	assert.InDelta(t, 0.20, atm, 1e-9)

	farOTM := InitialGuessFromMoneyness(18000, 24000, 60.0/252)
	assert.Greater(t, farOTM, atm)

	nearExpiry := InitialGuessFromMoneyness(18000, 18000, 3.0/252)
	assert.Greater(t, nearExpiry, atm)

	// Always inside the solver clamp.
	extreme := InitialGuessFromMoneyness(18000, 100000, 1.0/252)
	assert.LessOrEqual(t, extreme, MaxVolatility)
	assert.GreaterOrEqual(t, extreme, MinVolatility)
}
