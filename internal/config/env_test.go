package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.True(t, c.Enabled)
	assert.Equal(t, 0.065, c.RiskFreeRate)
	assert.Equal(t, 0.20, c.IVInitialGuess)
	assert.Equal(t, 100, c.IVMaxIterations)
	assert.Equal(t, int64(1_000_000), c.ThrottleIntervalMicros)
	assert.Equal(t, "future", c.BasePriceMode)
	assert.True(t, c.BatchEnabled)
	assert.GreaterOrEqual(t, c.Workers, 1)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("GREEKS_ENABLED", "false")
	t.Setenv("GREEKS_RISK_FREE_RATE", "0.071")
	t.Setenv("GREEKS_IV_MAX_ITERATIONS", "50")
	t.Setenv("GREEKS_THROTTLE_MICROS", "250000")
	t.Setenv("GREEKS_PRICE_CHANGE_THRESHOLD", "0.002")
	t.Setenv("GREEKS_BASE_PRICE_MODE", "CASH")
	t.Setenv("GREEKS_WORKERS", "8")

	c := FromEnv()
	assert.False(t, c.Enabled)
	assert.Equal(t, 0.071, c.RiskFreeRate)
	assert.Equal(t, 50, c.IVMaxIterations)
	assert.Equal(t, int64(250000), c.ThrottleIntervalMicros)
	assert.Equal(t, 0.002, c.PriceChangeThreshold)
	assert.Equal(t, "cash", c.BasePriceMode)
	assert.Equal(t, 8, c.Workers)
}

func TestFromEnvBadValuesFallBack(t *testing.T) {
	t.Setenv("GREEKS_ENABLED", "definitely")
	t.Setenv("GREEKS_RISK_FREE_RATE", "six percent")
	t.Setenv("GREEKS_IV_MAX_ITERATIONS", "many")
	t.Setenv("GREEKS_BASE_PRICE_MODE", "oracle")

	def := Default()
	c := FromEnv()
	assert.Equal(t, def.Enabled, c.Enabled)
	assert.Equal(t, def.RiskFreeRate, c.RiskFreeRate)
	assert.Equal(t, def.IVMaxIterations, c.IVMaxIterations)
	assert.Equal(t, def.BasePriceMode, c.BasePriceMode)
}

func TestFromEnvWorkerFloor(t *testing.T) {
	t.Setenv("GREEKS_WORKERS", "0")
	assert.Equal(t, 1, FromEnv().Workers)

	t.Setenv("GREEKS_WORKERS", "-3")
	assert.Equal(t, 1, FromEnv().Workers)
}
