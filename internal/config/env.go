package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config is the complete runtime configuration of the analytics core.
// Loaded once at startup and replaced atomically on reconfigure; fields
// are never mutated individually while calculations are in flight.
type Config struct {
	Enabled bool

	// Pricing inputs.
	RiskFreeRate  float64 // RBI repo rate proxy, decimal
	DividendYield float64 // 0 for indices

	// IV solver.
	IVInitialGuess  float64
	IVTolerance     float64
	IVMaxIterations int

	// Throttle.
	ThrottleIntervalMicros int64
	PriceChangeThreshold   float64 // relative, e.g. 0.001 = 0.1%

	// Periodic triggers (seconds).
	TimeTickIntervalSec       int
	IlliquidUpdateIntervalSec int
	IlliquidThresholdSec      int

	// Orchestration.
	BatchEnabled bool
	Workers      int

	// Spot selection: "future" prefers near-month futures, "cash" uses the
	// cash market only.
	BasePriceMode string
}

// Default returns the configuration used when no environment is present.
func Default() Config {
	return Config{
		Enabled:                   true,
		RiskFreeRate:              0.065,
		DividendYield:             0.0,
		IVInitialGuess:            0.20,
		IVTolerance:               1e-6,
		IVMaxIterations:           100,
		ThrottleIntervalMicros:    1_000_000, // 1s between recalcs per token
		PriceChangeThreshold:      0.0005,
		TimeTickIntervalSec:       60,
		IlliquidUpdateIntervalSec: 30,
		IlliquidThresholdSec:      30,
		BatchEnabled:              true,
		Workers:                   4,
		BasePriceMode:             "future",
	}
}

// LoadEnv loads environment variables from the .env file in the project root.
func LoadEnv() {
	if err := godotenv.Load(".env"); err != nil {
		log.Println("[WARN] .env file not found or failed to load")
	} else {
		log.Println("[INFO] .env loaded successfully")
	}
}

// FromEnv builds a Config from GREEKS_* environment variables, falling back
// to Default for anything unset or unparsable.
func FromEnv() Config {
	c := Default()

	c.Enabled = envBool("GREEKS_ENABLED", c.Enabled)
	c.RiskFreeRate = envFloat("GREEKS_RISK_FREE_RATE", c.RiskFreeRate)
	c.DividendYield = envFloat("GREEKS_DIVIDEND_YIELD", c.DividendYield)
	c.IVInitialGuess = envFloat("GREEKS_IV_INITIAL_GUESS", c.IVInitialGuess)
	c.IVTolerance = envFloat("GREEKS_IV_TOLERANCE", c.IVTolerance)
	c.IVMaxIterations = envInt("GREEKS_IV_MAX_ITERATIONS", c.IVMaxIterations)
	c.ThrottleIntervalMicros = envInt64("GREEKS_THROTTLE_MICROS", c.ThrottleIntervalMicros)
	c.PriceChangeThreshold = envFloat("GREEKS_PRICE_CHANGE_THRESHOLD", c.PriceChangeThreshold)
	c.TimeTickIntervalSec = envInt("GREEKS_TIME_TICK_INTERVAL", c.TimeTickIntervalSec)
	c.IlliquidUpdateIntervalSec = envInt("GREEKS_ILLIQUID_UPDATE_INTERVAL", c.IlliquidUpdateIntervalSec)
	c.IlliquidThresholdSec = envInt("GREEKS_ILLIQUID_THRESHOLD", c.IlliquidThresholdSec)
	c.BatchEnabled = envBool("GREEKS_BATCH_ENABLED", c.BatchEnabled)
	c.Workers = envInt("GREEKS_WORKERS", c.Workers)

	if v := strings.ToLower(strings.TrimSpace(os.Getenv("GREEKS_BASE_PRICE_MODE"))); v == "cash" || v == "future" {
		c.BasePriceMode = v
	}

	if c.Workers < 1 {
		c.Workers = 1
	}
	return c
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a bool, using default", key, v)
		return def
	}
	return b
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not an int, using default", key, v)
		return def
	}
	return n
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("[WARN] %s=%q is not an int, using default", key, v)
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a float, using default", key, v)
		return def
	}
	return f
}
