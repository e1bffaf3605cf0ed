package service

import (
	"math"
	"time"

	"Options_Analytics/internal/config"
	"Options_Analytics/internal/engine"
	"Options_Analytics/internal/model"
)

func microNow() int64 { return time.Now().UnixMicro() }

func (s *Service) fail(token uint32, now int64, reason string) {
	s.publishFailure(CalcFailure{Token: token, Reason: reason, AtMicros: now})
	s.logThrottled(token, "[WARN] greeks calc skipped for token %d: %s", token, reason)
}

// OnPriceUpdate is the single entry point for ticks. The quote is stored
// unconditionally so workers always price against the freshest market;
// admission decides separately whether anything recalculates now.
func (s *Service) OnPriceUpdate(u model.PriceUpdate) {
	s.storeFor(u.ExchangeSegment).Apply(u)

	cfg := s.config()
	if !cfg.Enabled {
		return
	}

	if c, ok := s.master.ByToken(u.Token); ok {
		s.onOptionTick(cfg, c, u)
		return
	}

	// Futures ticks act as a tick on their underlying.
	undToken := u.Token
	if und, ok := s.master.UnderlyingOfFuture(u.Token); ok {
		undToken = und
	}
	if opts := s.master.OptionsFor(undToken); len(opts) > 0 {
		s.onUnderlyingTick(cfg, undToken, u.LastTradedPrice, opts)
	}
	// Anything else is an instrument we hold no options on; its price is
	// stored and nothing recalculates.
}

func (s *Service) onOptionTick(cfg *config.Config, c *model.OptionContract, u model.PriceUpdate) {
	st := s.state(u.Token)
	st.lastTradeMicros.Store(u.TimestampMicros)
	if st.expired.Load() {
		return
	}
	if !s.admit(cfg, st, u.LastTradedPrice, 0, false) {
		return
	}
	s.enqueue(job{token: u.Token})
}

// onUnderlyingTick fans an underlying move out to its option chain. Due
// tokens sharing an expiry are batched so spot and time to expiry resolve
// once per strike ladder instead of once per strike.
func (s *Service) onUnderlyingTick(cfg *config.Config, undToken uint32, undPrice float64, opts []uint32) {
	var due []uint32
	for _, tok := range opts {
		st := s.state(tok)
		if st.expired.Load() {
			continue
		}
		if s.admit(cfg, st, 0, undPrice, false) {
			due = append(due, tok)
		}
	}
	s.dispatch(cfg, due)
}

// admit applies the two-part throttle: a minimum interval between
// calculations per token, and a minimum relative price move. force skips
// the price-move half only. A token with no prior calculation is always
// admitted. Zero prices skip their half of the move check.
func (s *Service) admit(cfg *config.Config, st *tokenState, optPrice, undPrice float64, force bool) bool {
	snap, ok := st.snapshot()
	if !ok {
		return true
	}
	if s.nowMicros()-snap.LastCalculationTimeMicros < cfg.ThrottleIntervalMicros {
		return false
	}
	if force {
		return true
	}
	return priceMoved(optPrice, snap.LastPrice, cfg.PriceChangeThreshold) ||
		priceMoved(undPrice, snap.LastUnderlyingPrice, cfg.PriceChangeThreshold)
}

func priceMoved(cur, prev, threshold float64) bool {
	if cur <= 0 {
		return false
	}
	if prev <= 0 {
		return true
	}
	return math.Abs(cur-prev)/prev > threshold
}

// chainKey identifies one strike ladder: shared inputs are only valid
// across contracts on the same underlying and expiry.
type chainKey struct {
	underlying uint32
	expiryUnix int64
}

// dispatch queues a set of due option tokens, grouping each
// (underlying, expiry) ladder into a shared-input batch when batching is
// on. The due list may span underlyings (time tick, illiquid refresh,
// force recalculation); spot resolves once per ladder, never across them.
func (s *Service) dispatch(cfg *config.Config, due []uint32) {
	if len(due) == 0 {
		return
	}
	if !cfg.BatchEnabled {
		for _, tok := range due {
			s.enqueue(job{token: tok})
		}
		return
	}

	now := time.UnixMicro(s.nowMicros())
	res := s.resolver(cfg)
	groups := make(map[chainKey]*batchInputs)
	for _, tok := range due {
		c, ok := s.master.ByToken(tok)
		if !ok {
			continue
		}
		key := chainKey{underlying: c.UnderlyingToken, expiryUnix: c.Expiry.Unix()}
		bi, seen := groups[key]
		if !seen {
			if spot, src, found := res.Resolve(c); found {
				bi = &batchInputs{
					spot:      spot,
					spotSrc:   src,
					yearsLeft: s.cal.YearsToExpiry(c.Expiry, now),
				}
			}
			groups[key] = bi // nil marks a ladder with no spot yet
		}
		if bi == nil {
			continue
		}
		s.enqueue(job{token: tok, batch: bi})
	}
}

// enqueue hands a job to the token's shard. Each token always maps to the
// same shard, so its cache entry has a single writer. The pending flag
// collapses bursts: one queued calculation absorbs all ticks that arrive
// before it runs.
func (s *Service) enqueue(j job) {
	st := s.state(j.token)
	if !st.pending.CompareAndSwap(false, true) {
		return
	}
	s.runMu.RLock()
	defer s.runMu.RUnlock()
	if !s.running {
		st.pending.Store(false)
		return
	}
	shard := s.shards[int(j.token)%len(s.shards)]
	select {
	case shard <- j:
	default:
		st.pending.Store(false)
		s.logThrottled(j.token, "[WARN] greeks queue full, dropped token %d", j.token)
	}
}

func (s *Service) worker(ch chan job) {
	defer s.wg.Done()
	for j := range ch {
		// Clear before computing: a tick landing mid-calculation queues a
		// fresh pass against the newer price.
		s.state(j.token).pending.Store(false)
		s.calculate(j)
	}
}

func (s *Service) calculate(j job) {
	cfg := s.config()
	now := s.nowMicros()

	c, ok := s.master.ByToken(j.token)
	if !ok {
		s.logThrottled(j.token, "[WARN] no contract metadata for token %d, tick dropped", j.token)
		s.publishFailure(CalcFailure{Token: j.token, Reason: "missing contract metadata", AtMicros: now})
		return
	}

	quote, ok := s.storeFor(c.ExchangeSegment).Last(j.token)
	if !ok || quote.LastTradedPrice <= 0 {
		s.fail(j.token, now, "no traded price")
		return
	}

	var spot, yearsLeft float64
	if j.batch != nil {
		spot, yearsLeft = j.batch.spot, j.batch.yearsLeft
	} else {
		res := s.resolver(cfg)
		var found bool
		spot, _, found = res.Resolve(c)
		if !found {
			s.fail(j.token, now, "underlying price unavailable")
			return
		}
		yearsLeft = s.cal.YearsToExpiry(c.Expiry, time.UnixMicro(now))
	}

	st := s.state(j.token)
	if yearsLeft <= 0 {
		st.expired.Store(true)
		s.fail(j.token, now, "contract expired")
		return
	}

	prevSnap, hasPrev := st.snapshot()
	var prev *model.GreeksResult
	guess := cfg.IVInitialGuess
	if hasPrev {
		prev = &prevSnap.Result
		if prevSnap.Result.Converged && prevSnap.Result.ImpliedVolatility > 0 {
			// Warm start: IV moves little tick to tick.
			guess = prevSnap.Result.ImpliedVolatility
		}
	}

	result := engine.Compute(engine.Inputs{
		Contract:      c,
		Quote:         quote,
		Spot:          spot,
		TimeToExpiry:  yearsLeft,
		RiskFreeRate:  cfg.RiskFreeRate,
		DividendYield: cfg.DividendYield,
		InitialGuess:  guess,
		Tolerance:     cfg.IVTolerance,
		MaxIterations: cfg.IVMaxIterations,
		NowMicros:     now,
	}, prev)

	// Stale-overwrite guard. Sharding already serializes writers per
	// token; this protects against a rewound clock.
	if hasPrev && prevSnap.Result.ComputedAtMicros > result.ComputedAtMicros {
		return
	}

	snap := model.CacheSnapshot{
		Result:                    result,
		LastPrice:                 quote.LastTradedPrice,
		LastUnderlyingPrice:       spot,
		LastCalculationTimeMicros: now,
		LastTradeTimeMicros:       st.lastTradeMicros.Load(),
	}
	if !result.Converged && hasPrev && prevSnap.Result.Converged {
		// The cache keeps the last converged greeks; only the throttle
		// bookkeeping advances on a failed solve.
		snap.Result = prevSnap.Result
	}
	st.snap.Store(snap)

	if result.Converged {
		s.publishGreeks(result)
		return
	}
	s.publishGreeks(result) // carries previous greeks with Converged=false
	s.publishFailure(CalcFailure{Token: j.token, Reason: "iv solve did not converge", AtMicros: now})
	s.logThrottled(j.token, "[WARN] iv solve failed for token %d (price=%.2f spot=%.2f)",
		j.token, quote.LastTradedPrice, spot)
}

// ForceRecalculateAll re-queues every known token regardless of throttle
// state. Used after a configuration change.
func (s *Service) ForceRecalculateAll() {
	cfg := s.config()
	var due []uint32
	s.states.Range(func(k, v any) bool {
		if !v.(*tokenState).expired.Load() {
			due = append(due, k.(uint32))
		}
		return true
	})
	s.dispatch(cfg, due)
}

// timeTickLoop refreshes all cached tokens on a fixed period so theta
// decay shows up even when prices stand still. The interval half of the
// throttle still applies; only the price-move half is bypassed.
func (s *Service) timeTickLoop() {
	defer s.wg.Done()
	cfg := s.config()
	ticker := time.NewTicker(time.Duration(cfg.TimeTickIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.refreshCached(func(st *tokenState) bool { return true })
		}
	}
}

// illiquidLoop refreshes tokens whose own trades have gone quiet, so
// their greeks still track the underlying.
func (s *Service) illiquidLoop() {
	defer s.wg.Done()
	cfg := s.config()
	ticker := time.NewTicker(time.Duration(cfg.IlliquidUpdateIntervalSec) * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			threshold := int64(s.config().IlliquidThresholdSec) * 1_000_000
			now := s.nowMicros()
			s.refreshCached(func(st *tokenState) bool {
				return now-st.lastTradeMicros.Load() > threshold
			})
		}
	}
}

// refreshCached force-admits every previously calculated token passing
// the filter.
func (s *Service) refreshCached(keep func(*tokenState) bool) {
	cfg := s.config()
	if !cfg.Enabled {
		return
	}
	var due []uint32
	s.states.Range(func(k, v any) bool {
		st := v.(*tokenState)
		if st.expired.Load() {
			return true
		}
		if _, ok := st.snapshot(); !ok {
			return true
		}
		if keep(st) && s.admit(cfg, st, 0, 0, true) {
			due = append(due, k.(uint32))
		}
		return true
	})
	s.dispatch(cfg, due)
}
