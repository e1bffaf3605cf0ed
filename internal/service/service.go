// Package service orchestrates real-time greeks calculation: it admits
// ticks through a per-token throttle, shards work across calculation
// workers, caches the latest result per token and fans results out to
// subscribers.
package service

import (
	"context"
	"log"
	"sync"
	"sync/atomic"

	"Options_Analytics/internal/calendar"
	"Options_Analytics/internal/config"
	"Options_Analytics/internal/data"
	"Options_Analytics/internal/master"
	"Options_Analytics/internal/model"
)

const shardQueueDepth = 1024

// CalcFailure reports one calculation that could not produce greeks.
type CalcFailure struct {
	Token    uint32
	Reason   string
	AtMicros int64
}

// tokenState is the per-option mutable state. The snapshot slot has a
// single writer (the shard worker owning the token); pending and
// lastTradeMicros are written from the feed path.
type tokenState struct {
	pending         atomic.Bool
	expired         atomic.Bool
	lastTradeMicros atomic.Int64
	snap            atomic.Value // model.CacheSnapshot
}

func (st *tokenState) snapshot() (model.CacheSnapshot, bool) {
	v := st.snap.Load()
	if v == nil {
		return model.CacheSnapshot{}, false
	}
	return v.(model.CacheSnapshot), true
}

// job is one unit of work for a shard worker. batch carries inputs shared
// across a strike ladder so the worker skips per-token spot/expiry work.
type job struct {
	token uint32
	batch *batchInputs
}

// batchInputs holds the spot and year fraction resolved once for a group
// of options on the same underlying and expiry.
type batchInputs struct {
	spot      float64
	spotSrc   data.SpotSource
	yearsLeft float64
}

// Service is the greeks calculation orchestrator.
type Service struct {
	cfg atomic.Pointer[config.Config]

	master master.Lookup
	cal    *calendar.Calendar
	fo     *data.PriceStore // derivatives segment: options + futures
	cm     *data.PriceStore // cash segment: equities + index values

	states sync.Map // uint32 -> *tokenState

	shards  []chan job
	stop    chan struct{}
	wg      sync.WaitGroup
	runMu   sync.RWMutex
	running bool

	subMu       sync.RWMutex
	greeksSubs  []chan model.GreeksResult
	failureSubs []chan CalcFailure

	// nowMicros is swappable in tests for deterministic throttling.
	nowMicros func() int64

	logMu      sync.Mutex
	lastLogged map[uint32]int64
}

// New wires a Service. Stores are shared with the ingestion adapters;
// the master is read-only from here.
func New(cfg config.Config, lookup master.Lookup, cal *calendar.Calendar, fo, cm *data.PriceStore) *Service {
	s := &Service{
		master:     lookup,
		cal:        cal,
		fo:         fo,
		cm:         cm,
		stop:       make(chan struct{}),
		nowMicros:  microNow,
		lastLogged: make(map[uint32]int64),
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	s.cfg.Store(&cfg)
	s.shards = make([]chan job, cfg.Workers)
	for i := range s.shards {
		s.shards[i] = make(chan job, shardQueueDepth)
	}
	return s
}

func (s *Service) config() *config.Config { return s.cfg.Load() }

// Reconfigure swaps the active configuration. In-flight calculations
// finish under the old value; the next admission sees the new one.
// Worker count is fixed at construction and ignored here.
func (s *Service) Reconfigure(cfg config.Config) {
	old := s.config()
	cfg.Workers = old.Workers
	s.cfg.Store(&cfg)
	log.Printf("[INFO] greeks config replaced: enabled=%v rate=%.4f throttle=%dus threshold=%.4f",
		cfg.Enabled, cfg.RiskFreeRate, cfg.ThrottleIntervalMicros, cfg.PriceChangeThreshold)
}

// Start launches the shard workers and the periodic triggers.
func (s *Service) Start() {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running {
		return
	}
	s.running = true
	for _, ch := range s.shards {
		s.wg.Add(1)
		go s.worker(ch)
	}
	s.wg.Add(2)
	go s.timeTickLoop()
	go s.illiquidLoop()
	log.Printf("[INFO] greeks service started with %d workers", len(s.shards))
}

// Stop blocks new admissions, lets queued work drain, and waits for the
// workers up to ctx's deadline.
func (s *Service) Stop(ctx context.Context) error {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return nil
	}
	s.running = false
	close(s.stop)
	for _, ch := range s.shards {
		close(ch)
	}
	s.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		log.Println("[INFO] greeks service stopped")
		return nil
	case <-ctx.Done():
		log.Println("[WARN] greeks service stop timed out with work in flight")
		return ctx.Err()
	}
}

// CachedGreeks returns the latest snapshot for one token.
func (s *Service) CachedGreeks(token uint32) (model.CacheSnapshot, bool) {
	v, ok := s.states.Load(token)
	if !ok {
		return model.CacheSnapshot{}, false
	}
	return v.(*tokenState).snapshot()
}

// AllCached copies out every token's latest snapshot.
func (s *Service) AllCached() []model.CacheSnapshot {
	var out []model.CacheSnapshot
	s.states.Range(func(_, v any) bool {
		if snap, ok := v.(*tokenState).snapshot(); ok {
			out = append(out, snap)
		}
		return true
	})
	return out
}

// ClearCache drops all cached results and per-token state. Tokens start
// from a clean first-calculation admission on their next tick.
func (s *Service) ClearCache() {
	s.states.Range(func(k, _ any) bool {
		s.states.Delete(k)
		return true
	})
	log.Println("[INFO] greeks cache cleared")
}

// SubscribeGreeks registers a consumer of completed results. Slow
// consumers miss results rather than stalling the workers.
func (s *Service) SubscribeGreeks(buf int) <-chan model.GreeksResult {
	ch := make(chan model.GreeksResult, buf)
	s.subMu.Lock()
	s.greeksSubs = append(s.greeksSubs, ch)
	s.subMu.Unlock()
	return ch
}

// SubscribeFailures registers a consumer of calculation failures.
func (s *Service) SubscribeFailures(buf int) <-chan CalcFailure {
	ch := make(chan CalcFailure, buf)
	s.subMu.Lock()
	s.failureSubs = append(s.failureSubs, ch)
	s.subMu.Unlock()
	return ch
}

func (s *Service) publishGreeks(res model.GreeksResult) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.greeksSubs {
		select {
		case ch <- res:
		default:
		}
	}
}

func (s *Service) publishFailure(f CalcFailure) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()
	for _, ch := range s.failureSubs {
		select {
		case ch <- f:
		default:
		}
	}
}

func (s *Service) state(token uint32) *tokenState {
	if v, ok := s.states.Load(token); ok {
		return v.(*tokenState)
	}
	v, _ := s.states.LoadOrStore(token, &tokenState{})
	return v.(*tokenState)
}

// storeFor picks the price store for an exchange segment.
func (s *Service) storeFor(segment int) *data.PriceStore {
	switch segment {
	case model.SegmentNSEFO, model.SegmentBSEFO:
		return s.fo
	}
	return s.cm
}

func (s *Service) resolver(cfg *config.Config) data.UnderlyingResolver {
	return data.UnderlyingResolver{
		Master:       s.master,
		Derivatives:  s.fo,
		Cash:         s.cm,
		PreferFuture: cfg.BasePriceMode != "cash",
	}
}

// logThrottled emits at most one log line per token per minute; per-tick
// problems (unknown tokens, expired strikes) otherwise flood the log.
func (s *Service) logThrottled(token uint32, format string, args ...any) {
	const logIntervalMicros = 60_000_000
	now := s.nowMicros()
	s.logMu.Lock()
	last, seen := s.lastLogged[token]
	if seen && now-last < logIntervalMicros {
		s.logMu.Unlock()
		return
	}
	s.lastLogged[token] = now
	s.logMu.Unlock()
	log.Printf(format, args...)
}
