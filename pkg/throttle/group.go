// Copyright 2025 Takhin Data, Inc.

package throttle

import (
	"math"
	"sync"
	"time"

	"github.com/streamcap/throttle/pkg/bufpool"
	"github.com/streamcap/throttle/pkg/logger"
	"github.com/streamcap/throttle/pkg/platform"
)

// Group is the registry of throttles, bookkeeper of the in-flight set,
// and owner of the tick clock. On each tick it computes every in-flight
// throttle's byte quota and invokes it. A throttle belongs to exactly one
// Group for its lifetime; destroying the group destroys every throttle.
type Group struct {
	mu  sync.Mutex
	cfg Config

	clock platform.Clock
	pool  *bufpool.Pool
	log   *logger.Logger

	throttles []*Throttle
	inFlight  []*Throttle

	ticker       platform.Ticker
	tickStop     chan struct{}
	tickIndex    int
	secondIndex  int
	lastTickTime int64 // monotonic ms; -1 means no tick has run yet

	totalBytesProcessed uint64

	sampler *Sampler

	destroyed bool
}

// Option configures a Group at construction time. Tests use WithClock to
// inject a mock clock so tick timing is deterministic.
type Option func(*Group)

// WithClock overrides the monotonic clock the group schedules ticks
// against. Production code should not need this; it exists for tests.
func WithClock(c platform.Clock) Option {
	return func(g *Group) { g.clock = c }
}

// WithBufferPool overrides the pool throttles draw pending buffers from.
func WithBufferPool(p *bufpool.Pool) Option {
	return func(g *Group) { g.pool = p }
}

// WithLogger overrides the group's logger.
func WithLogger(l *logger.Logger) Option {
	return func(g *Group) { g.log = l }
}

// NewGroup validates cfg and returns a new, empty Group with its sampler
// already running. The tick clock only starts once the first throttle
// becomes in-flight.
func NewGroup(cfg Config, opts ...Option) (*Group, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	g := &Group{
		cfg:          cfg,
		clock:        platform.NewReal(),
		pool:         bufpool.New(),
		log:          logger.Default(),
		lastTickTime: -1,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.sampler = newSampler(g)
	g.sampler.start()

	return g, nil
}

// Configure merges a partial update into the live config. Per the data
// model's invariant, changes take effect no later than the next tick; a
// tick already in progress keeps using the value it read.
func (g *Group) Configure(update ConfigUpdate) error {
	g.mu.Lock()
	merged := g.cfg.merge(update)
	if err := merged.validate(); err != nil {
		g.mu.Unlock()
		return err
	}
	g.cfg = merged
	g.mu.Unlock()
	return nil
}

// ConfigSnapshot returns a copy of the current config.
func (g *Group) ConfigSnapshot() Config {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg
}

// Throttled reports whether the group currently paces emission.
func (g *Group) Throttled() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.IsThrottled
}

func (g *Group) maxBufferSize() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.MaxBufferSize
}

func (g *Group) bytesPerSecondSnapshot() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.BytesPerSecond
}

func (g *Group) bufPool() *bufpool.Pool { return g.pool }

// TotalBytesProcessed returns the running count read by the sampler.
func (g *Group) TotalBytesProcessed() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.totalBytesProcessed
}

// InFlightCount reports how many throttles are currently in-flight.
func (g *Group) InFlightCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}

// SetOnThroughputMetrics registers the sampler's observer callback.
func (g *Group) SetOnThroughputMetrics(fn func(Metrics)) {
	g.sampler.setObserver(fn)
}

// CreateThrottle returns a new throttle attached to the group. contentLength
// is a hint for initial buffer sizing; wantsBackpressure, if true, makes
// the throttle's Write calls block until the written bytes have actually
// been emitted downstream.
func (g *Group) CreateThrottle(contentLength int, wantsBackpressure bool) *Throttle {
	g.mu.Lock()
	cfg := g.cfg
	t := newThrottle(g, contentLength, wantsBackpressure, cfg.BytesPerSecond, cfg.MaxBufferSize)
	g.throttles = append(g.throttles, t)
	g.mu.Unlock()
	return t
}

// Destroy tears down every throttle, stops the sampler, and stops the
// tick clock. It is idempotent.
func (g *Group) Destroy() {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return
	}
	g.destroyed = true
	throttles := append([]*Throttle(nil), g.throttles...)
	stop := g.tickStop
	g.ticker = nil
	g.tickStop = nil
	g.mu.Unlock()

	if stop != nil {
		close(stop)
	}
	g.sampler.stop()

	for _, t := range throttles {
		t.Abort()
	}
}

// onStart appends t to the in-flight set and starts the clock if the set
// went from empty to one.
func (g *Group) onStart(t *Throttle) {
	g.mu.Lock()
	g.inFlight = append(g.inFlight, t)
	shouldStart := len(g.inFlight) == 1
	g.mu.Unlock()

	if shouldStart {
		g.startClock()
	}
}

// onStop removes t from the in-flight set and stops the clock if the set
// becomes empty.
func (g *Group) onStop(t *Throttle) {
	g.mu.Lock()
	idx := indexOfThrottle(g.inFlight, t)
	if idx < 0 {
		g.mu.Unlock()
		return
	}
	g.inFlight = removeAt(g.inFlight, idx)
	shouldStop := len(g.inFlight) == 0
	g.mu.Unlock()

	if shouldStop {
		g.stopClock()
	}
}

// onDestroy removes t from the group's full throttle registry.
func (g *Group) onDestroy(t *Throttle) {
	g.mu.Lock()
	idx := indexOfThrottle(g.throttles, t)
	if idx >= 0 {
		g.throttles = removeAt(g.throttles, idx)
	}
	g.mu.Unlock()
}

// startClock fires every tickDurationMs/5, the 5x oversampling spec §4.4
// calls for to tighten the actual phase against the intended one on
// noisy host timers.
func (g *Group) startClock() {
	g.mu.Lock()
	if g.ticker != nil {
		g.mu.Unlock()
		return
	}
	period := time.Duration(g.cfg.TickDurationMs()) * time.Millisecond / 5
	if period <= 0 {
		period = time.Millisecond
	}
	ticker := g.clock.NewTicker(period)
	stop := make(chan struct{})
	g.ticker = ticker
	g.tickStop = stop
	g.mu.Unlock()

	go g.runClock(ticker, stop)
}

func (g *Group) runClock(ticker platform.Ticker, stop chan struct{}) {
	for {
		select {
		case <-stop:
			ticker.Stop()
			return
		case <-ticker.C():
			g.tick()
		}
	}
}

func (g *Group) stopClock() {
	g.mu.Lock()
	if g.ticker == nil {
		g.mu.Unlock()
		return
	}
	stop := g.tickStop
	g.ticker = nil
	g.tickStop = nil
	g.lastTickTime = -1
	g.tickIndex = 0
	g.mu.Unlock()

	close(stop)
}

// tick is a no-op unless enough real time has elapsed since the last one
// (when throttled); otherwise it computes each in-flight throttle's
// rotated quota for this tick and invokes process on it.
func (g *Group) tick() {
	g.mu.Lock()
	if g.destroyed {
		g.mu.Unlock()
		return
	}

	now := g.clock.Now().UnixMilli()
	var elapsed int64
	if g.lastTickTime != -1 {
		elapsed = now - g.lastTickTime
	}
	tickDuration := int64(g.cfg.TickDurationMs())

	if g.cfg.IsThrottled && g.lastTickTime != -1 && elapsed < tickDuration {
		g.mu.Unlock()
		return
	}

	delayMultiplier := int64(1)
	if tickDuration > 0 {
		if dm := elapsed / tickDuration; dm > delayMultiplier {
			delayMultiplier = dm
		}
	}

	// Snapshot inFlight per §5's cancellation note: a destroy mid-loop
	// (e.g. triggered from a downstream callback) must not corrupt the
	// iteration, so iterate a point-in-time copy rather than the live
	// slice.
	inFlight := append([]*Throttle(nil), g.inFlight...)
	count := len(inFlight)
	rot := 0
	if count > 0 {
		rot = g.secondIndex % count
	}
	bytesPerSecond := g.cfg.BytesPerSecond
	ticksPerSecond := g.cfg.TicksPerSecond
	tickIndex := g.tickIndex
	throttled := g.cfg.IsThrottled
	g.mu.Unlock()

	var totalEmitted uint64
	for i, th := range inFlight {
		if th.downstreamDetached() {
			th.GracefulAbort()
			continue
		}

		var quota int
		if throttled && bytesPerSecond > 0 && count > 0 {
			// Rotation subtracts rather than adds: with a stable in-flight
			// set, the remainder slot a throttle occupies must cycle
			// backwards through the partition each second for the
			// group's multi-second fairness guarantee to land exactly on
			// bytesPerSecond per throttle over |inFlight| seconds.
			j := ((i-rot)%count + count) % count
			perSecond := partitionedIntegerPart(bytesPerSecond, count, j)
			quota = partitionedIntegerPart(perSecond, ticksPerSecond, tickIndex) * int(delayMultiplier)
		} else {
			// Unthrottled, or the global budget is zero: drain without
			// limit, per the "0 or isThrottled=false means unbounded"
			// config invariant.
			quota = math.MaxInt
		}

		totalEmitted += uint64(th.process(quota))
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.destroyed {
		return
	}
	g.totalBytesProcessed += totalEmitted

	if len(g.inFlight) == 0 {
		// A throttle completed mid-loop and emptied the set; onStop
		// already stopped the clock, so counters stay put (§4.4 step 6).
		return
	}

	g.tickIndex++
	if g.tickIndex == g.cfg.TicksPerSecond {
		g.tickIndex = 0
		g.secondIndex++
	}
	if g.lastTickTime == -1 {
		g.lastTickTime = now
	} else {
		g.lastTickTime += elapsed
	}
}

func indexOfThrottle(list []*Throttle, t *Throttle) int {
	for i, candidate := range list {
		if candidate == t {
			return i
		}
	}
	return -1
}

func removeAt(list []*Throttle, idx int) []*Throttle {
	return append(list[:idx:idx], list[idx+1:]...)
}
