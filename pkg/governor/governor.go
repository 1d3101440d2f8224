// Copyright 2025 Takhin Data, Inc.

// Package governor adaptively retunes a Group's shared byte budget from
// the throughput sampler's observed utilization. It is adapted from
// Takhin's per-producer/per-consumer dynamicAdjustmentLoop, collapsed
// onto the single shared BytesPerSecond budget a Group coordinates
// across all of its in-flight throttles.
package governor

import (
	"sync"
	"time"

	"github.com/streamcap/throttle/pkg/logger"
	"github.com/streamcap/throttle/pkg/throttle"
)

// Config tunes the governor's adjustment behaviour.
type Config struct {
	Enabled            bool    `koanf:"enabled"`
	CheckInterval      time.Duration `koanf:"check_interval"`
	MinRate            int     `koanf:"min_rate"`
	MaxRate            int     `koanf:"max_rate"`
	TargetUtilization  float64 `koanf:"target_utilization"`
	AdjustmentStep     float64 `koanf:"adjustment_step"`
}

// DefaultConfig mirrors Takhin's throttle.Config dynamic-adjustment
// defaults, renamed onto the single shared budget.
func DefaultConfig() Config {
	return Config{
		Enabled:           false,
		CheckInterval:     5 * time.Second,
		MinRate:           1024 * 1024,
		MaxRate:           1024 * 1024 * 1024,
		TargetUtilization: 0.8,
		AdjustmentStep:    0.1,
	}
}

// Governor watches a Group's throughput sampler and nudges its shared
// BytesPerSecond budget toward a target utilization, the way Takhin's
// dynamicAdjustmentLoop nudged producer/consumer rate.Limiter rates
// toward their own target.
type Governor struct {
	cfg   Config
	group *throttle.Group
	log   *logger.Logger

	mu          sync.Mutex
	currentRate int
	utilization float64

	stop chan struct{}
	wg   sync.WaitGroup
}

// New attaches a Governor to group. Call Start to begin adjusting.
func New(cfg Config, group *throttle.Group, log *logger.Logger) *Governor {
	if log == nil {
		log = logger.Default()
	}
	return &Governor{
		cfg:         cfg,
		group:       group,
		log:         log,
		currentRate: group.ConfigSnapshot().BytesPerSecond,
		stop:        make(chan struct{}),
	}
}

// Start registers the sampler observer and, if enabled, begins the
// periodic adjustment loop. Safe to call even when Enabled is false: the
// observer is still wired so metrics remain available to callers that
// want to watch utilization without enabling auto-adjustment.
func (g *Governor) Start() {
	g.group.SetOnThroughputMetrics(g.onMetrics)

	if !g.cfg.Enabled {
		return
	}
	g.wg.Add(1)
	go g.loop()
}

// Stop halts the adjustment loop.
func (g *Governor) Stop() {
	if !g.cfg.Enabled {
		return
	}
	close(g.stop)
	g.wg.Wait()
}

func (g *Governor) onMetrics(m throttle.Metrics) {
	g.mu.Lock()
	g.utilization = m.Utilization
	g.mu.Unlock()
}

func (g *Governor) loop() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.adjust()
		}
	}
}

// adjust mirrors Takhin's adjustRates: scale the current rate up or down
// by AdjustmentStep depending on which side of TargetUtilization the
// last sample landed on, clamped to [MinRate, MaxRate].
func (g *Governor) adjust() {
	g.mu.Lock()
	util := g.utilization
	rate := g.currentRate
	if rate <= 0 {
		rate = g.cfg.MinRate
	}

	switch {
	case util > g.cfg.TargetUtilization:
		rate = int(float64(rate) * (1 + g.cfg.AdjustmentStep))
	case util < g.cfg.TargetUtilization*0.5:
		rate = int(float64(rate) * (1 - g.cfg.AdjustmentStep))
	}

	if rate < g.cfg.MinRate {
		rate = g.cfg.MinRate
	}
	if rate > g.cfg.MaxRate {
		rate = g.cfg.MaxRate
	}
	changed := rate != g.currentRate
	g.currentRate = rate
	g.mu.Unlock()

	if !changed {
		return
	}

	if err := g.group.Configure(throttle.ConfigUpdate{BytesPerSecond: &rate}); err != nil {
		g.log.Error("governor: failed to apply adjusted rate", "error", err, "rate", rate)
		return
	}
	g.log.Info("governor: adjusted shared budget", "bytes_per_second", rate, "utilization", util)
}

// CurrentRate returns the governor's last-applied rate.
func (g *Governor) CurrentRate() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.currentRate
}
