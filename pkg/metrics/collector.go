// Copyright 2025 Takhin Data, Inc.

package metrics

import (
	"time"

	"github.com/streamcap/throttle/pkg/governor"
	"github.com/streamcap/throttle/pkg/logger"
	"github.com/streamcap/throttle/pkg/throttle"
)

// Collector periodically samples a Group's config and in-flight state
// into gauges, and subscribes to its throughput sampler for the
// continuously-updated utilization gauge. Adapted from the retrieval
// pack's periodic collector goroutine, narrowed from per-topic-partition
// polling to the single group this process coordinates.
type Collector struct {
	group     *throttle.Group
	gov       *governor.Governor
	logger    *logger.Logger
	stopChan  chan struct{}
	interval  time.Duration
	lastTotal uint64
}

// NewCollector creates a metrics collector for group. gov may be nil if no
// governor is attached.
func NewCollector(group *throttle.Group, gov *governor.Governor, interval time.Duration) *Collector {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Collector{
		group:    group,
		gov:      gov,
		logger:   logger.Default().WithComponent("metrics-collector"),
		stopChan: make(chan struct{}),
		interval: interval,
	}
}

// Start begins periodic polling and wires the throughput sampler's
// observer to update the utilization gauge on every sample.
func (c *Collector) Start() {
	c.group.SetOnThroughputMetrics(func(m throttle.Metrics) {
		ThroughputUtilization.Set(m.Utilization)
	})
	go c.collectLoop()
	c.logger.Info("metrics collector started", "interval", c.interval)
}

// Stop stops the metrics collector.
func (c *Collector) Stop() {
	close(c.stopChan)
	c.logger.Info("metrics collector stopped")
}

func (c *Collector) collectLoop() {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	cfg := c.group.ConfigSnapshot()
	BytesPerSecondConfigured.Set(float64(cfg.BytesPerSecond))
	InFlightStreams.Set(float64(c.group.InFlightCount()))

	total := c.group.TotalBytesProcessed()
	if total < c.lastTotal {
		// The sampler resets the group's counter after an idle interval.
		c.lastTotal = 0
	}
	if total > c.lastTotal {
		BytesProcessedTotal.Add(float64(total - c.lastTotal))
		c.lastTotal = total
	}

	if c.gov != nil {
		GovernorRate.Set(float64(c.gov.CurrentRate()))
	}
}
