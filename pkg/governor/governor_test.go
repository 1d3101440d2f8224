// Copyright 2025 Takhin Data, Inc.

package governor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamcap/throttle/pkg/throttle"
)

func newTestGroup(t *testing.T, bytesPerSecond int) *throttle.Group {
	t.Helper()
	g, err := throttle.NewGroup(throttle.Config{
		BytesPerSecond:             bytesPerSecond,
		IsThrottled:                true,
		TicksPerSecond:             10,
		MaxBufferSize:              1024 * 1024,
		ThroughputSampleIntervalMs: 100,
		ThroughputSampleSize:       5,
	})
	require.NoError(t, err)
	t.Cleanup(g.Destroy)
	return g
}

func TestGovernorStartWiresObserverEvenWhenDisabled(t *testing.T) {
	g := newTestGroup(t, 1000)
	gov := New(Config{Enabled: false}, g, nil)
	gov.mu.Lock()
	gov.utilization = -1
	gov.mu.Unlock()
	gov.Start()
	defer gov.Stop()

	assert.Equal(t, 1000, gov.CurrentRate())

	// The sampler fires every 100ms; once wired, its observer overwrites
	// the sentinel with the sampled utilization.
	assert.Eventually(t, func() bool {
		gov.mu.Lock()
		defer gov.mu.Unlock()
		return gov.utilization >= 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestGovernorAdjustClampsToConfiguredRange(t *testing.T) {
	g := newTestGroup(t, 1000)
	cfg := Config{
		Enabled:           true,
		CheckInterval:     10 * time.Millisecond,
		MinRate:           500,
		MaxRate:           2000,
		TargetUtilization: 0.5,
		AdjustmentStep:    0.5,
	}
	gov := New(cfg, g, nil)

	gov.mu.Lock()
	gov.utilization = 0.99
	gov.mu.Unlock()

	gov.adjust()
	assert.LessOrEqual(t, gov.CurrentRate(), cfg.MaxRate)
	assert.GreaterOrEqual(t, gov.CurrentRate(), cfg.MinRate)

	// A second step up would reach 1500 * 1.5 = 2250, past MaxRate.
	gov.adjust()
	assert.Equal(t, cfg.MaxRate, gov.CurrentRate())
}
