// Copyright 2025 Takhin Data, Inc.

package throttle

import (
	"bytes"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSamplerReportsUtilizationAgainstBudget(t *testing.T) {
	cfg := Config{
		BytesPerSecond:             100,
		IsThrottled:                true,
		TicksPerSecond:             10,
		MaxBufferSize:              10000,
		ThroughputSampleIntervalMs: 200,
		ThroughputSampleSize:       5,
	}
	g, mock := newTestGroup(t, cfg)

	var mu sync.Mutex
	var readings []Metrics
	g.SetOnThroughputMetrics(func(m Metrics) {
		mu.Lock()
		readings = append(readings, m)
		mu.Unlock()
	})

	th := g.CreateThrottle(0, false)
	_, err := th.Write(bytes.Repeat([]byte{1}, 100))
	require.NoError(t, err)
	require.NoError(t, th.Flush())

	// Drive both the tick clock and the sampler's own timer forward.
	for i := 0; i < 50; i++ {
		mock.Add(20 * time.Millisecond)
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(readings) > 0
	}, 3*time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, r := range readings {
		assert.GreaterOrEqual(t, r.Utilization, 0.0)
		assert.LessOrEqual(t, r.Utilization, 1.0)
	}
}

func TestSamplerResetsCounterOnIdlePeriod(t *testing.T) {
	cfg := defaultTestConfig()
	cfg.ThroughputSampleIntervalMs = 100
	cfg.ThroughputSampleSize = 3
	g, mock := newTestGroup(t, cfg)

	th := g.CreateThrottle(0, false)
	_, err := th.Write(bytes.Repeat([]byte{1}, 10))
	require.NoError(t, err)
	require.NoError(t, th.Flush())

	for i := 0; i < 10; i++ {
		mock.Add(20 * time.Millisecond)
	}
	require.Eventually(t, func() bool {
		select {
		case <-th.Done():
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond)

	// Idle period: no in-flight throttles, sampler keeps firing and
	// should reset totalBytesProcessed rather than let it grow unbounded.
	for i := 0; i < 10; i++ {
		mock.Add(100 * time.Millisecond)
	}
	assert.Equal(t, uint64(0), g.TotalBytesProcessed())
}
