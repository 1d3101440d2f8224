// Copyright 2025 Takhin Data, Inc.

package throttle

import (
	"sync"
	"time"

	"github.com/streamcap/throttle/pkg/platform"
)

// Metrics is the reading a Sampler reports to its observer each time it
// fires.
type Metrics struct {
	AverageBytesPerSecond float64
	Utilization           float64
}

// Sampler is a periodic observer that maintains a sliding window of
// recent throughput deltas and derives an average bytes/second and a
// utilization ratio against the group's configured budget. It runs for
// the lifetime of the group, independent of the tick clock: it samples
// Group.totalBytesProcessed whether or not any throttle is in-flight.
type Sampler struct {
	group *Group

	mu       sync.Mutex
	window   []uint64
	lastSeen uint64
	observer func(Metrics)

	ticker platform.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
}

func newSampler(group *Group) *Sampler {
	return &Sampler{group: group}
}

func (s *Sampler) setObserver(fn func(Metrics)) {
	s.mu.Lock()
	s.observer = fn
	s.mu.Unlock()
}

// start begins the sampler's periodic timer.
func (s *Sampler) start() {
	cfg := s.group.ConfigSnapshot()
	period := time.Duration(cfg.ThroughputSampleIntervalMs) * time.Millisecond
	if period <= 0 {
		period = time.Second
	}

	s.ticker = s.group.clock.NewTicker(period)
	s.stop = make(chan struct{})

	s.wg.Add(1)
	go s.run()
}

func (s *Sampler) run() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			s.ticker.Stop()
			return
		case <-s.ticker.C():
			s.fire()
		}
	}
}

// fire pushes the latest delta into the window, trims it to size, and
// reports the resulting average throughput and utilization. If the delta
// is zero, totalBytesProcessed is reset on the group to prevent it
// growing without bound on a long-lived, otherwise idle group.
func (s *Sampler) fire() {
	total := s.group.TotalBytesProcessed()

	s.mu.Lock()
	delta := total - s.lastSeen
	s.lastSeen = total
	s.window = append(s.window, delta)

	cfg := s.group.ConfigSnapshot()
	if len(s.window) > cfg.ThroughputSampleSize {
		s.window = s.window[len(s.window)-cfg.ThroughputSampleSize:]
	}

	var sum uint64
	for _, v := range s.window {
		sum += v
	}
	mean := float64(sum) / float64(len(s.window))
	intervalSeconds := float64(cfg.ThroughputSampleIntervalMs) / 1000
	averageBytesPerSecond := mean / intervalSeconds

	utilization := 0.0
	if cfg.BytesPerSecond > 0 {
		utilization = averageBytesPerSecond / float64(cfg.BytesPerSecond)
		if utilization > 1 {
			utilization = 1
		}
	}
	observer := s.observer
	s.mu.Unlock()

	if delta == 0 {
		s.group.mu.Lock()
		s.group.totalBytesProcessed = 0
		s.group.mu.Unlock()
		s.mu.Lock()
		s.lastSeen = 0
		s.mu.Unlock()
	}

	if observer != nil {
		observer(Metrics{
			AverageBytesPerSecond: averageBytesPerSecond,
			Utilization:           utilization,
		})
	}
}

// stop halts the sampler's timer and waits for its goroutine to exit.
func (s *Sampler) stop() {
	close(s.stop)
	s.wg.Wait()
}
