// Copyright 2025 Takhin Data, Inc.

// Package platform abstracts the host-runtime primitives the throttle
// core needs: a monotonic clock with periodic timers, and a duplex byte
// stream connecting a Throttle's producer side to its consumer side.
// Tests substitute a mock clock so tick scheduling is deterministic.
package platform

import (
	"time"

	"github.com/benbjohnson/clock"
)

// Clock is the monotonic time source Group schedules ticks against.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) Ticker
}

// Ticker is a periodic timer that fires on C until Stop is called.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// New wraps a benbjohnson/clock.Clock as a Clock. Pass clock.New() in
// production; pass clock.NewMock() in tests to drive ticks by hand.
func New(underlying clock.Clock) Clock {
	return &realClock{underlying: underlying}
}

// NewReal returns the production Clock, backed by the wall clock.
func NewReal() Clock {
	return New(clock.New())
}

type realClock struct {
	underlying clock.Clock
}

func (c *realClock) Now() time.Time {
	return c.underlying.Now()
}

func (c *realClock) NewTicker(d time.Duration) Ticker {
	return &tickerAdapter{t: c.underlying.Ticker(d)}
}

type tickerAdapter struct {
	t *clock.Ticker
}

func (a *tickerAdapter) C() <-chan time.Time {
	return a.t.C
}

func (a *tickerAdapter) Stop() {
	a.t.Stop()
}
