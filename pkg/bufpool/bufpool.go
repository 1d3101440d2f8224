// Copyright 2025 Takhin Data, Inc.

// Package bufpool provides a size-bucketed sync.Pool for the byte slices
// Throttle uses as its pending buffer, so growth and compaction on a busy
// stream doesn't keep handing fresh allocations to the GC.
package bufpool

import (
	"sync"
	"sync/atomic"
)

// Pool manages byte slices bucketed by capacity.
type Pool struct {
	pools map[int]*sync.Pool
	sizes []int
	stats stats
}

type stats struct {
	allocations atomic.Uint64
	gets        atomic.Uint64
	puts        atomic.Uint64
	inUse       atomic.Int64
	oversized   atomic.Uint64
	discarded   atomic.Uint64
}

// New creates a pool with bucket sizes suited to per-stream pending
// buffers: a throttle's buffer starts at its configured bytes-per-second
// and grows in bytesPerSecond-sized steps, so buckets span from a small
// floor up to a generous ceiling rather than Takhin's message-size range.
func New() *Pool {
	sizes := []int{
		4096,     // 4KB
		16384,    // 16KB
		65536,    // 64KB
		262144,   // 256KB
		1048576,  // 1MB
		4194304,  // 4MB
		16777216, // 16MB
		67108864, // 64MB
	}

	p := &Pool{
		pools: make(map[int]*sync.Pool, len(sizes)),
		sizes: sizes,
	}

	for _, size := range sizes {
		size := size
		p.pools[size] = &sync.Pool{
			New: func() interface{} {
				buf := make([]byte, size)
				p.stats.allocations.Add(1)
				return &buf
			},
		}
	}

	return p
}

// Get returns a buffer of exactly the requested size, backed by a pooled
// bucket whenever one large enough exists.
func (p *Pool) Get(size int) []byte {
	poolSize := p.findPoolSize(size)
	if poolSize == 0 {
		p.stats.allocations.Add(1)
		p.stats.oversized.Add(1)
		return make([]byte, size)
	}

	pool := p.pools[poolSize]
	bufPtr := pool.Get().(*[]byte)
	buf := (*bufPtr)[:size]

	p.stats.gets.Add(1)
	p.stats.inUse.Add(1)

	return buf
}

// Put returns a buffer to the pool. Unlike Takhin's mempool, it does not
// zero the contents first: a throttle's pending buffer is always fully
// overwritten by Write before any byte of it is read, so zeroing on Put
// would just burn CPU on data nobody will ever observe.
func (p *Pool) Put(buf []byte) {
	if buf == nil {
		return
	}

	capacity := cap(buf)
	poolSize := p.findPoolSize(capacity)
	if poolSize == 0 || poolSize != capacity {
		p.stats.discarded.Add(1)
		return
	}

	buf = buf[:capacity]
	pool := p.pools[poolSize]
	pool.Put(&buf)

	p.stats.puts.Add(1)
	p.stats.inUse.Add(-1)
}

func (p *Pool) findPoolSize(size int) int {
	for _, poolSize := range p.sizes {
		if size <= poolSize {
			return poolSize
		}
	}
	return 0
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	return Stats{
		Allocations: p.stats.allocations.Load(),
		Gets:        p.stats.gets.Load(),
		Puts:        p.stats.puts.Load(),
		InUse:       p.stats.inUse.Load(),
		Oversized:   p.stats.oversized.Load(),
		Discarded:   p.stats.discarded.Load(),
	}
}

// Stats holds a snapshot of pool counters, as returned by Pool.Stats.
type Stats struct {
	Allocations uint64
	Gets        uint64
	Puts        uint64
	InUse       int64
	Oversized   uint64
	Discarded   uint64
}
