// Copyright 2025 Takhin Data, Inc.

package platform

import (
	"io"
	"sync"
)

// Readable is the consumer-facing end of a duplex stream. A Throttle owns
// the producer-facing end and pushes emitted chunks into it as the Group
// ticks; whatever sits downstream reads from it at its own pace.
type Readable interface {
	io.Reader

	// Close signals that the consumer is giving up early, before the
	// producer side has finished. It is the idiomatic stand-in for the
	// source runtime's "readable side has no locked reader" check: the
	// Group polls Gone() each tick to detect an abandoned stream and
	// gracefully aborts the throttle feeding it.
	io.Closer

	// Gone reports whether the consumer has called Close.
	Gone() bool
}

// Pipe is the concrete Readable implementation. It is an unbounded queue
// of emitted chunks so that Group.tick never blocks on a slow or absent
// reader: Push always returns immediately.
type Pipe struct {
	mu     sync.Mutex
	cond   *sync.Cond
	chunks [][]byte
	closed bool // producer side finished (CloseWrite)
	gone   bool // consumer side gave up early (Close)
}

// NewPipe returns an empty, open Pipe.
func NewPipe() *Pipe {
	p := &Pipe{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Push enqueues a copy of b for the consumer. Never blocks.
func (p *Pipe) Push(b []byte) {
	if len(b) == 0 {
		return
	}
	cp := make([]byte, len(b))
	copy(cp, b)

	p.mu.Lock()
	p.chunks = append(p.chunks, cp)
	p.cond.Signal()
	p.mu.Unlock()
}

// CloseWrite marks the producer side finished. Pending chunks still drain
// normally; Read returns io.EOF only once the queue is empty.
func (p *Pipe) CloseWrite() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Read implements io.Reader, blocking until a chunk is available, the
// producer side closes, or the consumer itself closes.
func (p *Pipe) Read(b []byte) (int, error) {
	p.mu.Lock()
	for len(p.chunks) == 0 && !p.closed && !p.gone {
		p.cond.Wait()
	}
	if len(p.chunks) == 0 {
		p.mu.Unlock()
		return 0, io.EOF
	}
	chunk := p.chunks[0]
	n := copy(b, chunk)
	if n < len(chunk) {
		p.chunks[0] = chunk[n:]
	} else {
		p.chunks = p.chunks[1:]
	}
	p.mu.Unlock()
	return n, nil
}

// Close signals that the consumer is abandoning the stream early.
func (p *Pipe) Close() error {
	p.mu.Lock()
	p.gone = true
	p.cond.Broadcast()
	p.mu.Unlock()
	return nil
}

// Gone reports whether the consumer has called Close.
func (p *Pipe) Gone() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gone
}
