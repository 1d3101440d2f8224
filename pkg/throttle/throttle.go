// Copyright 2025 Takhin Data, Inc.

package throttle

import (
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/streamcap/throttle/pkg/platform"
)

// Throttle is a single byte-stream transformer with one producer and one
// consumer, belonging to exactly one Group for its lifetime. A producer
// calls Write (or writes through Writable) to append bytes; the Group's
// tick loop calls process to emit bytes downstream at the throttle's
// current quota; the consumer reads from Readable.
type Throttle struct {
	id    string
	group *Group

	mu   sync.Mutex
	cond *sync.Cond

	pending        []byte
	readIndex      int
	writeIndex     int
	bufferCapacity int

	isProducing       bool
	destroyed         bool
	wantsBackpressure bool

	totalWritten uint64
	totalEmitted uint64

	doneOnce     sync.Once
	doneCh       chan struct{}
	doneErr      error
	doneResolved bool

	onBytesWritten func([]byte)

	readable *platform.Pipe
}

// newThrottle constructs a throttle owned by group, sized per
// contentLength (a hint, per §6 of the public API) and bytesPerSecond (the
// group's budget at creation time). It does not register with the group;
// registration happens lazily on the first Write, per spec §4.2.
func newThrottle(group *Group, contentLength int, wantsBackpressure bool, bytesPerSecond int, maxBufferSize int) *Throttle {
	initial := bytesPerSecond
	if initial <= 0 {
		initial = contentLength
	}
	if initial <= 0 {
		initial = 64 * 1024
	}
	if maxBufferSize > 0 && initial > maxBufferSize {
		initial = maxBufferSize
	}

	t := &Throttle{
		id:                uuid.NewString(),
		group:             group,
		wantsBackpressure: wantsBackpressure,
		bufferCapacity:    initial,
		pending:           group.bufPool().Get(initial),
		doneCh:            make(chan struct{}),
		readable:          platform.NewPipe(),
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// ID returns the throttle's unique identifier, a random UUID assigned at
// creation.
func (t *Throttle) ID() string { return t.id }

// Readable is the consumer-facing end: the downstream reader pulls
// emitted bytes from it at its own pace.
func (t *Throttle) Readable() platform.Readable { return t.readable }

// Writable is the producer-facing end: writing appends to the pending
// buffer, and Close is equivalent to Flush (end-of-input).
func (t *Throttle) Writable() io.WriteCloser { return throttleWriter{t} }

// Done returns a channel closed once the throttle has completed, either
// naturally or via Abort/GracefulAbort. Err reports the outcome.
func (t *Throttle) Done() <-chan struct{} { return t.doneCh }

// Err reports why Done closed: nil on natural completion or a graceful
// abort, ErrAborted if Abort was called.
func (t *Throttle) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doneErr
}

// SetOnBytesWritten registers the emission observer hook, called with
// each slice pushed downstream.
func (t *Throttle) SetOnBytesWritten(fn func([]byte)) {
	t.mu.Lock()
	t.onBytesWritten = fn
	t.mu.Unlock()
}

type throttleWriter struct{ t *Throttle }

func (w throttleWriter) Write(p []byte) (int, error) { return w.t.Write(p) }
func (w throttleWriter) Close() error                { return w.t.Flush() }

// Write appends chunk to the pending buffer. When throttling is enabled,
// the first call on a fresh throttle triggers group.onStart; subsequent
// calls extend the producing stream already underway. When it is
// disabled, the chunk is drained at once through process. See the buffer growth and overflow policy in
// ensureCapacityLocked.
func (t *Throttle) Write(chunk []byte) (int, error) {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return 0, ErrClosed
	}

	throttled := t.group.Throttled()
	first := !t.isProducing
	t.isProducing = true

	n := len(chunk)
	if err := t.ensureCapacityLocked(n); err != nil {
		t.mu.Unlock()
		t.failOverflow(err)
		return 0, err
	}

	copy(t.pending[t.writeIndex:], chunk)
	t.writeIndex += n
	t.totalWritten += uint64(n)
	writeEnd := t.totalWritten
	t.mu.Unlock()

	if throttled && first {
		t.group.onStart(t)
	}

	if !throttled {
		t.process(n)
	}

	if throttled && t.wantsBackpressure {
		t.waitEmitted(writeEnd)
	}

	return n, nil
}

// ensureCapacityLocked implements the §4.2 buffer growth policy: compact
// first, then grow in bytesPerSecond-sized steps up to MaxBufferSize, and
// report overflow if even that isn't enough. Must be called with t.mu
// held.
func (t *Throttle) ensureCapacityLocked(n int) error {
	pendingCount := t.writeIndex - t.readIndex
	if pendingCount+n <= t.bufferCapacity {
		return nil
	}

	t.compactLocked()
	pendingCount = t.writeIndex - t.readIndex
	if pendingCount+n <= t.bufferCapacity {
		return nil
	}

	maxBuf := t.group.maxBufferSize()
	if maxBuf > 0 && pendingCount+n > maxBuf {
		return ErrBufferOverflow
	}

	step := t.group.bytesPerSecondSnapshot()
	if step <= 0 {
		step = maxBuf
	}
	if step <= 0 {
		step = pendingCount + n
	}

	ticks := (pendingCount + n + step - 1) / step
	newCap := step * ticks
	if maxBuf > 0 && newCap > maxBuf {
		newCap = maxBuf
	}
	t.growLocked(newCap)
	return nil
}

// compactLocked slides [readIndex, writeIndex) to the start of pending so
// the write path always sees contiguous free space at the tail.
func (t *Throttle) compactLocked() {
	if t.readIndex == 0 {
		return
	}
	n := copy(t.pending, t.pending[t.readIndex:t.writeIndex])
	t.writeIndex = n
	t.readIndex = 0
}

// growLocked replaces pending with a larger buffer from the group's pool,
// copying over the unemitted bytes.
func (t *Throttle) growLocked(newCap int) {
	newBuf := t.group.bufPool().Get(newCap)
	n := copy(newBuf, t.pending[t.readIndex:t.writeIndex])
	old := t.pending
	t.pending = newBuf
	t.writeIndex = n
	t.readIndex = 0
	t.bufferCapacity = newCap
	t.group.bufPool().Put(old)
}

// failOverflow implements the BufferOverflow error kind: the throttle is
// torn down and the producer observes ErrBufferOverflow from Write.
func (t *Throttle) failOverflow(err error) {
	t.resolveDone(err)
	t.group.onStop(t)
	t.destroy()
}

// Flush signals end-of-input from the producer. It never blocks: if the
// buffer is already empty (or throttling is disabled), the throttle
// finishes immediately; otherwise completion happens later, from process,
// once the group drains the remaining bytes. Callers that need to know
// when that happens should wait on Done.
func (t *Throttle) Flush() error {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return nil
	}
	t.isProducing = false
	throttled := t.group.Throttled()
	empty := t.readIndex == t.writeIndex
	t.mu.Unlock()

	if !throttled || empty {
		t.finishNormally()
	}
	return nil
}

// process is called by the group's tick loop with this throttle's quota
// for the current tick. It returns the number of bytes actually emitted.
func (t *Throttle) process(maxBytes int) int {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return 0
	}

	throttled := t.group.Throttled()
	pendingCount := t.writeIndex - t.readIndex

	n := maxBytes
	if !throttled || n > pendingCount {
		n = pendingCount
	}
	if n < 0 {
		n = 0
	}

	var slice []byte
	if n > 0 {
		slice = append([]byte(nil), t.pending[t.readIndex:t.readIndex+n]...)
		t.readIndex += n
		t.totalEmitted += uint64(n)
	}
	t.compactLocked()

	producing := t.isProducing
	// Per §4.3 step 6: once throttling is disabled the throttle finishes
	// unconditionally on its next process call, regardless of producer
	// state — unthrottled means "pass through", and there is no further
	// coordination left for the group to do with this stream. A write
	// arriving after that finds the throttle destroyed and gets ErrClosed.
	finalize := !throttled || (t.readIndex == t.writeIndex && !producing)

	t.cond.Broadcast()
	t.mu.Unlock()

	if n > 0 {
		t.readable.Push(slice)
		if cb := t.onBytesWritten; cb != nil {
			cb(slice)
		}
	}

	if finalize {
		t.finishNormally()
	}

	return n
}

// finishNormally resolves done successfully and tears the throttle down.
// Used both by the unthrottled immediate-drain path and by process's
// natural-completion path.
func (t *Throttle) finishNormally() {
	t.resolveDone(nil)
	t.group.onStop(t)
	t.destroy()
}

// Abort hard-stops the throttle: buffered bytes are discarded and Done
// resolves with ErrAborted.
func (t *Throttle) Abort() {
	t.resolveDone(ErrAborted)
	t.group.onStop(t)
	t.destroy()
}

// GracefulAbort resolves done successfully before tearing down. The group
// calls this when it detects the downstream consumer has detached.
func (t *Throttle) GracefulAbort() {
	t.resolveDone(nil)
	t.group.onStop(t)
	t.destroy()
}

func (t *Throttle) resolveDone(err error) {
	t.mu.Lock()
	if t.doneResolved {
		t.mu.Unlock()
		return
	}
	t.doneResolved = true
	t.doneErr = err
	t.mu.Unlock()
	t.doneOnce.Do(func() { close(t.doneCh) })
}

// destroy is idempotent: it releases the pending buffer, terminates the
// readable end, and removes the throttle from the group's bookkeeping.
// After destroy the throttle is unusable: Write and Flush become no-ops
// returning ErrClosed/nil respectively.
func (t *Throttle) destroy() {
	t.mu.Lock()
	if t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	buf := t.pending
	t.pending = nil
	t.cond.Broadcast()
	t.mu.Unlock()

	t.group.bufPool().Put(buf)
	t.readable.CloseWrite()
	t.group.onDestroy(t)
}

// waitEmitted blocks until target bytes have been cumulatively emitted
// or the throttle is destroyed. It is only called when wantsBackpressure
// is set, giving the producer's Write call true end-to-end backpressure
// per §6.
func (t *Throttle) waitEmitted(target uint64) {
	t.mu.Lock()
	for !t.destroyed && t.totalEmitted < target {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

// pendingCount returns the current unemitted byte count, used by tests.
func (t *Throttle) pendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeIndex - t.readIndex
}

// isDestroyed reports whether destroy has already run.
func (t *Throttle) isDestroyed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.destroyed
}

// downstreamDetached implements the §5 self-healing check: the readable
// end's consumer has called Close.
func (t *Throttle) downstreamDetached() bool {
	return t.readable.Gone()
}
