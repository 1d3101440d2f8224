// Copyright 2025 Takhin Data, Inc.

package throttle

import "errors"

var (
	// ErrBufferOverflow is returned by Write when a producer chunk would
	// push a throttle's pending buffer past Config.MaxBufferSize even
	// after compaction. The throttle is destroyed before this error is
	// returned; no partial append occurs.
	ErrBufferOverflow = errors.New("throttle: buffer overflow")

	// ErrInvalidConfig is returned by NewGroup and Configure when a
	// config value would leave the group in an inconsistent state.
	ErrInvalidConfig = errors.New("throttle: invalid config")

	// ErrClosed is returned by Write when called on a throttle that has
	// already been destroyed; Flush returns nil and Abort does nothing in
	// that state. It mirrors the "no-op, destroy is idempotent" policy as
	// a sentinel error rather than a panic, matching how os.File and
	// net.Conn report use-after-close.
	ErrClosed = errors.New("throttle: use of destroyed throttle")

	// ErrAborted is the Done/Err() result for a throttle torn down by
	// Abort rather than by natural completion.
	ErrAborted = errors.New("throttle: aborted")
)

// partitionerError panics with a message identifying a programmer error
// in partitionedIntegerPart, per the spec's assertion policy for a
// malformed parts/index pair — never returned to a caller as an error
// value, since there is no recoverable way to call it correctly after
// the fact.
type partitionerError struct {
	msg string
}

func (e *partitionerError) Error() string { return e.msg }
