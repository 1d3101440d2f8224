// Copyright 2025 Takhin Data, Inc.

// Package throttle implements a group-coordinated bandwidth throttle: a
// set of per-stream transformers that each receive arbitrary-rate byte
// input and emit byte output at a bounded aggregate rate, with a single
// Group distributing a shared bytes-per-second budget fairly across
// every stream currently in flight.
//
// A Group owns the tick clock and the throughput sampler. Throttle is
// the per-stream transformer: it buffers producer writes and emits them
// on demand when the Group's tick loop calls into it with that tick's
// quota. partitionedIntegerPart is the pure integer-partition function
// that guarantees the per-tick and per-second splits sum exactly to the
// configured budget, with single-unit remainder drift rotated fairly
// across streams over time.
package throttle
