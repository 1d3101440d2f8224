// Copyright 2025 Takhin Data, Inc.

package throttle

import "fmt"

// Config holds the tuning parameters shared by a Group and every Throttle
// it owns. It is read-mostly: Group.Configure merges a partial update into
// the live value, and in-flight byte allocations for the tick already in
// progress may still observe the prior value.
type Config struct {
	// BytesPerSecond is the aggregate ceiling shared across every
	// in-flight throttle. Zero, or IsThrottled false, means unbounded.
	BytesPerSecond int `koanf:"bytes_per_second"`

	// IsThrottled gates whether the group paces emission at all.
	IsThrottled bool `koanf:"is_throttled"`

	// TicksPerSecond is the intra-second scheduling resolution.
	TicksPerSecond int `koanf:"ticks_per_second"`

	// MaxBufferSize is the per-throttle ceiling on pending bytes.
	MaxBufferSize int `koanf:"max_buffer_size"`

	// ThroughputSampleIntervalMs is how often the sampler takes a
	// reading.
	ThroughputSampleIntervalMs int `koanf:"throughput_sample_interval_ms"`

	// ThroughputSampleSize bounds the sampler's sliding window.
	ThroughputSampleSize int `koanf:"throughput_sample_size"`
}

// DefaultConfig returns reasonable defaults: unthrottled pass-through at
// 10 ticks/second scheduling resolution, a 16 MiB per-stream buffer
// ceiling, and a sampler reading once a second over a 30-reading window.
func DefaultConfig() *Config {
	return &Config{
		BytesPerSecond:             0,
		IsThrottled:                false,
		TicksPerSecond:             10,
		MaxBufferSize:              16 * 1024 * 1024,
		ThroughputSampleIntervalMs: 1000,
		ThroughputSampleSize:       30,
	}
}

// TickDurationMs is 1000 / TicksPerSecond, the derived intra-second tick
// period in milliseconds.
func (c *Config) TickDurationMs() int {
	return 1000 / c.TicksPerSecond
}

// validate enforces the InvalidConfig error kind: TicksPerSecond < 1,
// MaxBufferSize < BytesPerSecond, or negative values fail construction.
func (c *Config) validate() error {
	if c.TicksPerSecond < 1 {
		return fmt.Errorf("%w: ticks_per_second must be >= 1, got %d", ErrInvalidConfig, c.TicksPerSecond)
	}
	if c.BytesPerSecond < 0 {
		return fmt.Errorf("%w: bytes_per_second must be >= 0, got %d", ErrInvalidConfig, c.BytesPerSecond)
	}
	if c.MaxBufferSize < 0 {
		return fmt.Errorf("%w: max_buffer_size must be >= 0, got %d", ErrInvalidConfig, c.MaxBufferSize)
	}
	if c.MaxBufferSize < c.BytesPerSecond {
		return fmt.Errorf("%w: max_buffer_size (%d) must be >= bytes_per_second (%d)", ErrInvalidConfig, c.MaxBufferSize, c.BytesPerSecond)
	}
	if c.ThroughputSampleIntervalMs < 1 {
		return fmt.Errorf("%w: throughput_sample_interval_ms must be >= 1, got %d", ErrInvalidConfig, c.ThroughputSampleIntervalMs)
	}
	if c.ThroughputSampleSize < 1 {
		return fmt.Errorf("%w: throughput_sample_size must be >= 1, got %d", ErrInvalidConfig, c.ThroughputSampleSize)
	}
	return nil
}

// merge applies the non-nil fields of partial onto a copy of c, the Go
// analogue of the source's object-spread partial configure(). Boolean
// fields and BytesPerSecond=0 are meaningful values rather than "unset",
// so merge takes an explicit set of field pointers instead of guessing
// zero-value intent.
func (c Config) merge(partial ConfigUpdate) Config {
	merged := c
	if partial.BytesPerSecond != nil {
		merged.BytesPerSecond = *partial.BytesPerSecond
	}
	if partial.IsThrottled != nil {
		merged.IsThrottled = *partial.IsThrottled
	}
	if partial.TicksPerSecond != nil {
		merged.TicksPerSecond = *partial.TicksPerSecond
	}
	if partial.MaxBufferSize != nil {
		merged.MaxBufferSize = *partial.MaxBufferSize
	}
	if partial.ThroughputSampleIntervalMs != nil {
		merged.ThroughputSampleIntervalMs = *partial.ThroughputSampleIntervalMs
	}
	if partial.ThroughputSampleSize != nil {
		merged.ThroughputSampleSize = *partial.ThroughputSampleSize
	}
	return merged
}

// ConfigUpdate is a partial Config: only non-nil fields are applied by
// Group.Configure, mirroring the source's partialConfig merge semantics
// without conflating "zero" with "unset" for fields where zero is valid
// (BytesPerSecond=0, IsThrottled=false).
type ConfigUpdate struct {
	BytesPerSecond             *int
	IsThrottled                *bool
	TicksPerSecond             *int
	MaxBufferSize              *int
	ThroughputSampleIntervalMs *int
	ThroughputSampleSize       *int
}
