// Copyright 2025 Takhin Data, Inc.

package metrics

import "time"

// RecordBytesProcessed records bytes emitted by a group tick.
func RecordBytesProcessed(n uint64) {
	BytesProcessedTotal.Add(float64(n))
}

// RecordStreamCreated records a new throttle attached to the group.
func RecordStreamCreated() {
	StreamsCreatedTotal.Inc()
}

// RecordStreamAborted records a throttle finishing via Abort or
// GracefulAbort, tagged with why.
func RecordStreamAborted(reason string) {
	StreamsAbortedTotal.WithLabelValues(reason).Inc()
}

// RecordBufferOverflow records a throttle's pending buffer overflowing
// maxBufferSize.
func RecordBufferOverflow() {
	BufferOverflowsTotal.Inc()
}

// RecordTickDuration records the wall time a single group tick took.
func RecordTickDuration(d time.Duration) {
	TickDuration.Observe(d.Seconds())
}

// RecordGovernorAdjustment records the governor changing the shared byte
// budget to rate.
func RecordGovernorAdjustment(rate int) {
	GovernorRate.Set(float64(rate))
	GovernorAdjustmentsTotal.Inc()
}

// RecordAdminAPIRequest records a completed admin API request.
func RecordAdminAPIRequest(route, status string, d time.Duration) {
	AdminAPIRequestsTotal.WithLabelValues(route, status).Inc()
	AdminAPIRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}
