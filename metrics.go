package netoff

import (
	"sync/atomic"
	"time"
)

// Metrics tracks protocol-level statistics for a single Worker or Driver
// session. Generalized from the teacher's storage-transaction counters
// (write/read/list/delete) to the request/byte/latency counters this
// request/response protocol cares about.
type Metrics interface {
	IncrementRequestsSent()
	IncrementRequestsReceived()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)
	ObserveRoundTrip(d time.Duration)

	GetRequestsSent() int64
	GetRequestsReceived() int64
	GetBytesSent() int64
	GetBytesReceived() int64
}

// DefaultMetrics implements Metrics with atomic in-process counters. Round
// trips are bucketed as a running sum + count rather than a full histogram,
// matching the teacher's preference for cheap atomic counters over a
// heavier dependency when nothing downstream consumes percentiles.
type DefaultMetrics struct {
	requestsSent     int64
	requestsReceived int64
	bytesSent        int64
	bytesReceived    int64
	roundTripSum     int64 // nanoseconds
	roundTripCount   int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementRequestsSent()         { atomic.AddInt64(&m.requestsSent, 1) }
func (m *DefaultMetrics) IncrementRequestsReceived()     { atomic.AddInt64(&m.requestsReceived, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64)     { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64) { atomic.AddInt64(&m.bytesReceived, n) }

func (m *DefaultMetrics) ObserveRoundTrip(d time.Duration) {
	atomic.AddInt64(&m.roundTripSum, int64(d))
	atomic.AddInt64(&m.roundTripCount, 1)
}

func (m *DefaultMetrics) GetRequestsSent() int64     { return atomic.LoadInt64(&m.requestsSent) }
func (m *DefaultMetrics) GetRequestsReceived() int64 { return atomic.LoadInt64(&m.requestsReceived) }
func (m *DefaultMetrics) GetBytesSent() int64        { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64    { return atomic.LoadInt64(&m.bytesReceived) }

// MeanRoundTrip returns the mean observed round-trip latency, or zero if
// nothing has been observed yet.
func (m *DefaultMetrics) MeanRoundTrip() time.Duration {
	count := atomic.LoadInt64(&m.roundTripCount)
	if count == 0 {
		return 0
	}
	return time.Duration(atomic.LoadInt64(&m.roundTripSum) / count)
}
