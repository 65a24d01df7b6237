package obs

import (
	"sync"
	"sync/atomic"
	"time"
)

// Metrics collects lightweight counters and latency stats of the engine.
type Metrics struct {
	published sync.Map // topic -> *uint64

	droppedFrames      uint64
	submissions        uint64
	failedSubmissions  uint64
	invalidTransitions uint64
	keepAliveFailures  uint64
	queueClosed        uint64
	degradedDispatches uint64

	restLatency     LatencyStats
	dispatchLatency LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	Published          map[string]uint64
	DroppedFrames      uint64
	Submissions        uint64
	FailedSubmissions  uint64
	InvalidTransitions uint64
	KeepAliveFailures  uint64
	QueueClosed        uint64
	DegradedDispatches uint64
	RestLatency        LatencySnapshot
	DispatchLatency    LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// IncPublished counts a message published on the topic.
func (m *Metrics) IncPublished(topic string) {
	if m == nil {
		return
	}
	v, ok := m.published.Load(topic)
	if !ok {
		v, _ = m.published.LoadOrStore(topic, new(uint64))
	}
	atomic.AddUint64(v.(*uint64), 1)
}

// IncDroppedFrame records a stream frame that could not be decoded.
func (m *Metrics) IncDroppedFrame() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.droppedFrames, 1)
}

// IncSubmission records a dispatched order submission and whether it failed.
func (m *Metrics) IncSubmission(failed bool) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.submissions, 1)
	if failed {
		atomic.AddUint64(&m.failedSubmissions, 1)
	}
}

// IncInvalidTransition records an order status regression reported by an exchange.
func (m *Metrics) IncInvalidTransition() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.invalidTransitions, 1)
}

// IncKeepAliveFailure records a failed listen key keep-alive.
func (m *Metrics) IncKeepAliveFailure() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.keepAliveFailures, 1)
}

// IncQueueClosed records a submission rejected by a closed queue.
func (m *Metrics) IncQueueClosed() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.queueClosed, 1)
}

// IncDegradedDispatch records a command sent through a degraded private connector.
func (m *Metrics) IncDegradedDispatch() {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.degradedDispatches, 1)
}

// ObserveRest measures a REST round trip.
func (m *Metrics) ObserveRest(d time.Duration) {
	if m == nil {
		return
	}
	m.restLatency.Observe(d)
}

// ObserveDispatch measures the time from dequeue to connector result.
func (m *Metrics) ObserveDispatch(d time.Duration) {
	if m == nil {
		return
	}
	m.dispatchLatency.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	published := make(map[string]uint64)
	m.published.Range(func(k, v any) bool {
		published[k.(string)] = atomic.LoadUint64(v.(*uint64))
		return true
	})
	return Snapshot{
		Published:          published,
		DroppedFrames:      atomic.LoadUint64(&m.droppedFrames),
		Submissions:        atomic.LoadUint64(&m.submissions),
		FailedSubmissions:  atomic.LoadUint64(&m.failedSubmissions),
		InvalidTransitions: atomic.LoadUint64(&m.invalidTransitions),
		KeepAliveFailures:  atomic.LoadUint64(&m.keepAliveFailures),
		QueueClosed:        atomic.LoadUint64(&m.queueClosed),
		DegradedDispatches: atomic.LoadUint64(&m.degradedDispatches),
		RestLatency:        m.restLatency.Snapshot(),
		DispatchLatency:    m.dispatchLatency.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
