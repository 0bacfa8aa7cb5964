package input

import (
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

// Metrics tracks engine activity.
type Metrics struct {
	// Event counters
	keystrokesTotal   atomic.Uint64
	droppedRepeats    atomic.Uint64
	droppedUnmapped   atomic.Uint64
	interceptedEvents atomic.Uint64
	ignoredDisabled   atomic.Uint64
	windowTimeouts    atomic.Uint64
	windowOverflows   atomic.Uint64
	triggersTotal     atomic.Uint64

	// Latency tracking
	mu                sync.RWMutex
	latencies         []time.Duration
	maxLatencySamples int
	latencyIdx        int

	// Peak latency (all time)
	peakLatency atomic.Int64

	// Start time for uptime calculation
	startTime time.Time
}

// NewMetrics creates a new metrics tracker.
func NewMetrics() *Metrics {
	return &Metrics{
		latencies:         make([]time.Duration, 1000),
		maxLatencySamples: 1000,
		startTime:         time.Now(),
	}
}

// RecordKeystroke records a matched-or-not keystroke with its processing time.
func (m *Metrics) RecordKeystroke(latency time.Duration) {
	m.keystrokesTotal.Add(1)

	latencyNs := latency.Nanoseconds()
	for {
		current := m.peakLatency.Load()
		if latencyNs <= current {
			break
		}
		if m.peakLatency.CompareAndSwap(current, latencyNs) {
			break
		}
	}

	// Store in circular buffer
	m.mu.Lock()
	m.latencies[m.latencyIdx] = latency
	m.latencyIdx = (m.latencyIdx + 1) % m.maxLatencySamples
	m.mu.Unlock()
}

// RecordRepeat records a dropped auto-repeat event.
func (m *Metrics) RecordRepeat() { m.droppedRepeats.Add(1) }

// RecordUnrepresentable records an event with no keystroke form.
func (m *Metrics) RecordUnrepresentable() { m.droppedUnmapped.Add(1) }

// RecordIntercepted records an event consumed by an interceptor.
func (m *Metrics) RecordIntercepted() { m.interceptedEvents.Add(1) }

// RecordIgnored records a keystroke seen while detection was off.
func (m *Metrics) RecordIgnored() { m.ignoredDisabled.Add(1) }

// RecordTimeout records a window cleared by inactivity.
func (m *Metrics) RecordTimeout() { m.windowTimeouts.Add(1) }

// RecordOverflow records keystrokes trimmed from the front of the window.
func (m *Metrics) RecordOverflow(n int) { m.windowOverflows.Add(uint64(n)) }

// RecordTrigger records a binding trigger.
func (m *Metrics) RecordTrigger() { m.triggersTotal.Add(1) }

// MetricsSnapshot holds a point-in-time view of metrics.
type MetricsSnapshot struct {
	KeystrokesTotal   uint64        `json:"keystrokesTotal"`
	DroppedRepeats    uint64        `json:"droppedRepeats"`
	DroppedUnmapped   uint64        `json:"droppedUnrepresentable"`
	InterceptedEvents uint64        `json:"interceptedEvents"`
	IgnoredDisabled   uint64        `json:"ignoredWhileDisabled"`
	WindowTimeouts    uint64        `json:"windowTimeouts"`
	WindowOverflows   uint64        `json:"windowOverflows"`
	TriggersTotal     uint64        `json:"triggersTotal"`
	AvgLatency        time.Duration `json:"avgLatencyNs"`
	P99Latency        time.Duration `json:"p99LatencyNs"`
	PeakLatency       time.Duration `json:"peakLatencyNs"`
	Uptime            time.Duration `json:"uptimeNs"`
}

// Snapshot returns a point-in-time view of all metrics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	latencies := make([]time.Duration, len(m.latencies))
	copy(latencies, m.latencies)
	m.mu.RUnlock()

	snap := MetricsSnapshot{
		KeystrokesTotal:   m.keystrokesTotal.Load(),
		DroppedRepeats:    m.droppedRepeats.Load(),
		DroppedUnmapped:   m.droppedUnmapped.Load(),
		InterceptedEvents: m.interceptedEvents.Load(),
		IgnoredDisabled:   m.ignoredDisabled.Load(),
		WindowTimeouts:    m.windowTimeouts.Load(),
		WindowOverflows:   m.windowOverflows.Load(),
		TriggersTotal:     m.triggersTotal.Load(),
		PeakLatency:       time.Duration(m.peakLatency.Load()),
		Uptime:            time.Since(m.startTime),
	}
	snap.AvgLatency, snap.P99Latency = latencyStats(latencies)
	return snap
}

// latencyStats computes average and p99 over the non-zero samples.
func latencyStats(latencies []time.Duration) (avg, p99 time.Duration) {
	valid := make([]time.Duration, 0, len(latencies))
	var sum time.Duration
	for _, l := range latencies {
		if l > 0 {
			valid = append(valid, l)
			sum += l
		}
	}
	if len(valid) == 0 {
		return 0, 0
	}
	avg = sum / time.Duration(len(valid))

	slices.Sort(valid)
	idx := int(float64(len(valid)) * 0.99)
	if idx >= len(valid) {
		idx = len(valid) - 1
	}
	return avg, valid[idx]
}
