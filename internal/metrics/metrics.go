// Package metrics implements the engine's in-process counters and latency
// histograms. Counters are plain atomics so the hot path never takes a lock;
// exporters read consistent point-in-time copies through Snapshot.
package metrics

import (
	"sync/atomic"
	"time"
)

// MetricID indexes a single counter or histogram slot.
type MetricID int

const (
	MetricSigninRequest MetricID = iota
	MetricSigninSuccess
	MetricSigninFailure
	MetricSigninRateLimited
	MetricSignupRequest
	MetricSignupSuccess
	MetricSignupDuplicate
	MetricProfileSetupSuccess
	MetricOTPIssued
	MetricOTPDeliveryFailure
	MetricOTPVerified
	MetricOTPInvalid
	MetricOTPAttemptsExceeded
	MetricRefreshSuccess
	MetricRefreshFailure
	MetricRefreshReuseDetected
	MetricSessionCreated
	MetricSessionInvalidated
	MetricLogout
	MetricLogoutAll
	MetricPasswordResetRequest
	MetricPasswordResetSuccess
	MetricSubjectBlacklisted
	MetricSubjectRestored
	MetricTokenRevokedHit
	MetricRevocationFailOpen
	MetricValidateLatency

	MetricIDCount
)

// HistogramBounds are the upper bucket bounds in microseconds for latency
// histograms. The last bucket is +Inf.
var HistogramBounds = [8]int64{50, 100, 250, 500, 1000, 2500, 10000, 1 << 62}

// Config controls which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

type histogram struct {
	buckets [8]atomic.Uint64
	count   atomic.Uint64
}

// Metrics holds atomic counters and optional latency histograms.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [MetricIDCount]atomic.Uint64
	latency       histogram
}

// Snapshot is a point-in-time deep copy of all metrics.
type Snapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID]HistogramSnapshot
}

// HistogramSnapshot carries per-bucket counts and the total sample count.
// Exporters fold the buckets into cumulative form.
type HistogramSnapshot struct {
	Buckets [8]uint64
	Count   uint64
}

func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

// Inc increments a counter. No-op when metrics are disabled or the ID is out
// of range.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id < 0 || id >= MetricIDCount {
		return
	}
	m.counters[id].Add(1)
}

// ObserveLatency records a Validate latency sample.
func (m *Metrics) ObserveLatency(d time.Duration) {
	if m == nil || !m.enableLatency {
		return
	}

	us := d.Microseconds()
	for i, bound := range HistogramBounds {
		if us <= bound {
			m.latency.buckets[i].Add(1)
			break
		}
	}
	m.latency.count.Add(1)
}

// Get returns a single counter value.
func (m *Metrics) Get(id MetricID) uint64 {
	if m == nil || id < 0 || id >= MetricIDCount {
		return 0
	}
	return m.counters[id].Load()
}

// Snapshot returns a deep copy of all counters and histograms. Values read
// under concurrent writes are each individually consistent.
func (m *Metrics) Snapshot() Snapshot {
	snap := Snapshot{
		Counters:   make(map[MetricID]uint64, MetricIDCount),
		Histograms: make(map[MetricID]HistogramSnapshot, 1),
	}
	if m == nil || !m.enabled {
		return snap
	}

	for id := MetricID(0); id < MetricIDCount; id++ {
		if v := m.counters[id].Load(); v > 0 {
			snap.Counters[id] = v
		}
	}

	if m.enableLatency {
		var h HistogramSnapshot
		for i := range m.latency.buckets {
			h.Buckets[i] = m.latency.buckets[i].Load()
		}
		h.Count = m.latency.count.Load()
		if h.Count > 0 {
			snap.Histograms[MetricValidateLatency] = h
		}
	}

	return snap
}
