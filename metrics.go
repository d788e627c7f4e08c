package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter. IDs are stable for the lifetime of a release and
// index fixed arrays; exporters map them to names in metrics/export/internaldefs.
type MetricID uint16

const (
	// MetricSessionIssued counts successful IssueSession calls.
	MetricSessionIssued MetricID = iota
	// MetricSessionIssueFailure counts IssueSession calls that returned an error.
	MetricSessionIssueFailure
	// MetricVerifySuccess counts accepted access tokens.
	MetricVerifySuccess
	// MetricVerifyFailure counts rejected access tokens of any kind.
	MetricVerifyFailure
	// MetricVerifyRevoked counts access tokens rejected because they are denylisted.
	MetricVerifyRevoked
	// MetricRotateSuccess counts successful refresh rotations.
	MetricRotateSuccess
	// MetricRotateFailure counts failed refresh rotations of any kind.
	MetricRotateFailure
	// MetricReplayDetected counts refresh tokens presented without a live record.
	MetricReplayDetected
	// MetricSessionRevoked counts RevokeSession calls that completed without error.
	MetricSessionRevoked
	// MetricRevokeFailure counts RevokeSession calls that returned an error.
	MetricRevokeFailure
	// MetricSubjectRevoked counts RevokeAllForSubject calls.
	MetricSubjectRevoked
	// MetricRefreshRecordsPurged counts refresh records removed by RevokeAllForSubject.
	MetricRefreshRecordsPurged
	// MetricTokenIssued counts activation and reset tokens issued.
	MetricTokenIssued
	// MetricTokenRedeemed counts activation and reset tokens redeemed.
	MetricTokenRedeemed
	// MetricTokenReplayRejected counts second redemptions of a purpose token.
	MetricTokenReplayRejected
	// MetricStoreUnavailable counts operations that failed closed on a store error.
	MetricStoreUnavailable
	// MetricVerifyLatency is the latency histogram of VerifyAccess.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free engine counters. A nil or disabled Metrics accepts every call and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

func (m *Metrics) Inc(id MetricID) {
	m.Add(id, 1)
}

// Add increases counter id by n.
func (m *Metrics) Add(id MetricID, n uint64) {
	if m == nil || !m.enabled || id >= metricIDCount || n == 0 {
		return
	}
	atomic.AddUint64(&m.counters[id].value, n)
}

// Observe records d in the histogram for id. Only MetricVerifyLatency has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies all counters. Histograms are included only when latency is enabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricVerifyLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

// bucketIndex maps d to one of the upper bounds 1, 2, 5, 10, 25, 50, 100 ms or +Inf.
// VerifyAccess is one store round trip, so the buckets are finer than request latency.
func bucketIndex(d time.Duration) int {
	us := d.Microseconds()

	switch {
	case us <= 1_000:
		return 0
	case us <= 2_000:
		return 1
	case us <= 5_000:
		return 2
	case us <= 10_000:
		return 3
	case us <= 25_000:
		return 4
	case us <= 50_000:
		return 5
	case us <= 100_000:
		return 6
	default:
		return 7
	}
}

// HistogramBounds returns the upper bound of each finite latency bucket, in seconds.
func HistogramBounds() []float64 {
	return []float64{0.001, 0.002, 0.005, 0.010, 0.025, 0.050, 0.100}
}
