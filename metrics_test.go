package goSession

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMetricsDisabledNoIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	m.Inc(MetricSessionIssued)

	if got := m.Value(MetricSessionIssued); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMetricsEnabledIncrement(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	m.Inc(MetricSessionIssued)
	m.Inc(MetricSessionIssued)
	m.Add(MetricSessionIssued, 3)
	m.Add(MetricSessionIssued, 0)

	if got := m.Value(MetricSessionIssued); got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestMetricsConcurrentIncrementSafe(t *testing.T) {
	m := NewMetrics(MetricsConfig{Enabled: true})

	const goroutines = 32
	const perG = 4000

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perG; j++ {
				m.Inc(MetricRotateSuccess)
			}
		}()
	}
	wg.Wait()

	want := uint64(goroutines * perG)
	if got := m.Value(MetricRotateSuccess); got != want {
		t.Fatalf("expected %d, got %d", want, got)
	}
}

func TestMetricsHistogramBucketCorrectness(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})

	observations := []time.Duration{
		500 * time.Microsecond,
		2 * time.Millisecond,
		5 * time.Millisecond,
		10 * time.Millisecond,
		25 * time.Millisecond,
		50 * time.Millisecond,
		100 * time.Millisecond,
		700 * time.Millisecond,
	}

	for _, d := range observations {
		m.Observe(MetricVerifyLatency, d)
	}
	// Only the verify histogram exists.
	m.Observe(MetricRotateSuccess, time.Millisecond)

	snap := m.Snapshot()
	buckets := snap.Histograms[MetricVerifyLatency]
	if len(buckets) != histBucketCount {
		t.Fatalf("expected %d buckets, got %d", histBucketCount, len(buckets))
	}
	for i, v := range buckets {
		if v != 1 {
			t.Fatalf("bucket %d expected 1, got %d", i, v)
		}
	}
	if len(snap.Histograms) != 1 {
		t.Fatalf("expected a single histogram, got %d", len(snap.Histograms))
	}
	if len(HistogramBounds()) != histBucketCount-1 {
		t.Fatalf("expected %d finite bounds", histBucketCount-1)
	}
}

func TestMetricsSnapshotConsistency(t *testing.T) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	m.Inc(MetricVerifySuccess)
	m.Inc(MetricVerifyFailure)
	m.Inc(MetricVerifyFailure)
	m.Observe(MetricVerifyLatency, 1500*time.Microsecond)

	snap := m.Snapshot()

	if snap.Counters[MetricVerifySuccess] != 1 {
		t.Fatalf("expected MetricVerifySuccess=1 got %d", snap.Counters[MetricVerifySuccess])
	}
	if snap.Counters[MetricVerifyFailure] != 2 {
		t.Fatalf("expected MetricVerifyFailure=2 got %d", snap.Counters[MetricVerifyFailure])
	}
	if _, ok := snap.Counters[MetricVerifyLatency]; ok {
		t.Fatalf("latency id must not appear as a counter")
	}
	if snap.Histograms[MetricVerifyLatency][1] != 1 {
		t.Fatalf("expected second histogram bucket=1 got %d", snap.Histograms[MetricVerifyLatency][1])
	}
}

func TestEngineMetricsTrackLifecycle(t *testing.T) {
	h := newTestEngine(t)
	ctx := context.Background()

	pair, err := h.engine.IssueSession(ctx, "42")
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if _, err := h.engine.VerifyAccess(ctx, pair.AccessToken); err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if _, err := h.engine.Rotate(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("rotate failed: %v", err)
	}
	if _, err := h.engine.Rotate(ctx, pair.RefreshToken); err == nil {
		t.Fatalf("expected replayed rotation to fail")
	}

	snap := h.engine.MetricsSnapshot()
	if snap.Counters[MetricSessionIssued] != 1 {
		t.Fatalf("expected 1 issued session, got %d", snap.Counters[MetricSessionIssued])
	}
	if snap.Counters[MetricVerifySuccess] != 1 {
		t.Fatalf("expected 1 verify success, got %d", snap.Counters[MetricVerifySuccess])
	}
	if snap.Counters[MetricRotateSuccess] != 1 || snap.Counters[MetricReplayDetected] != 1 {
		t.Fatalf("unexpected rotate counters: %+v", snap.Counters)
	}
	if len(snap.Histograms[MetricVerifyLatency]) != histBucketCount {
		t.Fatalf("expected verify latency histogram")
	}
}
