package regiongrow

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    passCounter   prometheus.Counter
//	    mergeCounter  prometheus.Counter
//	}
//
//	func (p *PrometheusCollector) RecordPass(merged int, duration time.Duration) {
//	    p.passCounter.Inc()
//	    p.mergeCounter.Add(float64(merged))
//	}
type MetricsCollector interface {
	// RecordPass is called after each merge pass of the main loop.
	RecordPass(merged int, duration time.Duration)

	// RecordAbsorptionPass is called after each small-segment absorption pass.
	RecordAbsorptionPass(merged int, duration time.Duration)

	// RecordExecute is called after each strategy run. pixels is the input
	// size, segments the number of final segments, err is nil on success.
	RecordExecute(pixels, segments int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPass(int, time.Duration)                 {}
func (NoopMetricsCollector) RecordAbsorptionPass(int, time.Duration)       {}
func (NoopMetricsCollector) RecordExecute(int, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PassCount           atomic.Int64
	PassMerges          atomic.Int64
	PassTotalNanos      atomic.Int64
	AbsorptionPassCount atomic.Int64
	AbsorptionMerges    atomic.Int64
	ExecuteCount        atomic.Int64
	ExecuteErrors       atomic.Int64
	ExecutePixels       atomic.Int64
	ExecuteSegments     atomic.Int64
	ExecuteTotalNanos   atomic.Int64
}

// RecordPass implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPass(merged int, duration time.Duration) {
	b.PassCount.Add(1)
	b.PassMerges.Add(int64(merged))
	b.PassTotalNanos.Add(duration.Nanoseconds())
}

// RecordAbsorptionPass implements MetricsCollector.
func (b *BasicMetricsCollector) RecordAbsorptionPass(merged int, _ time.Duration) {
	b.AbsorptionPassCount.Add(1)
	b.AbsorptionMerges.Add(int64(merged))
}

// RecordExecute implements MetricsCollector.
func (b *BasicMetricsCollector) RecordExecute(pixels, segments int, duration time.Duration, err error) {
	b.ExecuteCount.Add(1)
	b.ExecuteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ExecuteErrors.Add(1)
		return
	}
	b.ExecutePixels.Add(int64(pixels))
	b.ExecuteSegments.Add(int64(segments))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PassCount:           b.PassCount.Load(),
		PassMerges:          b.PassMerges.Load(),
		PassAvgNanos:        avg(b.PassTotalNanos.Load(), b.PassCount.Load()),
		AbsorptionPassCount: b.AbsorptionPassCount.Load(),
		AbsorptionMerges:    b.AbsorptionMerges.Load(),
		ExecuteCount:        b.ExecuteCount.Load(),
		ExecuteErrors:       b.ExecuteErrors.Load(),
		ExecutePixels:       b.ExecutePixels.Load(),
		ExecuteSegments:     b.ExecuteSegments.Load(),
		ExecuteAvgNanos:     avg(b.ExecuteTotalNanos.Load(), b.ExecuteCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PassCount           int64
	PassMerges          int64
	PassAvgNanos        int64
	AbsorptionPassCount int64
	AbsorptionMerges    int64
	ExecuteCount        int64
	ExecuteErrors       int64
	ExecutePixels       int64
	ExecuteSegments     int64
	ExecuteAvgNanos     int64
}
