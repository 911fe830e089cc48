package wral

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics wraps the Prometheus collectors the writer core samples on its
// hot path. Construction only: the caller decides whether and where to
// register the returned collector, keeping telemetry wiring outside this
// module while still letting the writer emit real samples.
type Metrics struct {
	AppendLatency prometheus.Histogram
	BatchSize     prometheus.Histogram
	BytesWritten  prometheus.Counter
	Rotations     prometheus.Counter
	PoisonEvents  prometheus.Counter
}

// NewMetrics builds a Metrics collector set with the given namespace,
// e.g. NewMetrics("myservice"). Register the result's Collectors with a
// prometheus.Registerer to expose them.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		AppendLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wral",
			Name:      "append_latency_seconds",
			Help:      "Time AddEntry spent from call to durable return.",
			Buckets:   prometheus.DefBuckets,
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "wral",
			Name:      "batch_size_entries",
			Help:      "Number of entries committed together in one group-commit batch.",
			Buckets:   prometheus.LinearBuckets(1, 4, 8),
		}),
		BytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wral",
			Name:      "bytes_written_total",
			Help:      "Total bytes of framed records written to journal files by batch commits; headers and trailers are not counted.",
		}),
		Rotations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wral",
			Name:      "rotations_total",
			Help:      "Number of times a journal file was sealed and a new one created.",
		}),
		PoisonEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "wral",
			Name:      "poison_events_total",
			Help:      "Number of times a write or fsync failure poisoned the writer.",
		}),
	}
}

// Collectors returns every collector in m, for bulk registration:
//
//	for _, c := range m.Collectors() { registerer.MustRegister(c) }
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.AppendLatency, m.BatchSize, m.BytesWritten, m.Rotations, m.PoisonEvents}
}

func (m *Metrics) observeAppend(start time.Time) {
	if m == nil {
		return
	}
	m.AppendLatency.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeBatch(n int, bytes int64) {
	if m == nil {
		return
	}
	m.BatchSize.Observe(float64(n))
	m.BytesWritten.Add(float64(bytes))
}

func (m *Metrics) observeRotation() {
	if m == nil {
		return
	}
	m.Rotations.Inc()
}

func (m *Metrics) observePoison() {
	if m == nil {
		return
	}
	m.PoisonEvents.Inc()
}
