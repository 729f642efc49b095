package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the traversal.
type Metrics struct {
	Registry         *prometheus.Registry
	ItemsDiscovered  prometheus.Counter
	ItemsProcessed   prometheus.Counter
	ItemsSkipped     *prometheus.CounterVec
	ScrollSteps      prometheus.Counter
	EmptyPasses      prometheus.Counter
	ExtractDuration  prometheus.Histogram
	SinkRowsWritten  prometheus.Counter
	SinkWriteFailure prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	discovered := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dealsheet_items_discovered_total",
			Help: "Total handles discovered on the listing, before dedup.",
		},
	)
	processed := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dealsheet_items_processed_total",
			Help: "Total items whose detail pages were extracted.",
		},
	)
	skipped := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dealsheet_items_skipped_total",
			Help: "Total items skipped, by reason.",
		},
		[]string{"reason"},
	)
	scrolls := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dealsheet_scroll_steps_total",
			Help: "Total listing scroll steps performed.",
		},
	)
	emptyPasses := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dealsheet_empty_passes_total",
			Help: "Total discovery passes that yielded no new items.",
		},
	)
	extractDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dealsheet_extract_duration_seconds",
			Help:    "Time spent extracting one product detail page.",
			Buckets: prometheus.DefBuckets,
		},
	)
	sinkRows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dealsheet_sink_rows_written_total",
			Help: "Total rows delivered to the sink.",
		},
	)
	sinkFailures := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dealsheet_sink_write_failures_total",
			Help: "Total failed sink write attempts.",
		},
	)

	registry.MustRegister(discovered, processed, skipped, scrolls, emptyPasses, extractDuration, sinkRows, sinkFailures)

	return &Metrics{
		Registry:         registry,
		ItemsDiscovered:  discovered,
		ItemsProcessed:   processed,
		ItemsSkipped:     skipped,
		ScrollSteps:      scrolls,
		EmptyPasses:      emptyPasses,
		ExtractDuration:  extractDuration,
		SinkRowsWritten:  sinkRows,
		SinkWriteFailure: sinkFailures,
	}
}

// IncDiscovered adds to the discovered handle counter.
func (m *Metrics) IncDiscovered(n int) {
	if m == nil {
		return
	}
	m.ItemsDiscovered.Add(float64(n))
}

// IncProcessed increments the processed item counter.
func (m *Metrics) IncProcessed() {
	if m == nil {
		return
	}
	m.ItemsProcessed.Inc()
}

// IncSkipped increments the skipped counter for a reason label.
func (m *Metrics) IncSkipped(reason string) {
	if m == nil {
		return
	}
	m.ItemsSkipped.WithLabelValues(reason).Inc()
}

// IncScroll increments the scroll step counter.
func (m *Metrics) IncScroll() {
	if m == nil {
		return
	}
	m.ScrollSteps.Inc()
}

// IncEmptyPass increments the empty discovery pass counter.
func (m *Metrics) IncEmptyPass() {
	if m == nil {
		return
	}
	m.EmptyPasses.Inc()
}

// ObserveExtract records the duration of one detail extraction.
func (m *Metrics) ObserveExtract(d time.Duration) {
	if m == nil {
		return
	}
	m.ExtractDuration.Observe(d.Seconds())
}

// AddSinkRows adds to the delivered row counter.
func (m *Metrics) AddSinkRows(n int) {
	if m == nil {
		return
	}
	m.SinkRowsWritten.Add(float64(n))
}

// IncSinkFailure increments the failed sink write counter.
func (m *Metrics) IncSinkFailure() {
	if m == nil {
		return
	}
	m.SinkWriteFailure.Inc()
}
