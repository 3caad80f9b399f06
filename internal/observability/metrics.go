package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// ingestion service.
type Metrics struct {
	// Remote source metrics.
	FetchRequests *prometheus.CounterVec   // labels: endpoint={countries,indicator}, outcome={success,error,empty}
	FetchDuration *prometheus.HistogramVec // labels: endpoint={countries,indicator}

	// Ingestion metrics.
	CountriesUpserted prometheus.Counter
	FactsInserted     prometheus.Counter
	FactsRejected     prometheus.Counter
	RecordsSkipped    prometheus.Counter
	IngestDuration    prometheus.Histogram
	IngestRunning     prometheus.Gauge

	// Fact event publishing metrics.
	FactsPublished prometheus.Counter
	PublishErrors  prometheus.Counter
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "health_etl",
			Name:      "fetch_requests_total",
			Help:      "GHO API requests by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "health_etl",
			Name:      "fetch_duration_seconds",
			Help:      "GHO API request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"endpoint"}),
		CountriesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "health_etl",
			Name:      "countries_upserted_total",
			Help:      "Total reference rows upserted.",
		}),
		FactsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "health_etl",
			Name:      "facts_inserted_total",
			Help:      "Total fact rows persisted.",
		}),
		FactsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "health_etl",
			Name:      "facts_rejected_total",
			Help:      "Total fact rows dropped by the foreign-key constraint.",
		}),
		RecordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "health_etl",
			Name:      "records_skipped_total",
			Help:      "Total raw records skipped before insert (unusable shape).",
		}),
		IngestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "health_etl",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of a complete ingestion run.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		IngestRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "health_etl",
			Name:      "ingest_running",
			Help:      "1 while an ingestion run is active, 0 otherwise.",
		}),
		FactsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "health_etl",
			Name:      "facts_published_total",
			Help:      "Total fact events written to the sink topic.",
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "health_etl",
			Name:      "publish_errors_total",
			Help:      "Total failed publishes to the sink topic.",
		}),
	}

	prometheus.MustRegister(
		m.FetchRequests,
		m.FetchDuration,
		m.CountriesUpserted,
		m.FactsInserted,
		m.FactsRejected,
		m.RecordsSkipped,
		m.IngestDuration,
		m.IngestRunning,
		m.FactsPublished,
		m.PublishErrors,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FetchRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "health_etl", Name: "fetch_requests_total"}, []string{"endpoint", "outcome"}),
		FetchDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "health_etl", Name: "fetch_duration_seconds"}, []string{"endpoint"}),
		CountriesUpserted: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "health_etl", Name: "countries_upserted_total"}),
		FactsInserted:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "health_etl", Name: "facts_inserted_total"}),
		FactsRejected:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "health_etl", Name: "facts_rejected_total"}),
		RecordsSkipped:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "health_etl", Name: "records_skipped_total"}),
		IngestDuration:    prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "health_etl", Name: "ingest_duration_seconds"}),
		IngestRunning:     prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "health_etl", Name: "ingest_running"}),
		FactsPublished:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: "health_etl", Name: "facts_published_total"}),
		PublishErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: "health_etl", Name: "publish_errors_total"}),
	}
}
