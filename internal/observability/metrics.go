package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shop_discovery"

// Metrics holds the Prometheus counters, histograms, and gauges for the discovery service.
type Metrics struct {
	// Feed assembly metrics.
	FeedRequests     *prometheus.CounterVec // labels: feed={ranked,categories}, outcome={success,error,empty}
	FeedDuration     *prometheus.HistogramVec
	FeedEntries      prometheus.Histogram
	RecordsDropped   *prometheus.CounterVec // labels: reason={invalid,duplicate}
	LocationOutcomes *prometheus.CounterVec // labels: status={found,denied,timeout,unavailable}

	// Shop source metrics.
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={success,error}
	ProviderDuration *prometheus.HistogramVec // labels: provider

	// Cache Gate lookups across every gate in the process.
	CacheLookups *prometheus.CounterVec // labels: cache, result={hit,miss,bypass}

	// Geocoding metrics.
	GeocodeRequests    *prometheus.CounterVec // labels: outcome={success,error,empty}
	GeocodeAPIDuration prometheus.Histogram
	GeocodeEnabled     prometheus.Gauge

	// Impression publishing metrics.
	ImpressionsPublished prometheus.Counter
	ImpressionErrors     prometheus.Counter
	ImpressionsEnabled   prometheus.Gauge
}

// NewMetrics creates and registers all service metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		FeedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_requests_total",
			Help:      "Feed requests by feed kind and outcome.",
		}, []string{"feed", "outcome"}),
		FeedDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_duration_seconds",
			Help:      "Time to assemble one feed page, including the source fetch.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"feed"}),
		FeedEntries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_entries",
			Help:      "Number of ranked entries returned per page.",
			Buckets:   []float64{0, 1, 5, 10, 15, 20, 30, 50},
		}),
		RecordsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Shop records removed before ranking, by reason.",
		}, []string{"reason"}),
		LocationOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "location_outcomes_total",
			Help:      "User location acquisition outcomes.",
		}, []string{"status"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_requests_total",
			Help:      "Shop source fetches by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_duration_seconds",
			Help:      "Shop source fetch duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"provider"}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache Gate lookups by cache and result.",
		}, []string{"cache", "result"}),
		GeocodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_requests_total",
			Help:      "Geocoding API requests by outcome.",
		}, []string{"outcome"}),
		GeocodeAPIDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_api_duration_seconds",
			Help:      "Mapbox API request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		GeocodeEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "geocode_enabled",
			Help:      "1 when locality geocoding is enabled, 0 otherwise.",
		}),
		ImpressionsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impressions_published_total",
			Help:      "Promoted listing impressions written to Kafka.",
		}),
		ImpressionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "impression_errors_total",
			Help:      "Impression batches that failed to publish.",
		}),
		ImpressionsEnabled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "impressions_enabled",
			Help:      "1 when impression publishing is enabled, 0 otherwise.",
		}),
	}

	prometheus.MustRegister(
		m.FeedRequests,
		m.FeedDuration,
		m.FeedEntries,
		m.RecordsDropped,
		m.LocationOutcomes,
		m.ProviderRequests,
		m.ProviderDuration,
		m.CacheLookups,
		m.GeocodeRequests,
		m.GeocodeAPIDuration,
		m.GeocodeEnabled,
		m.ImpressionsPublished,
		m.ImpressionErrors,
		m.ImpressionsEnabled,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		FeedRequests:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "feed_requests_total"}, []string{"feed", "outcome"}),
		FeedDuration:         prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "feed_duration_seconds"}, []string{"feed"}),
		FeedEntries:          prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "feed_entries"}),
		RecordsDropped:       prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "records_dropped_total"}, []string{"reason"}),
		LocationOutcomes:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "location_outcomes_total"}, []string{"status"}),
		ProviderRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "provider_requests_total"}, []string{"provider", "outcome"}),
		ProviderDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: namespace, Name: "provider_duration_seconds"}, []string{"provider"}),
		CacheLookups:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "cache_lookups_total"}, []string{"cache", "result"}),
		GeocodeRequests:      prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "geocode_requests_total"}, []string{"outcome"}),
		GeocodeAPIDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "geocode_api_duration_seconds"}),
		GeocodeEnabled:       prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "geocode_enabled"}),
		ImpressionsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "impressions_published_total"}),
		ImpressionErrors:     prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "impression_errors_total"}),
		ImpressionsEnabled:   prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "impressions_enabled"}),
	}
}
