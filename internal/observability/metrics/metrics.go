package metrics

import "github.com/prometheus/client_golang/prometheus"

// SyncMetrics exposes counters/histograms for the client cache and the
// availability refresher.
type SyncMetrics struct {
	pagesFetched    *prometheus.CounterVec
	recordsUpserted prometheus.Counter
	syncDuration    *prometheus.HistogramVec
	lookupTotal     *prometheus.CounterVec
	refreshTotal    *prometheus.CounterVec
}

func NewSyncMetrics(reg prometheus.Registerer) *SyncMetrics {
	m := &SyncMetrics{
		pagesFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "client_sync",
			Name:      "pages_fetched_total",
			Help:      "Upstream pages fetched, by sync kind and outcome",
		}, []string{"kind", "status"}),
		recordsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "client_sync",
			Name:      "records_upserted_total",
			Help:      "Client records written to the local cache",
		}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "client_sync",
			Name:      "duration_seconds",
			Help:      "Duration of sync runs",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		lookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "client_cache",
			Name:      "lookup_total",
			Help:      "Client email lookups by result",
		}, []string{"result"}),
		refreshTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "availability",
			Name:      "refresh_total",
			Help:      "Availability cache refreshes by outcome",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.pagesFetched, m.recordsUpserted, m.syncDuration, m.lookupTotal, m.refreshTotal)
	return m
}

func (m *SyncMetrics) ObservePage(kind, status string) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(kind, status).Inc()
}

func (m *SyncMetrics) AddRecordsUpserted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.recordsUpserted.Add(float64(n))
}

func (m *SyncMetrics) ObserveSyncDuration(kind string, seconds float64) {
	if m == nil {
		return
	}
	m.syncDuration.WithLabelValues(kind).Observe(seconds)
}

func (m *SyncMetrics) ObserveLookup(result string) {
	if m == nil {
		return
	}
	m.lookupTotal.WithLabelValues(result).Inc()
}

func (m *SyncMetrics) ObserveRefresh(status string) {
	if m == nil {
		return
	}
	m.refreshTotal.WithLabelValues(status).Inc()
}
