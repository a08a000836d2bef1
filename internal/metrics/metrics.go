package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/HSLdevcom/digitransit-geocoder/internal/model"
)

var (
	RequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_requests_total",
		Help: "Total query requests by endpoint",
	}, []string{"endpoint"})
	RequestDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "geocoder_request_duration_ms",
		Help:    "Request duration in milliseconds",
		Buckets: []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000},
	}, []string{"endpoint"})
	NotFoundTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_notfound_total",
		Help: "Queries that produced no result, by endpoint",
	}, []string{"endpoint"})
	RedisHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocoder_redis_hits_total",
		Help: "Total redis response cache hits",
	})
	RedisMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "geocoder_redis_misses_total",
		Help: "Total redis response cache misses",
	})
	ImportRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_import_runs_total",
		Help: "Import pipeline runs by result",
	}, []string{"result"})
	ImportDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "geocoder_import_duration_ms",
		Help:    "Full import run duration in milliseconds",
		Buckets: []float64{100, 500, 1000, 5000, 15000, 60000, 300000},
	})
	RecordsParsedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_records_parsed_total",
		Help: "Canonical records produced per source",
	}, []string{"source"})
	RecordsSkippedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_records_skipped_total",
		Help: "Malformed source records skipped per source",
	}, []string{"source"})
	SourceFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "geocoder_source_fetch_total",
		Help: "Source fetch outcomes (fresh, unchanged, cached, skipped)",
	}, []string{"source", "state"})
	SnapshotDocuments = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "geocoder_snapshot_documents",
		Help: "Documents in the serving snapshot by type",
	}, []string{"type"})
	SnapshotGeneration = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "geocoder_snapshot_generation",
		Help: "Generation id of the serving snapshot",
	})
)

func init() {
	prometheus.MustRegister(RequestsTotal)
	prometheus.MustRegister(RequestDurationMs)
	prometheus.MustRegister(NotFoundTotal)
	prometheus.MustRegister(RedisHitsTotal)
	prometheus.MustRegister(RedisMissesTotal)
	prometheus.MustRegister(ImportRunsTotal)
	prometheus.MustRegister(ImportDurationMs)
	prometheus.MustRegister(RecordsParsedTotal)
	prometheus.MustRegister(RecordsSkippedTotal)
	prometheus.MustRegister(SourceFetchTotal)
	prometheus.MustRegister(SnapshotDocuments)
	prometheus.MustRegister(SnapshotGeneration)
}

// ObserveSnapshot updates the per-type document gauges after a snapshot
// load or swap.
func ObserveSnapshot(set *model.DocumentSet) {
	SnapshotDocuments.WithLabelValues(string(model.TypeAddress)).Set(float64(len(set.Addresses)))
	SnapshotDocuments.WithLabelValues(string(model.TypeStreetSegment)).Set(float64(len(set.Segments)))
	SnapshotDocuments.WithLabelValues(string(model.TypeMunicipality)).Set(float64(len(set.Municipalities)))
	SnapshotDocuments.WithLabelValues(string(model.TypeFeature)).Set(float64(len(set.Features)))
}

// Handler exposes the registered metrics; mounted at /metrics in main.
func Handler() http.Handler { return promhttp.Handler() }
