package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	DraftsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dumpwatch_drafts_total",
		Help: "Draft creation attempts by outcome (ok, not_ready, out_of_bounds)",
	}, []string{"outcome"})
	ClassificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dumpwatch_classifications_total",
		Help: "Proximity classifications by resulting risk tier",
	}, []string{"tier"})
	GeometryFaultsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dumpwatch_geometry_faults_total",
		Help: "Features skipped because their geometry could not be processed",
	}, []string{"layer"})
	LayerFeatures = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dumpwatch_layer_features",
		Help: "Features loaded per geometry layer",
	}, []string{"layer"})
	AssessCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dumpwatch_assess_cache_total",
		Help: "Placement cache lookups by tier (lru, redis) and result (hit, miss)",
	}, []string{"tier", "result"})
	RemoteRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dumpwatch_remote_requests_total",
		Help: "Remote store calls by operation and outcome",
	}, []string{"op", "outcome"})
	RemoteDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dumpwatch_remote_duration_ms",
		Help:    "Remote store call duration in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
	}, []string{"op"})
	StoreReports = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dumpwatch_store_reports",
		Help: "Reports currently held in the local store",
	})
	MirrorRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dumpwatch_mirror_runs_total",
		Help: "Archive mirror runs by outcome",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(DraftsTotal)
	prometheus.MustRegister(ClassificationsTotal)
	prometheus.MustRegister(GeometryFaultsTotal)
	prometheus.MustRegister(LayerFeatures)
	prometheus.MustRegister(AssessCacheTotal)
	prometheus.MustRegister(RemoteRequestsTotal)
	prometheus.MustRegister(RemoteDurationMs)
	prometheus.MustRegister(StoreReports)
	prometheus.MustRegister(MirrorRunsTotal)
}

// Handler：暴露已注册指标，由主入口挂载到 <API_BASE>/metrics
func Handler() http.Handler { return promhttp.Handler() }
