package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder is the Recorder implementation backing
// cmd/knnbench's --metrics-addr flag. Each instance registers its own
// vectors into the given registerer (pass prometheus.NewRegistry() for
// test isolation, or prometheus.DefaultRegisterer for a long-running
// process with a single Index).
type PrometheusRecorder struct {
	nodes     prometheus.Gauge
	buckets   prometheus.Gauge
	batches   prometheus.Counter
	queries   prometheus.Counter
	inspected prometheus.Histogram
}

// NewPrometheusRecorder registers its vectors into reg and returns the
// ready-to-use Recorder.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	r := &PrometheusRecorder{
		nodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "knnidx_index_nodes",
			Help: "Number of kd-tree nodes in the current index (0 for brute force).",
		}),
		buckets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "knnidx_index_buckets",
			Help: "Number of bucket entries in the current index (one per point).",
		}),
		batches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knnidx_batches_total",
			Help: "Number of Knn/KnnRadii batch calls served.",
		}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knnidx_queries_total",
			Help: "Number of individual query columns served across all batches.",
		}),
		inspected: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "knnidx_leaf_points_inspected_per_batch",
			Help:    "Leaf points inspected per batch call, when COLLECT_STATISTICS is set.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
	}
	reg.MustRegister(r.nodes, r.buckets, r.batches, r.queries, r.inspected)
	return r
}

func (r *PrometheusRecorder) ObserveIndexSize(nodes, buckets int) {
	r.nodes.Set(float64(nodes))
	r.buckets.Set(float64(buckets))
}

func (r *PrometheusRecorder) ObserveBatch(queries int, leafPointsInspected uint64) {
	r.batches.Inc()
	r.queries.Add(float64(queries))
	if leafPointsInspected > 0 {
		r.inspected.Observe(float64(leafPointsInspected))
	}
}
