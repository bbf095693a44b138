package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Flush results used as the "result" label of FlushesTotal.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultEmpty   = "empty"
)

// Metrics holds all Prometheus metrics of the pipeline
type Metrics struct {
	registry *prometheus.Registry

	// Scan metrics
	ItemsScanned prometheus.Counter
	ItemsSkipped prometheus.Counter

	// Queue metrics
	RecordsEnqueued  prometheus.Counter
	RecordsDelivered prometheus.Counter
	RecordsRequeued  prometheus.Counter
	FlushesTotal     *prometheus.CounterVec
	QueueBuffered    prometheus.Gauge
}

// New creates a metrics collector backed by its own registry, so several
// pipelines (and tests) can coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ItemsScanned: factory.NewCounter(prometheus.CounterOpts{
			Name: "feedrelay_items_scanned_total",
			Help: "Total number of feed items inspected by scans",
		}),
		ItemsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "feedrelay_items_skipped_total",
			Help: "Total number of feed items skipped during extraction",
		}),
		RecordsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "feedrelay_records_enqueued_total",
			Help: "Total number of records accepted into the outbound queue",
		}),
		RecordsDelivered: factory.NewCounter(prometheus.CounterOpts{
			Name: "feedrelay_records_delivered_total",
			Help: "Total number of records delivered successfully",
		}),
		RecordsRequeued: factory.NewCounter(prometheus.CounterOpts{
			Name: "feedrelay_records_requeued_total",
			Help: "Total number of records returned to the queue after a failed delivery",
		}),
		FlushesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "feedrelay_flushes_total",
			Help: "Total number of flush attempts by result",
		}, []string{"result"}),
		QueueBuffered: factory.NewGauge(prometheus.GaugeOpts{
			Name: "feedrelay_queue_buffered",
			Help: "Number of records waiting in the outbound queue",
		}),
	}
}

// Registry returns the registry all metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
