package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics собирает показатели Prometheus для бота и экспорта
type Metrics struct {
	CommandsProcessed *prometheus.CounterVec
	ExportCycles      *prometheus.CounterVec
	CategoryFailures  *prometheus.CounterVec
	ExportDuration    prometheus.Histogram
	ExportedRows      *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// New создает и регистрирует метрики
func New() *Metrics {
	return &Metrics{
		CommandsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kassabot_commands_total",
			Help: "Total number of operator commands processed",
		}, []string{"command", "source"}),

		ExportCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kassabot_export_cycles_total",
			Help: "Export cycles by outcome",
		}, []string{"result"}),

		CategoryFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kassabot_category_failures_total",
			Help: "Per-category export failures by kind",
		}, []string{"category", "kind"}),

		ExportDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "kassabot_export_duration_seconds",
			Help:    "Time spent running a full export cycle",
			Buckets: prometheus.DefBuckets,
		}),

		ExportedRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kassabot_exported_rows_total",
			Help: "Rows appended to the destination document",
		}, []string{"category"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "kassabot_http_requests_total",
			Help: "HTTP control channel requests by status",
		}, []string{"endpoint", "status"}),
	}
}
