package metrics

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const job = "salesreport"

type Registry struct {
	reg           *prometheus.Registry
	RowsRead      prometheus.Counter
	RowsDropped   *prometheus.CounterVec
	Orders        prometheus.Gauge
	Customers     prometheus.Gauge
	Revenue       prometheus.Gauge
	ArtifactBytes prometheus.Gauge
	StageSec      *prometheus.HistogramVec
	Runs          *prometheus.CounterVec
	LastSuccess   prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	rowsRead := prometheus.NewCounter(prometheus.CounterOpts{Name: "salesreport_rows_read_total", Help: "Raw rows read from the source."})
	rowsDropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "salesreport_rows_dropped_total", Help: "Rows dropped during validation by reason."}, []string{"reason"})
	orders := prometheus.NewGauge(prometheus.GaugeOpts{Name: "salesreport_orders", Help: "Validated orders in the last run."})
	customers := prometheus.NewGauge(prometheus.GaugeOpts{Name: "salesreport_customers", Help: "Distinct customers in the last run."})
	revenue := prometheus.NewGauge(prometheus.GaugeOpts{Name: "salesreport_total_revenue", Help: "Total revenue of the last run."})
	artifactBytes := prometheus.NewGauge(prometheus.GaugeOpts{Name: "salesreport_artifact_bytes", Help: "Size of the last analytics artifact."})
	stage := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "salesreport_stage_seconds",
		Help:    "Stage duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "salesreport_runs_total", Help: "Completed runs by result."}, []string{"result"})
	lastSuccess := prometheus.NewGauge(prometheus.GaugeOpts{Name: "salesreport_last_success_unixtime", Help: "Unix time of the last successful run."})

	r.MustRegister(rowsRead, rowsDropped, orders, customers, revenue, artifactBytes, stage, runs, lastSuccess)
	return &Registry{
		reg:           r,
		RowsRead:      rowsRead,
		RowsDropped:   rowsDropped,
		Orders:        orders,
		Customers:     customers,
		Revenue:       revenue,
		ArtifactBytes: artifactBytes,
		StageSec:      stage,
		Runs:          runs,
		LastSuccess:   lastSuccess,
	}
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Push sends the collected metrics to a Prometheus Pushgateway.
func (r *Registry) Push(ctx context.Context, url string) error {
	if err := push.New(url, job).Gatherer(r.reg).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

// WriteTextfile writes the metrics in text format for the node exporter
// textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
