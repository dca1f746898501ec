package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsCollector exposes the latest run report as gauges on its
// own registry.
type PrometheusMetricsCollector struct {
	registry    *prometheus.Registry
	rows        *prometheus.GaugeVec
	unmet       *prometheus.GaugeVec
	unscheduled prometheus.Gauge
	violations  *prometheus.GaugeVec
	stages      *prometheus.GaugeVec
	corrupted   *prometheus.GaugeVec
	runs        prometheus.Counter
}

// NewPrometheusMetricsCollector registers the vetsynth gauges.
func NewPrometheusMetricsCollector() *PrometheusMetricsCollector {
	p := &PrometheusMetricsCollector{
		registry: prometheus.NewRegistry(),
		rows: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vetsynth",
			Name:      "relation_rows",
			Help:      "Rows per exported relation.",
		}, []string{"relation", "stage"}),
		unmet: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vetsynth",
			Name:      "unmet_hours",
			Help:      "Doctor demand hours staffing could not absorb.",
		}, []string{"category"}),
		unscheduled: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vetsynth",
			Name:      "unscheduled_appointments",
			Help:      "Appointments left without a slot.",
		}),
		violations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vetsynth",
			Name:      "fk_violations",
			Help:      "Foreign key values with no matching primary key.",
		}, []string{"stage", "relation", "column"}),
		stages: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vetsynth",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
		}, []string{"stage"}),
		corrupted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vetsynth",
			Name:      "corrupted_cells",
			Help:      "Cells changed by the dirty-data pass.",
		}, []string{"relation", "column"}),
		runs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vetsynth",
			Name:      "reports_observed_total",
			Help:      "Run reports observed by this process.",
		}),
	}
	p.registry.MustRegister(p.rows, p.unmet, p.unscheduled, p.violations, p.stages, p.corrupted, p.runs)
	return p
}

// Registry returns the registry the gauges live on.
func (p *PrometheusMetricsCollector) Registry() *prometheus.Registry {
	return p.registry
}

// Observe replaces the gauges with the values of run.
func (p *PrometheusMetricsCollector) Observe(run RunReport) {
	p.rows.Reset()
	p.unmet.Reset()
	p.violations.Reset()
	p.stages.Reset()
	p.corrupted.Reset()

	for _, r := range run.Relations {
		p.rows.WithLabelValues(r.Relation, r.Stage).Set(float64(r.Rows))
	}
	for _, u := range run.Unmet {
		p.unmet.WithLabelValues(u.Category).Add(float64(u.Hours))
	}
	p.unscheduled.Set(float64(len(run.Unscheduled)))
	for _, fk := range run.ForeignKeys {
		p.violations.WithLabelValues(fk.Stage, fk.Relation, fk.Column).Set(float64(fk.Violations))
	}
	for _, s := range run.Metadata.Stages {
		p.stages.WithLabelValues(s.Stage).Set(s.Duration.Seconds())
	}
	for _, c := range run.Corruptions {
		p.corrupted.WithLabelValues(c.Relation, c.Column).Add(float64(c.Changed))
	}
	p.runs.Inc()
}
