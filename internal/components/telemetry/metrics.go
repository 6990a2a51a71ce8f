package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	brokenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forarchives_broken_reports_total",
			Help: "Total number of broken component reports",
		},
		[]string{"id"},
	)

	warningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forarchives_warning_reports_total",
			Help: "Total number of warning reports",
		},
		[]string{"id"},
	)

	countGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "forarchives_count",
			Help: "Point-in-time counts reported by components",
		},
		[]string{"id"},
	)
)

// MetricsAPI forwards every report to an inner API and additionally exports
// them as prometheus collectors.
type MetricsAPI struct {
	inner API
}

func NewMetricsAPI(inner API) MetricsAPI {
	return MetricsAPI{inner: OrDiscard(inner)}
}

func (m MetricsAPI) ReportBroken(id string, params ...any) {
	brokenTotal.WithLabelValues(id).Inc()
	m.inner.ReportBroken(id, params...)
}

func (m MetricsAPI) ReportWarning(id string, params ...any) {
	warningTotal.WithLabelValues(id).Inc()
	m.inner.ReportWarning(id, params...)
}

func (m MetricsAPI) ReportDebug(msg string, params ...any) {
	m.inner.ReportDebug(msg, params...)
}

func (m MetricsAPI) ReportCount(id string, count int64) {
	countGauge.WithLabelValues(id).Set(float64(count))
	m.inner.ReportCount(id, count)
}
