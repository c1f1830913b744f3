package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Host bridge and synchronizer metrics.
var (
	HostRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casetable",
			Name:      "host_requests_total",
			Help:      "Total number of requests sent to the host",
		},
		[]string{"action", "status"}, // status: "ok" / "rejected" / "error"
	)

	HostRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casetable",
			Name:      "host_request_duration_seconds",
			Help:      "Host request round-trip duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"action"},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casetable",
			Name:      "notifications_total",
			Help:      "Host notifications received, by kind and outcome",
		},
		[]string{"kind", "outcome"}, // outcome: "applied" / "stale" / "ignored" / "error"
	)

	ReloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casetable",
			Name:      "reloads_total",
			Help:      "Full dataset reloads",
		},
		[]string{"status"},
	)

	BuildWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casetable",
			Name:      "case_tree_warnings_total",
			Help:      "Inconsistencies skipped while building the case tree",
		},
		[]string{"kind"},
	)

	CasesLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "casetable",
			Name:      "cases_loaded",
			Help:      "Cases held by the active dataset",
		},
	)
)

var registerHostOnce sync.Once

// RegisterHostMetrics registers host and synchronizer metrics. Safe to call more than once.
func RegisterHostMetrics() {
	registerHostOnce.Do(func() {
		prometheus.MustRegister(
			HostRequestsTotal,
			HostRequestDuration,
			NotificationsTotal,
			ReloadsTotal,
			BuildWarningsTotal,
			CasesLoaded,
		)
	})
}
