package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	intentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_intents_total",
			Help: "Intents that reached a status, by status",
		},
		[]string{"status"},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_operations_total",
			Help: "Pipeline operations by operation and result",
		},
		[]string{"operation", "result"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_operation_duration_seconds",
			Help:    "Pipeline operation duration in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	balanceRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_balance_refresh_total",
			Help: "Balance refreshes by result",
		},
		[]string{"result"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexus_active_sessions",
			Help: "Number of connected identities",
		},
	)
)

func resultLabel(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
