package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTPRequestDuration tracks HTTP request latency across every route.
var HTTPRequestDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "bootnode",
		Subsystem: "api",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"method", "path", "status"},
)

// FleetOperationsTotal counts Fleet Orchestrator operations by outcome.
var FleetOperationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bootnode",
		Subsystem: "fleet",
		Name:      "operations_total",
		Help:      "Total number of fleet operations by type and result.",
	},
	[]string{"operation", "result"},
)

// CUTrackedTotal counts compute units tracked by the usage tracker.
var CUTrackedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Namespace: "bootnode",
		Subsystem: "billing",
		Name:      "cu_tracked_total",
		Help:      "Total number of compute units tracked across all projects.",
	},
)

// SyncReportsTotal counts usage-sync reports to Commerce by result.
var SyncReportsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bootnode",
		Subsystem: "billing",
		Name:      "sync_reports_total",
		Help:      "Total number of usage reports sent to Commerce, by result.",
	},
	[]string{"result"},
)

// WebhookEventsTotal counts Commerce webhook events received, by type and
// whether a handler existed for them and completed without error.
var WebhookEventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "bootnode",
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Total number of Commerce webhook events received.",
	},
	[]string{"event_type", "handled"},
)

// All returns the Bootnode-specific collectors for registration.
func All() []prometheus.Collector {
	return []prometheus.Collector{
		FleetOperationsTotal,
		CUTrackedTotal,
		SyncReportsTotal,
		WebhookEventsTotal,
	}
}

// NewMetricsRegistry creates a Prometheus registry with Go/process collectors,
// the shared HTTPRequestDuration metric, and the Bootnode-specific collectors.
func NewMetricsRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		HTTPRequestDuration,
	)
	for _, c := range All() {
		reg.MustRegister(c)
	}
	return reg
}
