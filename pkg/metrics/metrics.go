// Package metrics exposes the server's Prometheus collectors: active
// sessions, sync rounds, edits applied, and document version.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collector holds every collector the diffsync server registers.
type Collector struct {
	SessionsActive      prometheus.Gauge
	SyncRoundsTotal     prometheus.Counter
	EditsAppliedTotal   prometheus.Counter
	DocumentVersion     prometheus.Gauge
	StaleClientsEvicted prometheus.Counter
	SyncErrorsTotal     prometheus.Counter
}

// register adds c to the default registry, tolerating double
// registration (useful across repeated test runs in one process) by
// returning the already-registered collector instead of panicking.
func register[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(T)
		}
	}
	return c
}

// New builds and registers the collectors under namespace, typically
// "diffsync".
func New(namespace string) *Collector {
	return &Collector{
		SessionsActive: register(prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of clients currently connected to the server.",
		})),
		SyncRoundsTotal: register(prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_rounds_total",
			Help:      "Total number of client/server reconciliation rounds completed.",
		})),
		EditsAppliedTotal: register(prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edits_applied_total",
			Help:      "Total number of edit operations applied to the authoritative document.",
		})),
		DocumentVersion: register(prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "document_version",
			Help:      "Current version counter of the authoritative document.",
		})),
		StaleClientsEvicted: register(prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_clients_evicted_total",
			Help:      "Total number of clients disconnected by the stale-client sweep.",
		})),
		SyncErrorsTotal: register(prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_errors_total",
			Help:      "Total number of failed reconciliation attempts.",
		})),
	}
}
