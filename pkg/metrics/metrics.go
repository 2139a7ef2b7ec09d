package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the notifier counters on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	triggers      *prometheus.CounterVec
	cycleFailures *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	pruned        prometheus.Counter
	accounts      *prometheus.CounterVec
}

// New returns a collector with all series registered.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		triggers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_notifier",
			Name:      "triggers_consumed_total",
			Help:      "Trigger events consumed, by kind.",
		}, []string{"kind"}),
		cycleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_notifier",
			Name:      "cycle_failures_total",
			Help:      "Dispatch or cleanup cycles that failed before completion, by kind.",
		}, []string{"kind"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_notifier",
			Name:      "deliveries_total",
			Help:      "Per recipient delivery outcomes.",
		}, []string{"outcome"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sensor_notifier",
			Name:      "tokens_pruned_total",
			Help:      "Recipient tokens removed after a permanent failure.",
		}),
		accounts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sensor_notifier",
			Name:      "cleanup_accounts_total",
			Help:      "Inactive account deletions attempted by the cleanup job, by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.triggers, m.cycleFailures, m.deliveries, m.pruned, m.accounts)
	return m
}

func (m *Metrics) IncTrigger(kind string) {
	if m != nil {
		m.triggers.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncCycleFailed(kind string) {
	if m != nil {
		m.cycleFailures.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) IncDelivery(outcome string) {
	if m != nil {
		m.deliveries.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) AddPruned(n int) {
	if m != nil && n > 0 {
		m.pruned.Add(float64(n))
	}
}

func (m *Metrics) IncAccountDeleted() {
	if m != nil {
		m.accounts.WithLabelValues("deleted").Inc()
	}
}

func (m *Metrics) IncAccountDeleteFailed() {
	if m != nil {
		m.accounts.WithLabelValues("failed").Inc()
	}
}

// Handler exposes the registry in the prometheus text format. A nil
// collector serves 404.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
