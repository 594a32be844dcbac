// Package metrics exposes Prometheus collectors for ledger activity and the
// derived analytics views.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the flowguard collectors. Each instance owns its registry so
// servers and tests never collide on registration.
//
// Metrics:
//   - flowguard_ledger_operations_total{op,result}
//   - flowguard_health_score
//   - flowguard_live_commitments
//   - flowguard_feed_items_total{trigger}
//   - flowguard_brief_deliveries_total{adapter,result}
//   - flowguard_advisor_requests_total{kind,status}
type Metrics struct {
	Registry *prometheus.Registry

	LedgerOps       *prometheus.CounterVec
	HealthScore     prometheus.Gauge
	LiveCommitments prometheus.Gauge
	FeedItems       *prometheus.CounterVec
	BriefDeliveries *prometheus.CounterVec
	AdvisorRequests *prometheus.CounterVec
}

// New creates a registry with the process/go collectors and the flowguard metrics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		LedgerOps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_ledger_operations_total",
			Help: "Ledger mutations by operation and result",
		}, []string{"op", "result"}),
		HealthScore: f.NewGauge(prometheus.GaugeOpts{
			Name: "flowguard_health_score",
			Help: "Most recently computed flow health score (0-100)",
		}),
		LiveCommitments: f.NewGauge(prometheus.GaugeOpts{
			Name: "flowguard_live_commitments",
			Help: "Commitments in BACKLOG or ACTIVE at the last health computation",
		}),
		FeedItems: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_feed_items_total",
			Help: "Reflection feed items shown, by trigger type",
		}, []string{"trigger"}),
		BriefDeliveries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_brief_deliveries_total",
			Help: "Weekly brief deliveries by adapter and result",
		}, []string{"adapter", "result"}),
		AdvisorRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "flowguard_advisor_requests_total",
			Help: "Advisor and pre-mortem calls by kind and result status",
		}, []string{"kind", "status"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// ObserveLedger records one ledger operation outcome. Safe on a nil receiver.
func (m *Metrics) ObserveLedger(op string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.LedgerOps.WithLabelValues(op, result).Inc()
}

// ObserveHealth records the latest score and live count. Safe on a nil receiver.
func (m *Metrics) ObserveHealth(score, live int) {
	if m == nil {
		return
	}
	m.HealthScore.Set(float64(score))
	m.LiveCommitments.Set(float64(live))
}

// ObserveFeedItem counts one shown feed item. Safe on a nil receiver.
func (m *Metrics) ObserveFeedItem(trigger string) {
	if m == nil {
		return
	}
	m.FeedItems.WithLabelValues(trigger).Inc()
}

// ObserveBrief counts one brief delivery attempt. Safe on a nil receiver.
func (m *Metrics) ObserveBrief(adapter string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.BriefDeliveries.WithLabelValues(adapter, result).Inc()
}

// ObserveAdvisor counts one advisor call by kind and status. Safe on a nil receiver.
func (m *Metrics) ObserveAdvisor(kind, status string) {
	if m == nil {
		return
	}
	m.AdvisorRequests.WithLabelValues(kind, status).Inc()
}
