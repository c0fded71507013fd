package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the provisioning module: client
// lifecycle counts and critical path durations.
type Metrics struct {
	ClientsCreated       prometheus.Counter
	ClientsDeleted       prometheus.Counter
	ProvisionDuration    prometheus.Histogram
	ReconcileDuration    prometheus.Histogram
	CompensationFailures prometheus.Counter
	RegionFailures       *prometheus.CounterVec
}

// New creates and registers all provisioning metrics.
func New() *Metrics {
	return &Metrics{
		ClientsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detour_clients_created_total",
			Help: "Total number of tunnel clients provisioned on both regions",
		}),
		ClientsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detour_clients_deleted_total",
			Help: "Total number of tunnel clients deleted",
		}),
		ProvisionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "detour_provision_duration_seconds",
			Help:    "Duration of end-to-end client provisioning (both regions plus synthesis)",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		ReconcileDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "detour_reconcile_duration_seconds",
			Help:    "Duration of document reconciliation against live region state",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20},
		}),
		CompensationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "detour_compensation_failures_total",
			Help: "Times the compensating delete after a partial provisioning failure itself failed",
		}),
		RegionFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "detour_region_failures_total",
			Help: "Failed control-plane calls by region",
		}, []string{"region"}),
	}
}

// ObserveProvision records the duration of a provisioning workflow.
func (m *Metrics) ObserveProvision(start time.Time) {
	m.ProvisionDuration.Observe(time.Since(start).Seconds())
}

// ObserveReconcile records the duration of a reconcile workflow.
func (m *Metrics) ObserveReconcile(start time.Time) {
	m.ReconcileDuration.Observe(time.Since(start).Seconds())
}
