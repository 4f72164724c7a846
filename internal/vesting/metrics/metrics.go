package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the vesting module.
type Metrics struct {
	Deployments prometheus.Counter

	Releases prometheus.Counter

	// Dispositions of the post-release remainder by kind
	Dispositions *prometheus.CounterVec

	// Base units moved out of custody, by operation
	Disbursed *prometheus.CounterVec

	OperationLatency *prometheus.HistogramVec

	// Rejected operations by operation and reason
	Rejections *prometheus.CounterVec
}

// New registers vesting metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Deployments: factory.NewCounter(prometheus.CounterOpts{
			Name: "custody_deployments_total",
			Help: "Total custodians deployed",
		}),

		Releases: factory.NewCounter(prometheus.CounterOpts{
			Name: "custody_releases_total",
			Help: "Total successful releases",
		}),

		Dispositions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_dispositions_total",
			Help: "Total remainder dispositions by kind",
		}, []string{"kind"}), // kind: "recovered", "unlocked"

		Disbursed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_disbursed_amount_total",
			Help: "Base units transferred out of custody by operation",
		}, []string{"op"}),

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "custody_operation_duration_seconds",
			Help:    "Duration of custodian operations including the ledger transfer",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),

		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "custody_rejections_total",
			Help: "Total rejected custodian operations by operation and reason",
		}, []string{"op", "reason"}),
	}
}

func (m *Metrics) IncDeployments() {
	if m != nil {
		m.Deployments.Inc()
	}
}

func (m *Metrics) IncReleases() {
	if m != nil {
		m.Releases.Inc()
	}
}

func (m *Metrics) IncDisposition(kind string) {
	if m != nil {
		m.Dispositions.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) AddDisbursed(op string, amount uint64) {
	if m != nil {
		m.Disbursed.WithLabelValues(op).Add(float64(amount))
	}
}

func (m *Metrics) ObserveOperation(op string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

func (m *Metrics) IncRejection(op, reason string) {
	if m != nil {
		m.Rejections.WithLabelValues(op, reason).Inc()
	}
}
