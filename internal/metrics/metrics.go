package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the escrow service.
type Metrics struct {
	Operations      *prometheus.CounterVec
	OperationErrors *prometheus.CounterVec
	Duration        *prometheus.HistogramVec
	Staked          *prometheus.CounterVec
	Withdrawn       *prometheus.CounterVec
	Validations     *prometheus.CounterVec
	RewardMoved     *prometheus.CounterVec
	Agreements      prometheus.Gauge
}

// New registers every escrow metric with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slaescrow_operations_total",
			Help: "Total number of escrow operations by kind",
		}, []string{"op"}),
		OperationErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slaescrow_operation_errors_total",
			Help: "Total number of failed escrow operations by kind and error code",
		}, []string{"op", "code"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "slaescrow_operation_duration_seconds",
			Help:    "Duration of escrow operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"op"}),
		Staked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slaescrow_staked_tokens_total",
			Help: "Collateral deposited by side",
		}, []string{"side"}),
		Withdrawn: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slaescrow_withdrawn_tokens_total",
			Help: "Collateral paid out by side",
		}, []string{"side"}),
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slaescrow_validations_total",
			Help: "Settled periods by outcome",
		}, []string{"status"}),
		RewardMoved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "slaescrow_reward_tokens_total",
			Help: "Collateral moved between pools by paying side",
		}, []string{"from"}),
		Agreements: f.NewGauge(prometheus.GaugeOpts{
			Name: "slaescrow_agreements",
			Help: "Number of deployed agreements",
		}),
	}
}

// Observe records an operation outcome. code is empty on success.
// Call with time.Now() at the start of the operation.
func (m *Metrics) Observe(op string, start time.Time, code string) {
	m.Operations.WithLabelValues(op).Inc()
	m.Duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if code != "" {
		m.OperationErrors.WithLabelValues(op, code).Inc()
	}
}
