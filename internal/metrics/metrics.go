package metrics

import (
	"github.com/prometheus/client_golang/prometheus"          // Prometheus client
	"github.com/prometheus/client_golang/prometheus/promauto" // Auto-registering constructors
)

// Payment outcome labels
const (
	OutcomeSettled = "settled" // Connector settled the payment
	OutcomeFailed  = "failed"  // Connector reported a failure
	OutcomeDenied  = "denied"  // Ledger denied before any connector call
)

// Payments tracks the engine's payment outcomes for operational visibility
type Payments struct {
	requests *prometheus.CounterVec
	sats     *prometheus.CounterVec
}

// NewPayments creates and registers the payment counters
func NewPayments(namespace string) *Payments {
	return &Payments{
		requests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_total",
				Help:      "Total number of payment requests by outcome",
			},
			[]string{"outcome"},
		),
		sats: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_sats_total",
				Help:      "Total satoshis moved by settled payments",
			},
			[]string{"outcome"},
		),
	}
}

// Record counts one payment outcome. Safe on a nil receiver so the
// orchestrator can run without metrics in tests.
func (p *Payments) Record(outcome string, amountSat int64) {
	if p == nil {
		return
	}
	p.requests.WithLabelValues(outcome).Inc()
	if outcome == OutcomeSettled {
		p.sats.WithLabelValues(outcome).Add(float64(amountSat))
	}
}
