package keeper

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	opConsumeEvents   = "consume_events"
	opUpdateFunding   = "update_funding"
	opUpdateIndexRate = "update_index_and_rate"

	resultSuccess = "success"
	resultFailure = "failure"
)

type Metrics struct {
	transactions   *prometheus.CounterVec
	eventsConsumed prometheus.Counter
	confirmTime    *prometheus.HistogramVec
}

// NewMetrics registers the crank collectors on reg. A nil reg leaves them
// unregistered, which tests rely on.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mango",
			Subsystem: "crank",
			Name:      "transactions_total",
			Help:      "Crank transactions by operation and result.",
		}, []string{"op", "result"}),
		eventsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mango",
			Subsystem: "crank",
			Name:      "events_consumed_total",
			Help:      "Perp events submitted for consumption.",
		}),
		confirmTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mango",
			Subsystem: "crank",
			Name:      "confirmation_seconds",
			Help:      "Time from send to confirmation of crank transactions.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32},
		}, []string{"op"}),
	}
	if reg != nil {
		reg.MustRegister(m.transactions, m.eventsConsumed, m.confirmTime)
	}
	return m
}

func (m *Metrics) observe(op string, err error) {
	result := resultSuccess
	if err != nil {
		result = resultFailure
	}
	m.transactions.WithLabelValues(op, result).Inc()
}
