package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Transaction outcome labels.
const (
	TxOutcomeSuccess      = "success"
	TxOutcomeLockConflict = "lock_conflict"
	TxOutcomeFailure      = "failure"
)

// TransactionMetrics records stock transaction outcomes and durations.
type TransactionMetrics struct {
	duration *prometheus.HistogramVec
	outcomes *prometheus.CounterVec
	retries  prometheus.Counter
}

// NewTransactionMetrics registers the transaction metrics on the provided registerer.
func NewTransactionMetrics(reg prometheus.Registerer) *TransactionMetrics {
	if reg == nil {
		return &TransactionMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_tx_duration_seconds",
		Help:    "Duration of stock transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_tx_total",
		Help: "Stock transactions by outcome.",
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inventory_tx_retries_total",
		Help: "Stock transaction execute-phase retries.",
	})
	reg.MustRegister(duration, outcomes, retries)
	return &TransactionMetrics{
		duration: duration,
		outcomes: outcomes,
		retries:  retries,
	}
}

// Observe records one finished transaction with its outcome label.
func (t *TransactionMetrics) Observe(outcome string, duration time.Duration) {
	if t == nil || t.duration == nil {
		return
	}
	t.duration.WithLabelValues(outcome).Observe(duration.Seconds())
	t.outcomes.WithLabelValues(outcome).Inc()
}

// IncRetry counts one execute-phase retry.
func (t *TransactionMetrics) IncRetry() {
	if t == nil || t.retries == nil {
		return
	}
	t.retries.Inc()
}
