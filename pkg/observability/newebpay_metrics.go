package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Callback metrics
	callbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newebpay_callbacks_total",
		Help: "Total NewebPay callbacks received",
	}, []string{
		"endpoint", // return, notify
		"outcome",  // ok, not_found, error
	})

	reconcileTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newebpay_reconcile_transitions_total",
		Help: "Transaction state transitions applied from callbacks",
	}, []string{
		"state", // done, error, pending, noop
	})

	// Refund metrics
	refundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newebpay_refunds_total",
		Help: "Total NewebPay refund attempts",
	}, []string{
		"outcome", // success, rejected, network_error, invalid, in_progress
	})

	refundDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "newebpay_refund_request_duration_seconds",
		Help: "Duration of CreditCard/Cancel requests",
		// Buckets: 100ms to 30s (gateway timeout)
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	refundCircuitState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "newebpay_refund_circuit_state",
		Help: "Refund circuit breaker state (0=closed, 1=open, 2=half-open)",
	})

	// Checkout metrics
	checkoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newebpay_checkouts_total",
		Help: "Total MPG payment payloads built",
	}, []string{
		"currency",
		"status", // built, rejected
	})

	cryptoFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newebpay_crypto_failures_total",
		Help: "Envelope failures by operation",
	}, []string{
		"operation", // verify, decrypt
	})
)

// RecordCallback counts a callback by endpoint and outcome
func RecordCallback(endpoint, outcome string) {
	callbacksTotal.WithLabelValues(endpoint, outcome).Inc()
}

// RecordTransition counts a reconcile result
func RecordTransition(state string) {
	reconcileTransitionsTotal.WithLabelValues(state).Inc()
}

// RecordRefund counts a refund attempt by outcome
func RecordRefund(outcome string) {
	refundsTotal.WithLabelValues(outcome).Inc()
}

// ObserveRefundDuration records the round trip of a refund request
func ObserveRefundDuration(d time.Duration) {
	refundDuration.Observe(d.Seconds())
}

// SetRefundCircuitState publishes the refund circuit breaker state
func SetRefundCircuitState(state int) {
	refundCircuitState.Set(float64(state))
}

// RecordCheckout counts a checkout payload attempt
func RecordCheckout(currency, status string) {
	checkoutsTotal.WithLabelValues(currency, status).Inc()
}

// RecordCryptoFailure counts an envelope verify or decrypt failure
func RecordCryptoFailure(operation string) {
	cryptoFailuresTotal.WithLabelValues(operation).Inc()
}
