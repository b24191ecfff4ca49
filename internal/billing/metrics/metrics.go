package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the financial ledger.
type Metrics struct {
	InvoicesCreated prometheus.Counter
	PaymentsApplied prometheus.Counter
	Repairs         prometheus.Counter
	PaymentAmount   prometheus.Histogram
}

// New creates a Metrics instance with all financial ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		InvoicesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_invoices_created_total",
			Help: "Total number of invoices created",
		}),
		PaymentsApplied: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_payments_applied_total",
			Help: "Total number of payments applied (refunds included)",
		}),
		Repairs: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_invoice_repairs_total",
			Help: "Total number of invoice repairs that changed stored fields",
		}),
		PaymentAmount: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registra_payment_amount_cents",
			Help:    "Absolute payment amounts in cents",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		}),
	}
}

// IncrementInvoicesCreated records a created invoice.
func (m *Metrics) IncrementInvoicesCreated() {
	m.InvoicesCreated.Inc()
}

// ObservePayment records an applied payment.
func (m *Metrics) ObservePayment(amountCents int64) {
	m.PaymentsApplied.Inc()
	if amountCents < 0 {
		amountCents = -amountCents
	}
	m.PaymentAmount.Observe(float64(amountCents))
}

// IncrementRepairs records a repair that rewrote derived fields.
func (m *Metrics) IncrementRepairs() {
	m.Repairs.Inc()
}
