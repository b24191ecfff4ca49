package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the membership ledger.
type Metrics struct {
	EnrollmentsCreated prometheus.Counter
	Transfers          prometheus.Counter
	TransferDuration   prometheus.Histogram
}

// New creates a Metrics instance with all membership ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		EnrollmentsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_enrollments_created_total",
			Help: "Total number of enrollments created",
		}),
		Transfers: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_enrollment_transfers_total",
			Help: "Total number of completed enrollment transfers",
		}),
		TransferDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registra_enrollment_transfer_duration_seconds",
			Help:    "Duration of transfer operations (two-write critical path)",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

// IncrementEnrollmentsCreated records a successful enrollment.
func (m *Metrics) IncrementEnrollmentsCreated() {
	m.EnrollmentsCreated.Inc()
}

// IncrementTransfers records a completed transfer.
func (m *Metrics) IncrementTransfers() {
	m.Transfers.Inc()
}

// ObserveTransfer records the duration of a transfer operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransfer(start time.Time) {
	m.TransferDuration.Observe(time.Since(start).Seconds())
}
