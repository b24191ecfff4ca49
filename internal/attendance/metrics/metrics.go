package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the presence ledger.
type Metrics struct {
	RecordsMarked prometheus.Counter
	BatchSize     prometheus.Histogram
}

// New creates a Metrics instance with all presence ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		RecordsMarked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "registra_attendance_records_marked_total",
			Help: "Total number of attendance records written (inserts and overwrites)",
		}),
		BatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "registra_attendance_batch_size",
			Help:    "Number of records per class marking batch",
			Buckets: []float64{1, 5, 10, 20, 30, 50, 100},
		}),
	}
}

// ObserveBatch records a completed class marking batch.
func (m *Metrics) ObserveBatch(size int) {
	m.RecordsMarked.Add(float64(size))
	m.BatchSize.Observe(float64(size))
}
