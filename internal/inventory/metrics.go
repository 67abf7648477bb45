package inventory

import "github.com/prometheus/client_golang/prometheus"

const (
	importAdded   = "added"
	importSkipped = "skipped"
	importIgnored = "ignored"
)

// Metrics are the domain counters of the coordinator. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	SalesCommitted  prometheus.Counter
	SalesVoided     prometheus.Counter
	PersistFailures prometheus.Counter
	StockClamped    prometheus.Counter
	ImportLines     *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SalesCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_committed_total",
			Help: "Sales recorded in the ledger",
		}),
		SalesVoided: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_sales_voided_total",
			Help: "Sales reversed with stock restored",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_persist_failures_total",
			Help: "Failed flushes of catalog or ledger to the blob store",
		}),
		StockClamped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pos_stock_clamped_units_total",
			Help: "Units dropped because a stock adjustment would have gone below zero",
		}),
		ImportLines: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_import_lines_total",
			Help: "Order lines returned by the interpreter, by outcome",
		}, []string{"result"}),
	}

	reg.MustRegister(m.SalesCommitted, m.SalesVoided, m.PersistFailures, m.StockClamped, m.ImportLines)
	return m
}

func (m *Metrics) saleCommitted() {
	if m != nil {
		m.SalesCommitted.Inc()
	}
}

func (m *Metrics) saleVoided() {
	if m != nil {
		m.SalesVoided.Inc()
	}
}

func (m *Metrics) persistFailed() {
	if m != nil {
		m.PersistFailures.Inc()
	}
}

func (m *Metrics) stockClamped(units int) {
	if m != nil && units > 0 {
		m.StockClamped.Add(float64(units))
	}
}

func (m *Metrics) importLine(result string) {
	if m != nil {
		m.ImportLines.WithLabelValues(result).Inc()
	}
}
