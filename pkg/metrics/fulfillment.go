package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Fulfillment records order transitions, assignment outcomes and HTTP latency.
// A nil *Fulfillment is a valid no-op recorder.
type Fulfillment struct {
	transitions *prometheus.CounterVec
	assignments *prometheus.CounterVec
	stockMisses prometheus.Counter
	cashTotal   prometheus.Counter
	httpLatency *prometheus.HistogramVec
}

// NewFulfillment registers the fulfillment metrics on the provided registerer.
func NewFulfillment(reg prometheus.Registerer) *Fulfillment {
	if reg == nil {
		return &Fulfillment{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_total",
		Help: "Order status transitions by source and target status.",
	}, []string{"from", "to"})
	assignments := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_assignments_total",
		Help: "Delivery assignment attempts by path and outcome.",
	}, []string{"path", "outcome"})
	stockMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_stock_shortfalls_total",
		Help: "Checkouts rejected because a conditional stock decrement matched no row.",
	})
	cashTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cash_collected_amount_total",
		Help: "Cash collected by delivery agents, in currency units.",
	})
	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern and status.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	reg.MustRegister(transitions, assignments, stockMisses, cashTotal, httpLatency)
	return &Fulfillment{
		transitions: transitions,
		assignments: assignments,
		stockMisses: stockMisses,
		cashTotal:   cashTotal,
		httpLatency: httpLatency,
	}
}

func (m *Fulfillment) ObserveTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(from), normalizeLabel(to)).Inc()
}

// ObserveAssignment counts a push ("push") or pull ("claim") attempt.
func (m *Fulfillment) ObserveAssignment(path, outcome string) {
	if m == nil || m.assignments == nil {
		return
	}
	m.assignments.WithLabelValues(normalizeLabel(path), normalizeLabel(outcome)).Inc()
}

func (m *Fulfillment) IncStockShortfall() {
	if m == nil || m.stockMisses == nil {
		return
	}
	m.stockMisses.Inc()
}

func (m *Fulfillment) AddCashCollected(amount float64) {
	if m == nil || m.cashTotal == nil || amount <= 0 {
		return
	}
	m.cashTotal.Add(amount)
}

func (m *Fulfillment) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil || m.httpLatency == nil {
		return
	}
	m.httpLatency.WithLabelValues(method, normalizeLabel(route), strconv.Itoa(status)).Observe(d.Seconds())
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
