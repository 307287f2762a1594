package adminkit

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsOptions configures the Prometheus collectors.
type MetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Buckets    []float64
}

// Metrics exposes Prometheus collectors for transactions and authorization
// decisions.
type Metrics struct {
	Transactions        *prometheus.CounterVec
	TransactionDuration *prometheus.HistogramVec
	Decisions           *prometheus.CounterVec
}

// NewMetrics constructs the collectors and registers them. Collectors that
// are already registered are reused.
func NewMetrics(opts MetricsOptions) (*Metrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = "adminkit"
	}

	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	transactions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transactions_total",
		Help:      "Total number of finished unit-of-work transactions partitioned by outcome.",
	}, []string{"outcome"}))
	if err != nil {
		return nil, err
	}

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transaction_duration_seconds",
		Help:      "Histogram of unit-of-work transaction durations in seconds partitioned by outcome.",
		Buckets:   buckets,
	}, []string{"outcome"})
	if err := reg.Register(duration); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register transaction duration collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("existing duration collector has unexpected type %T", already.ExistingCollector)
		}
		duration = existing
	}

	decisions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "authorization_decisions_total",
		Help:      "Total number of authorization decisions partitioned by result.",
	}, []string{"result"}))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		Transactions:        transactions,
		TransactionDuration: duration,
		Decisions:           decisions,
	}, nil
}

func registerCounterVec(reg prometheus.Registerer, counter *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(counter); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, fmt.Errorf("register counter collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, fmt.Errorf("existing counter collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return counter, nil
}

func (m *Metrics) observeTransaction(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.Transactions.WithLabelValues(outcome).Inc()
	m.TransactionDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

func (m *Metrics) observeDecision(allowed bool) {
	if m == nil {
		return
	}
	result := "denied"
	if allowed {
		result = "allowed"
	}
	m.Decisions.WithLabelValues(result).Inc()
}
