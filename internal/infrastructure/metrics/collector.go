package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Transaction outcomes
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
	OutcomeFailed     = "failed"
)

// Collector holds the token store metrics on a private registry
type Collector struct {
	registry *prometheus.Registry

	transactions   *prometheus.CounterVec
	txDuration     prometheus.Histogram
	subscriptions  *prometheus.GaugeVec
	batchOps       *prometheus.CounterVec
	feedTerminated *prometheus.CounterVec
}

// NewCollector creates and registers the collector
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,

		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_registry_store_transactions_total",
			Help: "Total number of store transactions by outcome",
		}, []string{"outcome"}),

		txDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "token_registry_store_transaction_seconds",
			Help:    "Time spent holding the store, including the wait for the lock",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),

		subscriptions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "token_registry_feed_subscriptions",
			Help: "Number of live change feed subscriptions",
		}, []string{"kind"}),

		batchOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_registry_batch_operations_total",
			Help: "Total number of batch operations processed by kind",
		}, []string{"kind"}),

		feedTerminated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "token_registry_feed_terminations_total",
			Help: "Total number of change feeds ended by reason",
		}, []string{"reason"}),
	}

	registry.MustRegister(
		c.transactions,
		c.txDuration,
		c.subscriptions,
		c.batchOps,
		c.feedTerminated,
		collectors.NewGoCollector(),
	)

	return c
}

// ObserveTransaction records one store transaction
func (c *Collector) ObserveTransaction(outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.transactions.WithLabelValues(outcome).Inc()
	c.txDuration.Observe(d.Seconds())
}

// SubscriptionOpened increments the live subscription gauge
func (c *Collector) SubscriptionOpened(kind string) {
	if c == nil {
		return
	}
	c.subscriptions.WithLabelValues(kind).Inc()
}

// SubscriptionClosed decrements the live subscription gauge and counts the reason
func (c *Collector) SubscriptionClosed(kind, reason string) {
	if c == nil {
		return
	}
	c.subscriptions.WithLabelValues(kind).Dec()
	c.feedTerminated.WithLabelValues(reason).Inc()
}

// BatchOperation counts one processed batch operation
func (c *Collector) BatchOperation(kind string) {
	if c == nil {
		return
	}
	c.batchOps.WithLabelValues(kind).Inc()
}

// Registry returns the underlying registry
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
