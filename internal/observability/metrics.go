// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Discovery metrics
	PairsDiscovered    *prometheus.CounterVec
	CandidatesAccepted *prometheus.CounterVec
	CandidatesRejected *prometheus.CounterVec

	// Trading metrics
	BuysExecuted  *prometheus.CounterVec
	SellsExecuted *prometheus.CounterVec
	OpenPositions prometheus.Gauge

	// Endpoint metrics
	EndpointOutcomes *prometheus.CounterVec
	ActiveEndpoints  *prometheus.GaugeVec
	RPCCallLatency   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sniper_bot"
	}

	return &Metrics{
		// Discovery metrics
		PairsDiscovered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "pairs_discovered_total",
			Help:      "Total number of new pairs discovered by network",
		}, []string{"network"}),
		CandidatesAccepted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "candidates_accepted_total",
			Help:      "Total number of candidates that passed the security gate",
		}, []string{"network"}),
		CandidatesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "gate",
			Name:      "candidates_rejected_total",
			Help:      "Total number of candidates rejected by reason",
		}, []string{"network", "reason"}),

		// Trading metrics
		BuysExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "buys_executed_total",
			Help:      "Total number of buys executed by network",
		}, []string{"network"}),
		SellsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "sells_executed_total",
			Help:      "Total number of sells executed by close reason",
		}, []string{"network", "reason"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "trading",
			Name:      "open_positions",
			Help:      "Current number of open positions",
		}),

		// Endpoint metrics
		EndpointOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rpcpool",
			Name:      "endpoint_outcomes_total",
			Help:      "Total number of endpoint call outcomes",
		}, []string{"network", "outcome"}),
		ActiveEndpoints: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "rpcpool",
			Name:      "active_endpoints",
			Help:      "Current number of selectable endpoints per network",
		}, []string{"network"}),
		RPCCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "evm",
			Name:      "rpc_call_latency_seconds",
			Help:      "EVM RPC call latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordPairDiscovered increments the pairs discovered counter.
func RecordPairDiscovered(network string) {
	DefaultMetrics.PairsDiscovered.WithLabelValues(network).Inc()
}

// RecordCandidateAccepted increments the accepted candidates counter.
func RecordCandidateAccepted(network string) {
	DefaultMetrics.CandidatesAccepted.WithLabelValues(network).Inc()
}

// RecordCandidateRejected increments the rejected candidates counter.
func RecordCandidateRejected(network, reason string) {
	DefaultMetrics.CandidatesRejected.WithLabelValues(network, reason).Inc()
}

// RecordBuy increments the buys executed counter.
func RecordBuy(network string) {
	DefaultMetrics.BuysExecuted.WithLabelValues(network).Inc()
}

// RecordSell increments the sells executed counter.
func RecordSell(network, reason string) {
	DefaultMetrics.SellsExecuted.WithLabelValues(network, reason).Inc()
}

// UpdateOpenPositions updates the open positions gauge.
func UpdateOpenPositions(n int) {
	DefaultMetrics.OpenPositions.Set(float64(n))
}

// RecordEndpointOutcome increments the endpoint outcome counter.
func RecordEndpointOutcome(network, outcome string) {
	DefaultMetrics.EndpointOutcomes.WithLabelValues(network, outcome).Inc()
}

// UpdateActiveEndpoints updates the selectable endpoints gauge.
func UpdateActiveEndpoints(network string, n int) {
	DefaultMetrics.ActiveEndpoints.WithLabelValues(network).Set(float64(n))
}

// RecordRPCLatency records RPC call latency.
func RecordRPCLatency(method string, seconds float64) {
	DefaultMetrics.RPCCallLatency.WithLabelValues(method).Observe(seconds)
}
