package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MEV shield metrics collector.

var (
	collector     *Collector
	collectorOnce sync.Once
)

// Collector holds all engine metrics
type Collector struct {
	// Swap path
	SwapsEvaluated *prometheus.CounterVec
	SwapsRouted    *prometheus.CounterVec
	SwapsRejected  *prometheus.CounterVec

	// Liquidity path
	AddsRejected    *prometheus.CounterVec
	RemovalsFlagged *prometheus.CounterVec
	PositionsOpened *prometheus.CounterVec

	// Fee engine
	CurrentFee *prometheus.GaugeVec
	RiskScore  *prometheus.GaugeVec
	FeeChanges *prometheus.CounterVec

	// Execution network
	BatchesSubmitted *prometheus.CounterVec
	BatchesFallback  *prometheus.CounterVec
	BatchesResolved  *prometheus.CounterVec

	registry *prometheus.Registry
}

// GetCollector returns the singleton metrics collector
func GetCollector() *Collector {
	collectorOnce.Do(func() {
		collector = newCollector()
	})
	return collector
}

func newCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		SwapsEvaluated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "swaps_evaluated_total",
			Help: "Swaps assessed by the risk scorer",
		}, []string{"pool"}),
		SwapsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "swaps_routed_total",
			Help: "Swaps deflected to the execution network",
		}, []string{"pool"}),
		SwapsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "swaps_rejected_total",
			Help: "Swaps rejected as coordinated attacks",
		}, []string{"pool"}),
		AddsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "liquidity_adds_rejected_total",
			Help: "Liquidity adds rejected by the guard",
		}, []string{"pool"}),
		RemovalsFlagged: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "liquidity_removals_flagged_total",
			Help: "Liquidity removals flagged but allowed",
		}, []string{"pool"}),
		PositionsOpened: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "positions_opened_total",
			Help: "Encrypted positions opened",
		}, []string{"pool"}),
		CurrentFee: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mevshield", Name: "current_fee",
			Help: "Active pool fee in hundredths of a bip",
		}, []string{"pool"}),
		RiskScore: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "mevshield", Name: "mev_risk_score",
			Help: "Latest MEV risk score in basis points",
		}, []string{"pool"}),
		FeeChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "fee_changes_total",
			Help: "Significant fee changes by reason",
		}, []string{"pool", "reason"}),
		BatchesSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "batches_submitted_total",
			Help: "Batches accepted by the execution network",
		}, []string{"pool"}),
		BatchesFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "batches_fallback_total",
			Help: "Batches that fell back to a local id after a failed submit",
		}, []string{"pool"}),
		BatchesResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mevshield", Name: "batches_resolved_total",
			Help: "Batch callbacks processed, by outcome",
		}, []string{"outcome"}),
		registry: registry,
	}

	registry.MustRegister(
		c.SwapsEvaluated, c.SwapsRouted, c.SwapsRejected,
		c.AddsRejected, c.RemovalsFlagged, c.PositionsOpened,
		c.CurrentFee, c.RiskScore, c.FeeChanges,
		c.BatchesSubmitted, c.BatchesFallback, c.BatchesResolved,
	)

	return c
}

// Handler returns the HTTP handler exposing the registry
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
