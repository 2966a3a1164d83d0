package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	VenueCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_venue_calls_total",
		Help: "Venue calls by market, venue and outcome",
	}, []string{"market", "venue", "outcome"})

	VenueLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arb_venue_latency_seconds",
		Help:    "Time to obtain a quote from one venue",
		Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
	}, []string{"market", "venue"})

	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_breaker_state",
		Help: "Circuit breaker state per venue: 0 closed, 1 half-open, 2 open",
	}, []string{"venue"})

	TokenCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_token_cache_lookups_total",
		Help: "Token metadata lookups by result (hit, miss, fallback)",
	}, []string{"result"})

	PoolCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_pool_cache_total",
		Help: "Pool address lookups by result (hit, miss, none)",
	}, []string{"result"})

	Branches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_branches_total",
		Help: "Evaluated detector branches by kind and whether they fired",
	}, []string{"kind", "fired"})

	Signals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_signals_total",
		Help: "Emitted arbitrage signals by kind and tier",
	}, []string{"kind", "tier"})

	SpreadPct = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_spread_percent",
		Help: "Last computed spread per asset, quote currency and branch kind",
	}, []string{"asset", "quote", "kind"})

	RoundDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_round_duration_seconds",
		Help:    "Wall time of one asset/quote round",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
	})

	SinkErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_sink_errors_total",
		Help: "Failed sink writes by sink",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(
		VenueCalls,
		VenueLatency,
		BreakerState,
		TokenCache,
		PoolCache,
		Branches,
		Signals,
		SpreadPct,
		RoundDuration,
		SinkErrors,
	)
}
