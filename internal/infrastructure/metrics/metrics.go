// Package metrics exposes Prometheus counters/gauges for the telemetry
// pipeline, registered in init() and served at /metrics by internal/web.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	EnvelopesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_envelopes_published_total",
			Help: "Metric envelopes published per symbol.",
		},
		[]string{"symbol"},
	)

	SubscriberQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "telemetry_subscriber_queue_depth",
			Help: "Current queued envelope count per subscriber.",
		},
		[]string{"subscription_id"},
	)

	SubscriberDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_subscriber_drops_total",
			Help: "Envelopes dropped from a subscriber's queue on overflow.",
		},
		[]string{"subscription_id"},
	)

	BookResyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_book_resyncs_total",
			Help: "Order book resyncs triggered by a sequence gap, per symbol.",
		},
		[]string{"symbol"},
	)

	BookState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "telemetry_book_state",
			Help: "Order book state per symbol (1=live, 0=resync).",
		},
		[]string{"symbol"},
	)

	StreamReconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_stream_reconnects_total",
			Help: "Exchange stream reconnects, split by stream kind.",
		},
		[]string{"symbol", "stream"},
	)

	RampBudget = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "telemetry_ramp_margin_budget",
			Help: "Current sizing ramp margin budget per symbol.",
		},
		[]string{"symbol"},
	)

	RampClosedTrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_ramp_closed_trades_total",
			Help: "Closed trades recorded by the sizing ramp, split by outcome.",
		},
		[]string{"symbol", "outcome"}, // outcome: win|loss
	)
)

func init() {
	prometheus.MustRegister(
		EnvelopesPublished,
		SubscriberQueueDepth,
		SubscriberDrops,
		BookResyncs,
		BookState,
		StreamReconnects,
		RampBudget,
		RampClosedTrades,
	)
}

// ObserveBookState records the book's live/resync state as a 1/0 gauge.
func ObserveBookState(symbol string, live bool) {
	v := 0.0
	if live {
		v = 1.0
	}
	BookState.WithLabelValues(symbol).Set(v)
}

// ObserveRampClose increments the win/loss counter for a closed trade.
func ObserveRampClose(symbol string, pnl float64) {
	outcome := "loss"
	if pnl > 0 {
		outcome = "win"
	}
	RampClosedTrades.WithLabelValues(symbol, outcome).Inc()
}
