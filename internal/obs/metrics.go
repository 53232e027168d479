// Package obs provides Prometheus instrumentation for the market maker.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UpdatesTotal counts raw venue payloads consumed, partitioned by outcome.
	UpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_feed_updates_total",
		Help: "Raw venue update payloads consumed",
	}, []string{"outcome"}) // ok, malformed, empty

	// LevelChangesTotal counts canonical level changes applied to books.
	LevelChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_book_level_changes_total",
		Help: "Canonical level changes applied to order books",
	}, []string{"action"}) // upsert, remove, noop

	// BookApplySeconds tracks order-book batch apply latency.
	BookApplySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mm_book_apply_seconds",
		Help:    "Order book batch apply latency in seconds",
		Buckets: []float64{0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005},
	})

	// ActiveMarkets tracks the number of markets with a live book.
	ActiveMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_active_markets",
		Help: "Number of markets with a live order book",
	})

	// HaltedMarkets counts markets halted after an invariant violation.
	HaltedMarkets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mm_halted_markets_total",
		Help: "Markets halted after an order book invariant violation",
	})

	// BusDroppedTotal counts events dropped from slow subscriber queues.
	BusDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_bus_dropped_total",
		Help: "Events dropped from slow subscriber queues",
	}, []string{"subscriber"})

	// RiskDecisionsTotal counts risk gate outcomes by action and reason.
	RiskDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_risk_decisions_total",
		Help: "Risk gate decisions",
	}, []string{"action", "reason"})

	// WagerTransitionsTotal counts wager state transitions.
	WagerTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_wager_transitions_total",
		Help: "Wager state transitions",
	}, []string{"state"})

	// OpenWagers tracks the number of currently open wagers.
	OpenWagers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_open_wagers",
		Help: "Number of currently open wagers",
	})

	// OpenExposure tracks the total reserved open exposure.
	OpenExposure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_open_exposure",
		Help: "Total open exposure including optimistic reservations",
	})

	// DailyRealizedPnL tracks realized profit and loss for the daily window.
	DailyRealizedPnL = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mm_daily_realized_pnl",
		Help: "Realized PnL for the current daily window",
	})

	// VenueCallsTotal counts venue submit/cancel calls by operation and outcome.
	VenueCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_venue_calls_total",
		Help: "Venue order adapter calls",
	}, []string{"op", "outcome"}) // ok, transient, permanent

	// QuotesProposedTotal counts candidate quotes emitted by the strategy.
	QuotesProposedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mm_quotes_proposed_total",
		Help: "Candidate quotes proposed by the strategy",
	}, []string{"side"})
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
