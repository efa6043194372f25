// Package metrics provides Prometheus metrics for the tracker daemon.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackerMetrics collects and exposes tracker-related Prometheus metrics.
type TrackerMetrics struct {
	registry *prometheus.Registry

	// Game event metrics
	GameEventsTotal *prometheus.CounterVec
	UndoDepth       prometheus.Histogram
	ActiveSessions  prometheus.Gauge

	// Outcome metrics
	OutcomesOffered *prometheus.CounterVec
	OutcomesApplied *prometheus.CounterVec

	// Market metrics
	MarketPollsTotal  *prometheus.CounterVec
	MarketPollErrors  prometheus.Counter
	MarketPollLatency prometheus.Histogram

	// Order metrics
	OrdersTotal    *prometheus.CounterVec
	OrderSizeUSD   prometheus.Histogram
	OrdersRejected *prometheus.CounterVec

	// Advisor metrics
	AdvisorRequests *prometheus.CounterVec
	AdvisorLatency  prometheus.Histogram

	// Persistence metrics
	SaveOpsTotal *prometheus.CounterVec

	// Streaming metrics
	WSClients prometheus.Gauge
}

// NewTrackerMetrics creates a new tracker metrics collector with its
// own registry.
func NewTrackerMetrics() *TrackerMetrics {
	registry := prometheus.NewRegistry()

	tm := &TrackerMetrics{
		registry: registry,

		GameEventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_game_events_total",
				Help: "Total game events applied, by event type",
			},
			[]string{"type"},
		),
		UndoDepth: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_undo_history_depth",
				Help:    "History depth observed at undo time",
				Buckets: []float64{0, 1, 2, 3, 5, 8, 10},
			},
		),
		ActiveSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracker_active_sessions",
				Help: "Current number of live game sessions",
			},
		),

		OutcomesOffered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_outcomes_offered_total",
				Help: "Outcome candidates served, by source and quality band",
			},
			[]string{"source", "band"},
		),
		OutcomesApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_outcomes_applied_total",
				Help: "Outcomes applied to game state, by source",
			},
			[]string{"source"},
		),

		MarketPollsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_market_polls_total",
				Help: "Market price polls, by result",
			},
			[]string{"status"},
		),
		MarketPollErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "tracker_market_poll_errors_total",
				Help: "Market price polls that failed",
			},
		),
		MarketPollLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_market_poll_seconds",
				Help:    "Latency of market price polls",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
		),

		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_orders_total",
				Help: "Orders submitted, by mode and status",
			},
			[]string{"mode", "status"},
		),
		OrderSizeUSD: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_order_size_usd",
				Help:    "Order size in USD",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
			},
		),
		OrdersRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_orders_rejected_total",
				Help: "Orders rejected by guardrails, by reason",
			},
			[]string{"reason"},
		),

		AdvisorRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_advisor_requests_total",
				Help: "Advisor requests, by status",
			},
			[]string{"status"},
		),
		AdvisorLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tracker_advisor_seconds",
				Help:    "Latency of advisor requests",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 8), // 50ms to ~6s
			},
		),

		SaveOpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tracker_save_ops_total",
				Help: "Save/load operations, by op and status",
			},
			[]string{"op", "status"},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "tracker_ws_clients",
				Help: "Currently connected WebSocket clients",
			},
		),
	}

	tm.registerAll()
	return tm
}

func (tm *TrackerMetrics) registerAll() {
	tm.registry.MustRegister(
		tm.GameEventsTotal,
		tm.UndoDepth,
		tm.ActiveSessions,
		tm.OutcomesOffered,
		tm.OutcomesApplied,
		tm.MarketPollsTotal,
		tm.MarketPollErrors,
		tm.MarketPollLatency,
		tm.OrdersTotal,
		tm.OrderSizeUSD,
		tm.OrdersRejected,
		tm.AdvisorRequests,
		tm.AdvisorLatency,
		tm.SaveOpsTotal,
		tm.WSClients,
	)
}

// Registry returns the prometheus registry for exposing via HTTP.
func (tm *TrackerMetrics) Registry() *prometheus.Registry {
	return tm.registry
}

// RecordGameEvent records a game event by type.
func (tm *TrackerMetrics) RecordGameEvent(eventType string) {
	tm.GameEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordUndo records an undo with the history depth at the time.
func (tm *TrackerMetrics) RecordUndo(depth int) {
	tm.GameEventsTotal.WithLabelValues("UNDO").Inc()
	tm.UndoDepth.Observe(float64(depth))
}

// RecordPoll records a market price poll.
func (tm *TrackerMetrics) RecordPoll(status string, seconds float64) {
	tm.MarketPollsTotal.WithLabelValues(status).Inc()
	tm.MarketPollLatency.Observe(seconds)
	if status != "ok" {
		tm.MarketPollErrors.Inc()
	}
}

// RecordOrder records an order submission.
func (tm *TrackerMetrics) RecordOrder(mode, status string, sizeUSD float64) {
	tm.OrdersTotal.WithLabelValues(mode, status).Inc()
	tm.OrderSizeUSD.Observe(sizeUSD)
}

// RecordRejection records a guardrail rejection.
func (tm *TrackerMetrics) RecordRejection(reason string) {
	tm.OrdersRejected.WithLabelValues(reason).Inc()
}

// RecordAdvisor records an advisor request.
func (tm *TrackerMetrics) RecordAdvisor(status string, seconds float64) {
	tm.AdvisorRequests.WithLabelValues(status).Inc()
	tm.AdvisorLatency.Observe(seconds)
}

// RecordSaveOp records a save or load operation.
func (tm *TrackerMetrics) RecordSaveOp(op, status string) {
	tm.SaveOpsTotal.WithLabelValues(op, status).Inc()
}

var (
	defaultMetrics *TrackerMetrics
	defaultOnce    sync.Once
)

// Default returns a shared metrics instance.
func Default() *TrackerMetrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewTrackerMetrics()
	})
	return defaultMetrics
}
