// Package metrics holds the Prometheus collectors exported by the bot.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sdbot"

var (
	// UpdatesTotal counts inbound Telegram updates by kind.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "updates_total",
			Help:      "Total number of Telegram updates received",
		},
		[]string{"kind"},
	)

	// HandlerTotal counts handler completions by handler and outcome.
	HandlerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "handler_total",
			Help:      "Total number of handled updates",
		},
		[]string{"handler", "outcome"},
	)

	// OutboundTotal counts outbound Bot API calls by action and status.
	OutboundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "outbound_total",
			Help:      "Total number of outbound Telegram calls",
		},
		[]string{"action", "status"},
	)

	// RateLimitedTotal counts updates dropped by the rate limiter.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telegram",
			Name:      "rate_limited_total",
			Help:      "Total number of updates dropped by the rate limiter",
		},
	)

	// GenerationsTotal counts image generations by status.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sd",
			Name:      "generations_total",
			Help:      "Total number of txt2img requests",
		},
		[]string{"status"},
	)

	// GenerationDuration observes txt2img latency.
	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sd",
			Name:      "generation_duration_seconds",
			Help:      "txt2img request duration in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)

	// GenerationsInFlight tracks requests currently waiting on the API.
	GenerationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sd",
			Name:      "generations_in_flight",
			Help:      "Number of txt2img requests in flight",
		},
	)

	// ActiveSessions tracks the number of in-memory user sessions.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Number of user sessions held in memory",
		},
	)
)

// Generation status labels.
const (
	StatusOK            = "ok"
	StatusFail          = "fail"
	StatusNotConfigured = "not_configured"
	StatusBusy          = "busy"
)
