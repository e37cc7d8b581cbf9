package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Conversation metrics
var (
	// EventsTotal tracks inbound chat events by kind (command, text, file, callback)
	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_events_total",
			Help: "Inbound chat events by kind",
		},
		[]string{"kind"},
	)

	// AccessDeniedTotal tracks events rejected by the access gate
	AccessDeniedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bot_access_denied_total",
			Help: "Events from chats that are not approved",
		},
	)

	// ApprovalRequestsTotal tracks approval requests by outcome (sent, rate_limited)
	ApprovalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_approval_requests_total",
			Help: "Approval requests by outcome",
		},
		[]string{"outcome"},
	)

	// ActiveConversations tracks chats with an active dialogue state
	ActiveConversations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_active_conversations",
			Help: "Chats currently holding a dialogue state",
		},
	)
)

// Generation metrics
var (
	// GenerationItemsTotal tracks generated images by outcome (ok, timeout, error)
	GenerationItemsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_generation_items_total",
			Help: "Generated image requests by outcome",
		},
		[]string{"outcome"},
	)

	// CircuitBreakerState tracks the generation API breaker (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bot_circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// Render metrics
var (
	// RendersTotal tracks renderer invocations by kind (preview, video) and outcome
	RendersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_renders_total",
			Help: "Renderer invocations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// RenderDuration tracks renderer wall time in seconds
	RenderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_render_duration_seconds",
			Help:    "Renderer invocation duration in seconds",
			Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"kind"},
	)
)
