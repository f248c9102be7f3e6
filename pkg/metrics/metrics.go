package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors for a running session.
type Metrics struct {
	TickDuration      prometheus.Histogram
	Participants      prometheus.Gauge
	GoalsScored       *prometheus.CounterVec
	MessagesProcessed prometheus.Counter
	EventsDropped     prometheus.Counter
	SlotsCompleted    prometheus.Counter

	registry *prometheus.Registry
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)
	return &Metrics{
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "frameball",
			Name:      "tick_duration_seconds",
			Help:      "Wall time spent in each simulation tick.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}),
		Participants: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "frameball",
			Name:      "participants",
			Help:      "Connected participants.",
		}),
		GoalsScored: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frameball",
			Name:      "goals_scored_total",
			Help:      "Goals scored per side.",
		}, []string{"side"}),
		MessagesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frameball",
			Name:      "messages_processed_total",
			Help:      "Client messages processed by the tick loop.",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frameball",
			Name:      "physics_events_dropped_total",
			Help:      "Physics events dropped due to a full event queue.",
		}),
		SlotsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frameball",
			Name:      "slots_completed_total",
			Help:      "Frame slots fully completed.",
		}),
		registry: registry,
	}
}

// Registry exposes the underlying registry for the HTTP handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
