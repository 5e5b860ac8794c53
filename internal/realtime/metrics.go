package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "beacon"

var (
	connectionsGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "subscriptions",
		Help:      "Number of active channel subscriptions.",
	})

	publishedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "published_events_total",
		Help:      "Events delivered to subscribers, by event type.",
	}, []string{"type"})

	slowSubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "slow_subscribers_dropped_total",
		Help:      "Subscribers detached because their send buffer filled.",
	})

	droppedNotices = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "realtime",
		Name:      "dropped_notices_total",
		Help:      "Outbox notices discarded because the queue was full.",
	})
)
