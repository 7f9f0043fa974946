// Package metrics defines the Prometheus collectors shared across the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livetrack_events_ingested_total",
		Help: "Normalized position events accepted into the ingest queue, by adapter.",
	}, []string{"adapter"})

	EventsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livetrack_events_rejected_total",
		Help: "Events rejected at the normalization boundary, by adapter and reason.",
	}, []string{"adapter", "reason"})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livetrack_events_dropped_total",
		Help: "Events dropped because the ingest queue was full.",
	})

	EventsStale = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livetrack_events_stale_total",
		Help: "Events reclassified as history-only by the ordering policy.",
	})

	AdapterRestarts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livetrack_adapter_restarts_total",
		Help: "Adapter restarts performed by the supervisor, by adapter.",
	}, []string{"adapter"})

	ObjectsByState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "livetrack_objects",
		Help: "Tracked objects by liveness state.",
	}, []string{"state"})

	IngestQueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livetrack_ingest_queue_utilization_ratio",
		Help: "Ingest queue used / capacity (0-1).",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livetrack_subscribers",
		Help: "Currently connected broadcast subscribers.",
	})

	SubscribersDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livetrack_subscribers_dropped_total",
		Help: "Subscribers dropped after their outbound queue overflowed.",
	})

	Resnapshots = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livetrack_resnapshots_total",
		Help: "Full snapshots sent to subscribers that fell behind the backlog threshold.",
	})

	TrailAppended = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livetrack_trail_points_appended_total",
		Help: "Trail points handed to the history sink.",
	})

	TrailDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "livetrack_trail_points_dropped_total",
		Help: "Trail points dropped because the history buffer was full.",
	})

	WebhookRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livetrack_webhook_rejected_total",
		Help: "Signed ingest payloads rejected before normalization, by reason.",
	}, []string{"reason"})
)
