package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "relaycast_queue_depth",
		Help: "Number of pending items in the delivery queue",
	})

	ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_queue_items_processed_total",
		Help: "The total number of queue items finished, by terminal status",
	}, []string{"status"})

	ChunksSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_delivery_chunks_sent_total",
		Help: "The total number of messages and media chunks sent, by platform",
	}, []string{"platform"})

	DeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "relaycast_delivery_duration_seconds",
		Help:    "Duration of single Bot API send calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"platform"})

	TargetsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_delivery_targets_skipped_total",
		Help: "Total number of delivery targets skipped, by reason",
	}, []string{"reason"})

	FeedFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "relaycast_feed_fetches_total",
		Help: "The total number of feed fetch rounds per feed, by outcome",
	}, []string{"status"})
)
