package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_messages_created_total",
		Help: "Messages committed to the message store.",
	})
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_published_total",
		Help: "Events fanned out per type.",
	}, []string{"type"})
	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_events_dropped_total",
		Help: "Ephemeral events shed for slow subscribers.",
	}, []string{"type"})
	SubscribersResynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_subscribers_resynced_total",
		Help: "Subscribers disconnected for falling behind on durable events.",
	})
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_subscribers",
		Help: "Currently attached event stream subscribers.",
	})
	UploadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_upload_failures_total",
		Help: "Attachment uploads that exhausted their retries.",
	})
)

// Handler returns an http.Handler for Prometheus scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
