package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	// InvoicesCreated counts invoices materialized through the backend.
	InvoicesCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paywall_invoices_created_total",
		Help: "Number of invoices created",
	})

	// PaymentsConfirmed counts Pending -> Paid transitions, labeled by the
	// path that won the race.
	PaymentsConfirmed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_payments_confirmed_total",
		Help: "Number of payments confirmed, by settlement source",
	}, []string{"source"})

	// WebhookRejected counts rejected webhook deliveries by reason.
	WebhookRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "paywall_webhook_rejected_total",
		Help: "Number of rejected webhook deliveries",
	}, []string{"reason"})

	// EventsProcessed counts provider events consumed from the queue.
	EventsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paywall_events_processed_total",
		Help: "Number of provider events processed",
	})

	// EventsDeduplicated counts events skipped by the dedup lock.
	EventsDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "paywall_events_deduplicated_total",
		Help: "Number of provider events skipped as duplicates",
	})

	// EventQueueDepth tracks the number of events waiting in the queue.
	EventQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paywall_event_queue_depth",
		Help: "Provider events currently queued",
	})

	// RealtimeClients tracks currently connected SSE clients.
	RealtimeClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "paywall_realtime_clients",
		Help: "Connected realtime clients",
	})
)

// Handler exposes the default prometheus registry for gin
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
