package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	APIRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "checkin_api_requests_total", Help: "API requests"},
		[]string{"endpoint", "status"},
	)
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "checkin_webhook_events_total", Help: "Identity webhook events"},
		[]string{"type", "result"},
	)
	VendorCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "checkin_vendor_calls_total", Help: "Identity vendor API calls"},
		[]string{"op", "result"},
	)
	VendorLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "checkin_vendor_call_latency_seconds", Help: "Identity vendor API latency"},
		[]string{"op"},
	)
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "checkin_notifications_total", Help: "Guest notification outcomes"},
		[]string{"channel", "status"},
	)
	SelfieDownloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "checkin_selfie_downloads_total", Help: "Selfie download outcomes"},
		[]string{"result"},
	)
	ReminderEnqueues = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "checkin_reminder_enqueue_total", Help: "Reminder sweep enqueue results"},
		[]string{"result"},
	)
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(APIRequests, WebhookEvents, VendorCalls, VendorLatency, Notifications, SelfieDownloads, ReminderEnqueues)
}
