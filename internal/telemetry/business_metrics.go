package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// BusinessMetrics holds Prometheus metrics for invoice lifecycle observability.
// All recording methods are safe on a nil receiver so tests and tools can omit metrics.
type BusinessMetrics struct {
	// Invoice lifecycle
	InvoicesCreated      prometheus.Counter
	InvoiceTransitions   *prometheus.CounterVec
	TransitionConflicts  *prometheus.CounterVec
	PaymentLinksIssued   *prometheus.CounterVec
	RevenueCollected     *prometheus.CounterVec
	OverdueSweepRuns     *prometheus.CounterVec
	OverdueSweepDuration prometheus.Histogram
	OverdueTransitioned  prometheus.Counter

	// Notifications
	NotificationsEmitted *prometheus.CounterVec

	// Webhooks
	WebhookReceived  *prometheus.CounterVec
	WebhookProcessed *prometheus.CounterVec
	WebhookFailed    *prometheus.CounterVec
	WebhookLatency   *prometheus.HistogramVec

	// Background jobs
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec
	JobsFailed    *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec

	// Email delivery
	EmailSent   *prometheus.CounterVec
	EmailFailed *prometheus.CounterVec

	// External API performance
	ProviderLatency *prometheus.HistogramVec
}

// NewBusinessMetrics creates all business metrics and registers them with reg.
func NewBusinessMetrics(namespace string, reg prometheus.Registerer) *BusinessMetrics {
	if namespace == "" {
		namespace = "ledgerly"
	}
	f := promauto.With(reg)
	subsystem := "business"

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}

	return &BusinessMetrics{
		// =======================================================================
		// Invoice Lifecycle
		// =======================================================================
		InvoicesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "invoices_created_total", Help: "Total invoices created",
		}),
		InvoiceTransitions:  counter("invoice_transitions_total", "Invoice status transitions applied", "from", "to"),
		TransitionConflicts: counter("invoice_transition_conflicts_total", "Conditional status updates that matched no row", "event"),
		PaymentLinksIssued:  counter("payment_links_issued_total", "Payment link requests by outcome", "outcome"), // created, reused, failed
		RevenueCollected:    counter("revenue_collected_total", "Paid invoice totals in major units", "currency"),
		OverdueSweepRuns:    counter("overdue_sweep_runs_total", "Overdue sweep executions", "status"),
		OverdueSweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "overdue_sweep_duration_seconds", Help: "Overdue sweep wall time",
			Buckets: prometheus.DefBuckets,
		}),
		OverdueTransitioned: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "overdue_invoices_total", Help: "Invoices moved to overdue by the sweep",
		}),

		// =======================================================================
		// Notifications
		// =======================================================================
		NotificationsEmitted: counter("notifications_emitted_total", "Notifications appended", "type"),

		// =======================================================================
		// Webhooks
		// =======================================================================
		WebhookReceived:  counter("webhook_received_total", "Webhooks received", "provider", "event_type"),
		WebhookProcessed: counter("webhook_processed_total", "Webhooks processed", "provider", "event_type", "outcome"),
		WebhookFailed:    counter("webhook_failed_total", "Webhooks rejected or failed", "provider", "reason"),
		WebhookLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "webhook_latency_seconds", Help: "Webhook handling latency",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"provider"}),

		// =======================================================================
		// Background Jobs
		// =======================================================================
		JobsEnqueued:  counter("jobs_enqueued_total", "Jobs enqueued", "job_type"),
		JobsProcessed: counter("jobs_processed_total", "Jobs completed", "job_type"),
		JobsFailed:    counter("jobs_failed_total", "Job attempts failed", "job_type"),
		JobDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "job_duration_seconds", Help: "Job processing time",
			Buckets: []float64{.05, .1, .5, 1, 5, 10, 30, 60, 300},
		}, []string{"job_type"}),

		// =======================================================================
		// Email Delivery
		// =======================================================================
		EmailSent:   counter("email_sent_total", "Emails sent", "template"),
		EmailFailed: counter("email_failed_total", "Emails that failed to send", "template"),

		// =======================================================================
		// External APIs
		// =======================================================================
		ProviderLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "provider_latency_seconds", Help: "External provider call latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"provider", "operation"}),
	}
}

func (m *BusinessMetrics) InvoiceCreated() {
	if m == nil {
		return
	}
	m.InvoicesCreated.Inc()
}

func (m *BusinessMetrics) Transitioned(from, to string) {
	if m == nil {
		return
	}
	m.InvoiceTransitions.WithLabelValues(from, to).Inc()
}

func (m *BusinessMetrics) TransitionConflict(event string) {
	if m == nil {
		return
	}
	m.TransitionConflicts.WithLabelValues(event).Inc()
}

func (m *BusinessMetrics) PaymentLink(outcome string) {
	if m == nil {
		return
	}
	m.PaymentLinksIssued.WithLabelValues(outcome).Inc()
}

func (m *BusinessMetrics) Revenue(currency string, amount float64) {
	if m == nil {
		return
	}
	m.RevenueCollected.WithLabelValues(currency).Add(amount)
}

func (m *BusinessMetrics) OverdueSweep(status string, count int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OverdueSweepRuns.WithLabelValues(status).Inc()
	m.OverdueSweepDuration.Observe(elapsed.Seconds())
	m.OverdueTransitioned.Add(float64(count))
}

func (m *BusinessMetrics) NotificationEmitted(kind string) {
	if m == nil {
		return
	}
	m.NotificationsEmitted.WithLabelValues(kind).Inc()
}

func (m *BusinessMetrics) Webhook(provider, eventType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WebhookReceived.WithLabelValues(provider, eventType).Inc()
	m.WebhookProcessed.WithLabelValues(provider, eventType, outcome).Inc()
	m.WebhookLatency.WithLabelValues(provider).Observe(elapsed.Seconds())
}

func (m *BusinessMetrics) WebhookRejected(provider, reason string) {
	if m == nil {
		return
	}
	m.WebhookFailed.WithLabelValues(provider, reason).Inc()
}

func (m *BusinessMetrics) JobEnqueued(jobType string) {
	if m == nil {
		return
	}
	m.JobsEnqueued.WithLabelValues(jobType).Inc()
}

func (m *BusinessMetrics) JobFinished(jobType string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.JobDuration.WithLabelValues(jobType).Observe(elapsed.Seconds())
	if err != nil {
		m.JobsFailed.WithLabelValues(jobType).Inc()
		return
	}
	m.JobsProcessed.WithLabelValues(jobType).Inc()
}

func (m *BusinessMetrics) Email(template string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.EmailFailed.WithLabelValues(template).Inc()
		return
	}
	m.EmailSent.WithLabelValues(template).Inc()
}

// ObserveProvider records one external call's latency.
func (m *BusinessMetrics) ObserveProvider(provider, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.ProviderLatency.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
