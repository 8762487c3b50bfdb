package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking lifecycle.
type BookingMetrics struct {
	createdTotal     *prometheus.CounterVec
	transitionsTotal *prometheus.CounterVec
	paymentTotal     *prometheus.CounterVec
	stripeLatency    *prometheus.HistogramVec
	emailTotal       *prometheus.CounterVec
	reminderTotal    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		createdTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "bookings",
			Name:      "created_total",
			Help:      "Booking creation attempts by outcome",
		}, []string{"outcome"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "bookings",
			Name:      "status_transitions_total",
			Help:      "Applied booking status transitions",
		}, []string{"from", "to"}),
		paymentTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "payments",
			Name:      "operations_total",
			Help:      "Payment authorization and capture calls by status",
		}, []string{"operation", "status"}),
		stripeLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medtour",
			Subsystem: "payments",
			Name:      "stripe_latency_seconds",
			Help:      "Latency of Stripe API calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		emailTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "notify",
			Name:      "emails_total",
			Help:      "Emails sent by kind and status",
		}, []string{"kind", "status"}),
		reminderTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medtour",
			Subsystem: "reminders",
			Name:      "jobs_total",
			Help:      "Processed scheduled jobs by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.createdTotal, m.transitionsTotal, m.paymentTotal, m.stripeLatency, m.emailTotal, m.reminderTotal)
	return m
}

func (m *BookingMetrics) ObserveCreated(outcome string) {
	if m == nil {
		return
	}
	m.createdTotal.WithLabelValues(outcome).Inc()
}

func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *BookingMetrics) ObservePayment(operation string, err error) {
	if m == nil {
		return
	}
	m.paymentTotal.WithLabelValues(operation, statusLabel(err)).Inc()
}

func (m *BookingMetrics) ObserveStripeLatency(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.stripeLatency.WithLabelValues(operation).Observe(seconds)
}

func (m *BookingMetrics) ObserveEmail(kind string, err error) {
	if m == nil {
		return
	}
	m.emailTotal.WithLabelValues(kind, statusLabel(err)).Inc()
}

func (m *BookingMetrics) ObserveReminder(outcome string) {
	if m == nil {
		return
	}
	m.reminderTotal.WithLabelValues(outcome).Inc()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
