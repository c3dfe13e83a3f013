package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
)

const namespace = "clinicqueue"

// Metrics exposes counters, gauges and histograms for the scheduling service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     *prometheus.HistogramVec
	queueOps        *prometheus.CounterVec
	queueWaiting    *prometheus.GaugeVec
	consultation    prometheus.Histogram
	appointmentOps  *prometheus.CounterVec
	persistFailures *prometheus.CounterVec
	published       *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"method", "route"}),
		queueOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "operations_total",
			Help:      "Queue operations by outcome",
		}, []string{"op", "result"}),
		queueWaiting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "waiting",
			Help:      "Patients currently waiting per doctor",
		}, []string{"doctor_id"}),
		consultation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "consultation_duration_seconds",
			Help:      "Observed IN_PROGRESS to DONE intervals",
			Buckets:   []float64{60, 300, 600, 900, 1200, 1800, 2700, 3600, 7200},
		}),
		appointmentOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "appointments",
			Name:      "operations_total",
			Help:      "Appointment operations by outcome",
		}, []string{"op", "result"}),
		persistFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "persist_failures_total",
			Help:      "Failed write-behind persistence attempts",
		}, []string{"entity"}),
		published: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "events",
			Name:      "published_total",
			Help:      "Change events handed to publishers",
		}, []string{"sink", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.httpRequests, m.httpLatency,
		m.queueOps, m.queueWaiting, m.consultation,
		m.appointmentOps, m.persistFailures, m.published,
	)
	return m
}

// Result turns an operation error into a low-cardinality label.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return apperr.CodeOf(err)
}

func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpLatency.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) ObserveQueueOp(op string, err error) {
	if m == nil {
		return
	}
	m.queueOps.WithLabelValues(op, Result(err)).Inc()
}

func (m *Metrics) SetWaiting(doctorID string, n int) {
	if m == nil {
		return
	}
	m.queueWaiting.WithLabelValues(doctorID).Set(float64(n))
}

func (m *Metrics) ObserveConsultation(d time.Duration) {
	if m == nil {
		return
	}
	m.consultation.Observe(d.Seconds())
}

func (m *Metrics) ObserveAppointmentOp(op string, err error) {
	if m == nil {
		return
	}
	m.appointmentOps.WithLabelValues(op, Result(err)).Inc()
}

func (m *Metrics) PersistFailed(entity string) {
	if m == nil {
		return
	}
	m.persistFailures.WithLabelValues(entity).Inc()
}

func (m *Metrics) ObservePublish(sink string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.published.WithLabelValues(sink, status).Inc()
}
