package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
)

func TestMetricsObserve(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveHTTP("GET", "/queue", 200, 3*time.Millisecond)
	m.ObserveQueueOp("join", nil)
	m.ObserveQueueOp("join", apperr.New(apperr.Conflict, "already_queued", "x"))
	m.SetWaiting("DOC-00000001", 3)
	m.ObserveConsultation(12 * time.Minute)
	m.ObserveAppointmentOp("book", nil)
	m.PersistFailed("doctor")
	m.ObservePublish("redis", errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueOps.WithLabelValues("join", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.queueOps.WithLabelValues("join", "already_queued")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.queueWaiting.WithLabelValues("DOC-00000001")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.published.WithLabelValues("redis", "error")))
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/", 200, time.Millisecond)
	m.ObserveQueueOp("leave", nil)
	m.SetWaiting("d", 1)
	m.ObserveConsultation(time.Minute)
	m.ObserveAppointmentOp("cancel", nil)
	m.PersistFailed("queue_entry")
	m.ObservePublish("hub", nil)
}

func TestResultLabel(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "internal_error", Result(errors.New("x")))
}
