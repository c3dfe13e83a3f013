package scheduling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-queue-scheduling/internal/appointment"
	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
	"github.com/hackgods/doctor-queue-scheduling/internal/doctor"
	"github.com/hackgods/doctor-queue-scheduling/internal/events"
	"github.com/hackgods/doctor-queue-scheduling/internal/queue"
)

var admin = Caller{ID: "admin-1", Role: RoleAdmin}

func patient(id string) Caller { return Caller{ID: id, Role: RolePatient} }

type harness struct {
	svc   *Service
	clock *clock.Fake
	hub   *events.Hub
}

// The clock starts on Monday 2026-03-02 at 09:00 UTC.
func newHarness(t *testing.T) *harness {
	t.Helper()
	fake := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	dir := doctor.NewDirectory(fake, clock.RandomIDs{})
	store := appointment.NewStore(dir, fake, clock.RandomIDs{}, appointment.Config{Location: time.UTC})
	engine := queue.NewEngine(dir, fake, clock.RandomIDs{}, queue.Config{})
	hub := events.NewHub(16)
	svc := NewService(dir, store, engine, fake, time.UTC, WithPublisher(hub))
	return &harness{svc: svc, clock: fake, hub: hub}
}

func (h *harness) registerDoctor(t *testing.T, days ...string) doctor.Doctor {
	t.Helper()
	doc, err := h.svc.RegisterDoctor(context.Background(), admin, DoctorInput{
		Name:               "Dr. Lena Park",
		Specialization:     "Pediatrics",
		Department:         "Children's Health",
		ConsultationFee:    60,
		AvailableDays:      days,
		AvailableTimeSlots: []string{"09:00-12:00", "14:00-17:00"},
	})
	require.NoError(t, err)
	return doc
}

func mustDate(t *testing.T, s string) calendar.Date {
	t.Helper()
	d, err := calendar.ParseDate(s)
	require.NoError(t, err)
	return d
}

func mustTime(t *testing.T, s string) calendar.TimeOfDay {
	t.Helper()
	v, err := calendar.ParseTimeOfDay(s)
	require.NoError(t, err)
	return v
}

func TestRegisterDoctorRequiresAdmin(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RegisterDoctor(context.Background(), patient("P-1"), DoctorInput{Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.RegisterDoctor(context.Background(), Caller{}, DoctorInput{Name: "x"})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRegisterDoctorValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.RegisterDoctor(context.Background(), admin, DoctorInput{
		Email:           "not-an-email",
		ConsultationFee: -1,
	})
	require.ErrorIs(t, err, apperr.ErrValidation)
	for _, field := range []string{"name", "specialization", "department", "email", "consultationFee"} {
		assert.Contains(t, err.Error(), field)
	}

	_, err = h.svc.RegisterDoctor(context.Background(), admin, DoctorInput{
		Name:           "Dr. X",
		Specialization: "GP",
		Department:     "Primary Care",
		AvailableDays:  []string{"Funday"},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = h.svc.RegisterDoctor(context.Background(), admin, DoctorInput{
		Name:               "Dr. X",
		Specialization:     "GP",
		Department:         "Primary Care",
		AvailableTimeSlots: []string{"12:00-09:00"},
	})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestMondayBookingScenario(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.registerDoctor(t, "Monday")

	book := func(p, at string) error {
		_, err := h.svc.BookAppointment(ctx, patient(p), BookAppointmentInput{
			PatientID: p,
			DoctorID:  doc.ID,
			Date:      mustDate(t, "2026-03-09"),
			Time:      mustTime(t, at),
			Reason:    "follow-up",
		})
		return err
	}

	require.NoError(t, book("P", "10:00"))
	assert.ErrorIs(t, book("Q", "10:00"), appointment.ErrSlotConflict)
	require.NoError(t, book("Q", "10:30"))

	avail, err := h.svc.DoctorAvailability(ctx, doc.ID, mustDate(t, "2026-03-09"))
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, []calendar.TimeOfDay{mustTime(t, "10:00"), mustTime(t, "10:30")}, avail.Booked)

	avail, err = h.svc.DoctorAvailability(ctx, doc.ID, mustDate(t, "2026-03-10"))
	require.NoError(t, err)
	assert.False(t, avail.Available)
}

func TestBookForAnotherPatientIsForbidden(t *testing.T) {
	h := newHarness(t)
	doc := h.registerDoctor(t, "Monday")

	_, err := h.svc.BookAppointment(context.Background(), patient("P-2"), BookAppointmentInput{
		PatientID: "P-1",
		DoctorID:  doc.ID,
		Date:      mustDate(t, "2026-03-09"),
		Time:      mustTime(t, "10:00"),
	})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestCancelAndCompleteRoles(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.registerDoctor(t, "Monday")
	doctorCaller := Caller{ID: doc.ID, Role: RoleDoctor}

	appt, err := h.svc.BookAppointment(ctx, patient("P-1"), BookAppointmentInput{
		PatientID: "P-1",
		DoctorID:  doc.ID,
		Date:      mustDate(t, "2026-03-09"),
		Time:      mustTime(t, "10:00"),
	})
	require.NoError(t, err)

	_, err = h.svc.CancelAppointment(ctx, patient("P-2"), appt.ID)
	assert.ErrorIs(t, err, appointment.ErrNotOwner)

	_, err = h.svc.CancelAppointment(ctx, doctorCaller, appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.CompleteAppointment(ctx, patient("P-1"), appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = h.svc.CompleteAppointment(ctx, Caller{ID: "DOC-other", Role: RoleDoctor}, appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	// too early for the doctor to close it
	_, err = h.svc.CompleteAppointment(ctx, doctorCaller, appt.ID)
	assert.ErrorIs(t, err, appointment.ErrInvalidState)

	got, err := h.svc.GetAppointment(ctx, doctorCaller, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appt.ID, got.ID)
	_, err = h.svc.GetAppointment(ctx, patient("P-2"), appt.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	cancelled, err := h.svc.CancelAppointment(ctx, admin, appt.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCancelled, cancelled.Status)

	list, err := h.svc.ListPatientAppointments(ctx, patient("P-1"), "P-1", appointment.Page{})
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = h.svc.ListDoctorAppointments(ctx, patient("P-1"), doc.ID, appointment.Page{})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestJoinQueueRequiresDoctorWorkingToday(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	tuesday := h.registerDoctor(t, "Tuesday")

	_, err := h.svc.JoinQueue(ctx, patient("P-1"), JoinQueueInput{PatientID: "P-1", DoctorID: tuesday.ID})
	assert.ErrorIs(t, err, doctor.ErrDoctorUnavailable)

	_, err = h.svc.JoinQueue(ctx, patient("P-1"), JoinQueueInput{PatientID: "P-1", DoctorID: "DOC-missing"})
	assert.ErrorIs(t, err, doctor.ErrDoctorNotFound)

	_, err = h.svc.JoinQueue(ctx, patient("P-1"), JoinQueueInput{PatientID: "P-1"})
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestQueueFlowPublishesEvents(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.registerDoctor(t, "Monday")
	doctorCaller := Caller{ID: doc.ID, Role: RoleDoctor}

	watch, stop := h.hub.Subscribe(doc.ID)
	defer stop()

	first, err := h.svc.JoinQueue(ctx, patient("P-1"), JoinQueueInput{PatientID: "P-1", DoctorID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Position)
	assert.Equal(t, time.Duration(0), first.EstimatedWait)

	second, err := h.svc.JoinQueue(ctx, patient("P-2"), JoinQueueInput{PatientID: "P-2", DoctorID: doc.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Position)
	assert.Equal(t, queue.DefaultConsultation, second.EstimatedWait)

	_, err = h.svc.JoinQueue(ctx, patient("P-1"), JoinQueueInput{PatientID: "P-1", DoctorID: doc.ID})
	assert.ErrorIs(t, err, queue.ErrAlreadyQueued)

	_, _, err = h.svc.AdvanceQueue(ctx, patient("P-1"), doc.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	started, ok, err := h.svc.AdvanceQueue(ctx, doctorCaller, doc.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "P-1", started.PatientID)

	h.clock.Advance(10 * time.Minute)
	_, err = h.svc.CompleteConsultation(ctx, doctorCaller, doc.ID)
	require.NoError(t, err)

	status, err := h.svc.QueueStatus(ctx, doctorCaller, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.WaitingCount)
	assert.Len(t, status.Waiting, 1)
	assert.Equal(t, 10*time.Minute, status.AverageConsultation)

	public, err := h.svc.QueueStatus(ctx, patient("P-2"), doc.ID)
	require.NoError(t, err)
	assert.Nil(t, public.Waiting)

	pos, err := h.svc.QueuePosition(ctx, patient("P-2"), "P-2")
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Position)

	_, err = h.svc.LeaveQueue(ctx, patient("P-2"), "P-2")
	require.NoError(t, err)

	var types []string
	for len(watch) > 0 {
		ev := <-watch
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{
		events.QueueJoined, events.QueueJoined, events.QueueAdvanced, events.QueueCompleted, events.QueueLeft,
	}, types)
}

func TestRemoveQueueEntryByDoctor(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.registerDoctor(t, "Monday")

	ticket, err := h.svc.JoinQueue(ctx, patient("P-1"), JoinQueueInput{PatientID: "P-1", DoctorID: doc.ID})
	require.NoError(t, err)

	_, err = h.svc.RemoveQueueEntry(ctx, Caller{ID: "DOC-other", Role: RoleDoctor}, ticket.Entry.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	removed, err := h.svc.RemoveQueueEntry(ctx, Caller{ID: doc.ID, Role: RoleDoctor}, ticket.Entry.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusLeft, removed.Status)

	_, err = h.svc.QueuePosition(ctx, patient("P-1"), "P-1")
	assert.ErrorIs(t, err, queue.ErrNotQueued)
}

func TestDeactivateReportsOutstandingWork(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.registerDoctor(t, "Monday")

	_, err := h.svc.BookAppointment(ctx, patient("P-1"), BookAppointmentInput{
		PatientID: "P-1",
		DoctorID:  doc.ID,
		Date:      mustDate(t, "2026-03-09"),
		Time:      mustTime(t, "09:00"),
	})
	require.NoError(t, err)
	_, err = h.svc.JoinQueue(ctx, patient("P-2"), JoinQueueInput{PatientID: "P-2", DoctorID: doc.ID})
	require.NoError(t, err)

	res, err := h.svc.DeactivateDoctor(ctx, admin, doc.ID)
	require.NoError(t, err)
	assert.False(t, res.Doctor.Active)
	assert.Equal(t, 1, res.ScheduledAppointments)
	assert.Equal(t, 1, res.ActiveQueueEntries)

	// existing entries stay valid, new joins are refused
	_, err = h.svc.JoinQueue(ctx, patient("P-3"), JoinQueueInput{PatientID: "P-3", DoctorID: doc.ID})
	assert.ErrorIs(t, err, doctor.ErrDoctorUnavailable)
	pos, err := h.svc.QueuePosition(ctx, patient("P-2"), "P-2")
	require.NoError(t, err)
	assert.Equal(t, 1, pos.Position)

	_, err = h.svc.ReactivateDoctor(ctx, admin, doc.ID)
	require.NoError(t, err)
	_, err = h.svc.JoinQueue(ctx, patient("P-3"), JoinQueueInput{PatientID: "P-3", DoctorID: doc.ID})
	require.NoError(t, err)

	stats, err := h.svc.Stats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Doctors)
	assert.Equal(t, 1, stats.ActiveDoctors)
	assert.Equal(t, 1, stats.Appointments.Scheduled)
	assert.Equal(t, 2, stats.QueueActive)
	assert.Equal(t, 2, stats.QueueWaiting)
}

func TestSweepNoShows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doc := h.registerDoctor(t, "Monday")

	_, err := h.svc.BookAppointment(ctx, patient("P-1"), BookAppointmentInput{
		PatientID: "P-1",
		DoctorID:  doc.ID,
		Date:      mustDate(t, "2026-03-02"),
		Time:      mustTime(t, "10:00"),
	})
	require.NoError(t, err)

	h.clock.Set(time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC))
	n, err := h.svc.SweepNoShows(ctx, 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
