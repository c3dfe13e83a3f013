package doctor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hackgods/doctor-queue-scheduling/internal/apperr"
	"github.com/hackgods/doctor-queue-scheduling/internal/calendar"
	"github.com/hackgods/doctor-queue-scheduling/internal/clock"
)

type memRepo struct {
	mu      sync.Mutex
	saved   map[string]Doctor
	failing bool
}

func newMemRepo() *memRepo { return &memRepo{saved: make(map[string]Doctor)} }

func (m *memRepo) UpsertDoctor(_ context.Context, d Doctor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return errors.New("db down")
	}
	if cur, ok := m.saved[d.ID]; ok && cur.Version >= d.Version {
		return nil
	}
	m.saved[d.ID] = d
	return nil
}

func (m *memRepo) ListDoctors(_ context.Context) ([]Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Doctor, 0, len(m.saved))
	for _, d := range m.saved {
		out = append(out, d)
	}
	return out, nil
}

func morning(t *testing.T) calendar.TimeRange {
	t.Helper()
	r, err := calendar.ParseTimeRange("09:00-12:00")
	require.NoError(t, err)
	return r
}

func validDoctor(t *testing.T) Doctor {
	return Doctor{
		Name:               "Dr. Ada Grey",
		Specialization:     "Cardiology",
		Department:         "Internal Medicine",
		ConsultationFee:    80,
		AvailableDays:      []time.Weekday{time.Wednesday, time.Monday, time.Monday},
		AvailableTimeSlots: []calendar.TimeRange{morning(t)},
	}
}

func newTestDirectory(opts ...Option) (*Directory, *clock.Fake) {
	fake := clock.NewFake(time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	return NewDirectory(fake, clock.RandomIDs{}, opts...), fake
}

func TestRegisterAndGet(t *testing.T) {
	repo := newMemRepo()
	dir, _ := newTestDirectory(WithRepository(repo))

	doc, err := dir.Register(context.Background(), validDoctor(t))
	require.NoError(t, err)
	assert.Regexp(t, `^DOC-\d{8}$`, doc.ID)
	assert.True(t, doc.Active)
	assert.Equal(t, int64(1), doc.Version)
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday}, doc.AvailableDays)

	got, err := dir.Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
	assert.Contains(t, repo.saved, doc.ID)
}

func TestRegisterValidation(t *testing.T) {
	dir, _ := newTestDirectory()

	cases := map[string]func(d *Doctor){
		"missing name":      func(d *Doctor) { d.Name = "  " },
		"missing dept":      func(d *Doctor) { d.Department = "" },
		"negative fee":      func(d *Doctor) { d.ConsultationFee = -1 },
		"negative years":    func(d *Doctor) { d.ExperienceYears = -3 },
		"bad weekday":       func(d *Doctor) { d.AvailableDays = []time.Weekday{9} },
		"overlapping slots": func(d *Doctor) { d.AvailableTimeSlots = append(d.AvailableTimeSlots, calendar.TimeRange{Start: 600, End: 800}) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := validDoctor(t)
			mutate(&d)
			_, err := dir.Register(context.Background(), d)
			assert.ErrorIs(t, err, apperr.ErrValidation)
		})
	}
	total, _ := dir.Count()
	assert.Zero(t, total)
}

func TestRegisterWithExplicitIDRejectsDuplicates(t *testing.T) {
	dir, _ := newTestDirectory()
	d := validDoctor(t)
	d.ID = "DOC-12345678"

	_, err := dir.Register(context.Background(), d)
	require.NoError(t, err)
	_, err = dir.Register(context.Background(), d)
	assert.ErrorIs(t, err, ErrDoctorExists)
}

func TestUpdateAppliesPatchAtomically(t *testing.T) {
	dir, fake := newTestDirectory()
	doc, err := dir.Register(context.Background(), validDoctor(t))
	require.NoError(t, err)

	fake.Advance(time.Hour)
	fee := 120.0
	updated, err := dir.Update(context.Background(), doc.ID, Patch{ConsultationFee: &fee})
	require.NoError(t, err)
	assert.Equal(t, 120.0, updated.ConsultationFee)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, doc.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(doc.UpdatedAt))

	bad := -5.0
	name := "Renamed"
	_, err = dir.Update(context.Background(), doc.ID, Patch{Name: &name, ConsultationFee: &bad})
	assert.ErrorIs(t, err, apperr.ErrValidation)

	current, _ := dir.Get(doc.ID)
	assert.Equal(t, "Dr. Ada Grey", current.Name)
	assert.Equal(t, int64(2), current.Version)

	_, err = dir.Update(context.Background(), "DOC-00000000", Patch{Name: &name})
	assert.ErrorIs(t, err, ErrDoctorNotFound)
}

func TestDeactivateAndAvailability(t *testing.T) {
	dir, _ := newTestDirectory()
	doc, err := dir.Register(context.Background(), validDoctor(t))
	require.NoError(t, err)

	monday := calendar.Date{Year: 2026, Month: time.March, Day: 2}
	tuesday := calendar.Date{Year: 2026, Month: time.March, Day: 3}

	assert.True(t, dir.IsAvailable(doc.ID, monday))
	assert.False(t, dir.IsAvailable(doc.ID, tuesday))
	assert.False(t, dir.IsAvailable("missing", monday))

	_, err = dir.Deactivate(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.False(t, dir.IsAvailable(doc.ID, monday))
	assert.False(t, dir.IsActive(doc.ID))

	_, err = dir.Reactivate(context.Background(), doc.ID)
	require.NoError(t, err)
	assert.True(t, dir.IsActive(doc.ID))
}

func TestListFiltersAndOrders(t *testing.T) {
	dir, _ := newTestDirectory()
	ctx := context.Background()

	b := validDoctor(t)
	b.Name = "Dr. Bell"
	a := validDoctor(t)
	a.Name = "Dr. Adams"
	c := validDoctor(t)
	c.Name = "Dr. Chen"
	c.Specialization = "Dermatology"

	_, err := dir.Register(ctx, b)
	require.NoError(t, err)
	docA, err := dir.Register(ctx, a)
	require.NoError(t, err)
	_, err = dir.Register(ctx, c)
	require.NoError(t, err)
	_, err = dir.Deactivate(ctx, docA.ID)
	require.NoError(t, err)

	all := dir.List(Filter{})
	require.Len(t, all, 3)
	assert.Equal(t, "Dr. Adams", all[0].Name)

	active := dir.List(Filter{ActiveOnly: true, Specialization: "cardiology"})
	require.Len(t, active, 1)
	assert.Equal(t, "Dr. Bell", active[0].Name)

	total, activeCount := dir.Count()
	assert.Equal(t, 3, total)
	assert.Equal(t, 2, activeCount)
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	dir, _ := newTestDirectory()
	doc, err := dir.Register(context.Background(), validDoctor(t))
	require.NoError(t, err)

	doc.AvailableDays[0] = time.Sunday
	got, _ := dir.Get(doc.ID)
	assert.Equal(t, time.Monday, got.AvailableDays[0])
}

func TestPersistFailureDoesNotFailMutation(t *testing.T) {
	repo := newMemRepo()
	repo.failing = true
	dir, _ := newTestDirectory(WithRepository(repo))

	doc, err := dir.Register(context.Background(), validDoctor(t))
	require.NoError(t, err)
	_, err = dir.Get(doc.ID)
	assert.NoError(t, err)
}

func TestLoadRestoresFromRepository(t *testing.T) {
	repo := newMemRepo()
	first, _ := newTestDirectory(WithRepository(repo))
	doc, err := first.Register(context.Background(), validDoctor(t))
	require.NoError(t, err)

	second, _ := newTestDirectory(WithRepository(repo))
	require.NoError(t, second.Load(context.Background()))
	got, err := second.Get(doc.ID)
	require.NoError(t, err)
	assert.Equal(t, doc.Name, got.Name)
}
