package assistant

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superclinic/clinic-assistant/internal/availability"
	"github.com/superclinic/clinic-assistant/internal/booking"
	"github.com/superclinic/clinic-assistant/internal/recommend"
	"github.com/superclinic/clinic-assistant/internal/specialty"
	"github.com/superclinic/clinic-assistant/pkg/logging"
)

type fakeCatalog struct {
	doctors []specialty.Doctor
	err     error
}

func (f *fakeCatalog) ListDoctors(context.Context) ([]specialty.Doctor, error) {
	return f.doctors, f.err
}

func (f *fakeCatalog) ListDoctorsBySpecialty(context.Context, int64) ([]specialty.Doctor, error) {
	return f.doctors, f.err
}

type fakeMatcher struct {
	specialty *specialty.Specialty
	err       error
}

func (f *fakeMatcher) Resolve(context.Context, string) (*specialty.Specialty, error) {
	return f.specialty, f.err
}

type fakeResolver struct {
	slots []availability.SlotView
	err   error
}

func (f *fakeResolver) FindSlots(context.Context, availability.Query) ([]availability.SlotView, error) {
	return f.slots, f.err
}

type fakeLocator struct {
	doctor    *specialty.Doctor
	doctorErr error
	slotID    int64
	slotErr   error
}

func (f *fakeLocator) GetDoctorByName(context.Context, string) (*specialty.Doctor, error) {
	return f.doctor, f.doctorErr
}

func (f *fakeLocator) FindSlotID(context.Context, int64, time.Time, availability.TimeOfDay, availability.TimeOfDay) (int64, error) {
	return f.slotID, f.slotErr
}

type fakeEngine struct {
	conf    *booking.Confirmation
	err     error
	lastReq booking.Request
}

func (f *fakeEngine) Book(_ context.Context, req booking.Request) (*booking.Confirmation, error) {
	f.lastReq = req
	return f.conf, f.err
}

type fakeRecommender struct {
	slots   []availability.SlotView
	err     error
	lastReq *recommend.Request
}

func (f *fakeRecommender) Recommend(_ context.Context, req recommend.Request) ([]availability.SlotView, error) {
	f.lastReq = &req
	return f.slots, f.err
}

type orchestratorFixture struct {
	catalog     *fakeCatalog
	matcher     *fakeMatcher
	resolver    *fakeResolver
	locator     *fakeLocator
	engine      *fakeEngine
	recommender *fakeRecommender
	history     *HistoryStore
	orch        *Orchestrator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	history, _ := newTestHistoryStore(t)
	f := &orchestratorFixture{
		catalog:     &fakeCatalog{},
		matcher:     &fakeMatcher{},
		resolver:    &fakeResolver{},
		locator:     &fakeLocator{},
		engine:      &fakeEngine{},
		recommender: &fakeRecommender{},
		history:     history,
	}
	f.orch = NewOrchestrator(
		f.catalog, f.matcher, f.resolver, f.locator,
		f.engine, f.recommender, history, logging.Default(),
	)
	return f
}

func TestExecuteRequiresUser(t *testing.T) {
	f := newOrchestratorFixture(t)

	res := f.orch.Execute(context.Background(), "  ", "hi", OpListDoctors, nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInvalidInput, res.Error.Code)
}

func TestExecuteRejectsUnknownOperation(t *testing.T) {
	f := newOrchestratorFixture(t)

	res := f.orch.Execute(context.Background(), "user-1", "hi", "cancel-appointment", nil)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInvalidInput, res.Error.Code)
}

func TestListDoctorsRecordsTurn(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.catalog.doctors = []specialty.Doctor{{ID: 1, Name: "Dr. Grace Hopper", SpecialtyName: "Cardiology"}}

	res := f.orch.Execute(context.Background(), "user-1", "show me the doctors", OpListDoctors, nil)
	require.Equal(t, "success", res.Status)
	assert.Equal(t, "doctor_list", res.Type)
	require.Len(t, res.Doctors, 1)

	turns, err := f.history.ReadRecent(context.Background(), "user-1", 10)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "show me the doctors", turns[0].UserInput)
	assert.Equal(t, OpListDoctors, turns[0].Operation)

	state, err := f.history.LoadSession(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, StateAwaitingIntent, state.State)
}

func TestFilterBySpecialtySuccess(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.matcher.specialty = &specialty.Specialty{ID: 3, Name: "Cardiology"}
	f.catalog.doctors = []specialty.Doctor{{ID: 1, Name: "Dr. Grace Hopper", SpecialtyID: 3}}

	res := f.orch.Execute(context.Background(), "user-1", "", OpFilterBySpecialty, map[string]any{"specialty": "cardiology"})
	require.Equal(t, "success", res.Status)
	require.NotNil(t, res.Specialty)
	assert.Equal(t, "Cardiology", res.Specialty.Name)
	assert.Len(t, res.Doctors, 1)

	state, err := f.history.LoadSession(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, StateSpecialtyResolved, state.State)
	assert.Equal(t, int64(3), state.SpecialtyID)
}

func TestFilterBySpecialtyNoMatchCarriesSuggestions(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.matcher.err = &specialty.NoMatchError{
		Query:       "dermatolgy",
		Suggestions: []specialty.Suggestion{{Name: "Dermatology", Score: 0.9}},
	}

	res := f.orch.Execute(context.Background(), "user-1", "", OpFilterBySpecialty, map[string]any{"specialty": "dermatolgy"})
	require.Equal(t, "error", res.Status)
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeNotFound, res.Error.Code)
	require.Len(t, res.Suggestions, 1)
	assert.Equal(t, "Dermatology", res.Suggestions[0].Name)
}

func TestFilterBySpecialtyRequiresName(t *testing.T) {
	f := newOrchestratorFixture(t)

	res := f.orch.Execute(context.Background(), "user-1", "", OpFilterBySpecialty, map[string]any{})
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInvalidInput, res.Error.Code)
}

func TestGetAvailabilityBySpecialty(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.matcher.specialty = &specialty.Specialty{ID: 3, Name: "Cardiology"}
	day := time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC)
	f.resolver.slots = []availability.SlotView{
		{SlotID: 10, DoctorID: 1, Date: day, Start: 9 * 60, End: 9*60 + 30},
	}

	res := f.orch.Execute(context.Background(), "user-1", "", OpGetAvailability, map[string]any{"specialty": "cardiology"})
	require.Equal(t, "success", res.Status)
	assert.Equal(t, "availability", res.Type)
	require.Len(t, res.Slots, 1)
	assert.Empty(t, res.Alternatives)

	state, err := f.history.LoadSession(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, StateSlotsOffered, state.State)
	assert.Equal(t, []int64{10}, state.OfferedSlotIDs)
}

func TestGetAvailabilityEmptyDayOffersAlternatives(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.matcher.specialty = &specialty.Specialty{ID: 3, Name: "Cardiology"}
	day := time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)
	f.recommender.slots = []availability.SlotView{
		{SlotID: 20, DoctorID: 1, Date: day, Start: 10 * 60, End: 10*60 + 30},
	}

	res := f.orch.Execute(context.Background(), "user-1", "", OpGetAvailability, map[string]any{
		"specialty": "cardiology",
		"date":      "2026-09-03",
	})
	require.Equal(t, "success", res.Status)
	assert.Empty(t, res.Slots)
	require.Len(t, res.Alternatives, 1)
	assert.Equal(t, int64(20), res.Alternatives[0].SlotID)

	require.NotNil(t, f.recommender.lastReq)
	assert.Equal(t, int64(3), f.recommender.lastReq.SpecialtyID)
}

func TestGetAvailabilityInvalidDate(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.matcher.specialty = &specialty.Specialty{ID: 3, Name: "Cardiology"}

	res := f.orch.Execute(context.Background(), "user-1", "", OpGetAvailability, map[string]any{
		"specialty": "cardiology",
		"date":      "09/03/2026",
	})
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInvalidInput, res.Error.Code)
}

func TestBookAppointmentBySlotID(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.engine.conf = &booking.Confirmation{
		Booking: booking.Booking{SlotID: 42, UserID: "user-1"},
		Slot:    availability.SlotView{SlotID: 42, DoctorName: "Dr. Grace Hopper"},
	}

	res := f.orch.Execute(context.Background(), "user-1", "", OpBookAppointment, map[string]any{
		"slotId":      float64(42),
		"patientName": "Ada Lovelace",
		"email":       "ada@example.com",
		"phone":       "+15550100",
	})
	require.Equal(t, "success", res.Status)
	assert.Equal(t, "booking_confirmation", res.Type)
	require.NotNil(t, res.Booking)
	assert.Equal(t, int64(42), f.engine.lastReq.SlotID)
	assert.Equal(t, "user-1", f.engine.lastReq.UserID)

	state, err := f.history.LoadSession(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, StateBookingConfirmed, state.State)
}

func TestBookAppointmentByDoctorAndTime(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.locator.doctor = &specialty.Doctor{ID: 7, Name: "Dr. Grace Hopper", SpecialtyID: 3, SpecialtyName: "Cardiology"}
	f.locator.slotID = 42
	f.engine.conf = &booking.Confirmation{Booking: booking.Booking{SlotID: 42}}

	res := f.orch.Execute(context.Background(), "user-1", "", OpBookAppointment, map[string]any{
		"doctorName":  "Dr. Grace Hopper",
		"date":        "2026-09-03",
		"time":        "09:00-09:30",
		"patientName": "Ada Lovelace",
		"email":       "ada@example.com",
		"phone":       "+15550100",
	})
	require.Equal(t, "success", res.Status)
	assert.Equal(t, int64(42), f.engine.lastReq.SlotID)
}

func TestBookAppointmentMissingSelector(t *testing.T) {
	f := newOrchestratorFixture(t)

	res := f.orch.Execute(context.Background(), "user-1", "", OpBookAppointment, map[string]any{
		"patientName": "Ada Lovelace",
		"email":       "ada@example.com",
		"phone":       "+15550100",
	})
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInvalidInput, res.Error.Code)
}

func TestBookAppointmentConflictHasNoAlternatives(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.engine.err = booking.ErrSlotConflict
	f.recommender.slots = []availability.SlotView{{SlotID: 99}}

	res := f.orch.Execute(context.Background(), "user-1", "", OpBookAppointment, map[string]any{
		"slotId":      float64(42),
		"patientName": "Ada Lovelace",
		"email":       "ada@example.com",
		"phone":       "+15550100",
	})
	require.Equal(t, "error", res.Status)
	assert.Equal(t, CodeConflict, res.Error.Code)
	assert.Empty(t, res.Alternatives, "a lost race must not offer stale alternatives")
}

func TestBookAppointmentVanishedSlotOffersAlternatives(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.locator.doctor = &specialty.Doctor{ID: 7, Name: "Dr. Grace Hopper", SpecialtyID: 3, SpecialtyName: "Cardiology"}
	f.locator.slotID = 42
	f.engine.err = booking.ErrSlotNotFound
	f.recommender.slots = []availability.SlotView{{SlotID: 99}}

	res := f.orch.Execute(context.Background(), "user-1", "", OpBookAppointment, map[string]any{
		"doctorName":  "Dr. Grace Hopper",
		"date":        "2026-09-03",
		"time":        "09:00-09:30",
		"patientName": "Ada Lovelace",
		"email":       "ada@example.com",
		"phone":       "+15550100",
	})
	require.Equal(t, "error", res.Status)
	assert.Equal(t, CodeNotFound, res.Error.Code)
	require.Len(t, res.Alternatives, 1)
	assert.Equal(t, int64(99), res.Alternatives[0].SlotID)
}

func TestBookAppointmentUnlocatableSlotOffersAlternatives(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.locator.doctor = &specialty.Doctor{ID: 7, Name: "Dr. Grace Hopper", SpecialtyID: 3, SpecialtyName: "Cardiology"}
	f.locator.slotErr = availability.ErrSlotNotFound
	f.recommender.slots = []availability.SlotView{{SlotID: 99}}

	res := f.orch.Execute(context.Background(), "user-1", "", OpBookAppointment, map[string]any{
		"doctorName":  "Dr. Grace Hopper",
		"date":        "2026-09-03",
		"time":        "09:00-09:30",
		"patientName": "Ada Lovelace",
		"email":       "ada@example.com",
		"phone":       "+15550100",
	})
	require.Equal(t, "error", res.Status)
	assert.Equal(t, CodeNotFound, res.Error.Code)
	require.Len(t, res.Alternatives, 1)
}

func TestRecommendAlternativesOperation(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.matcher.specialty = &specialty.Specialty{ID: 3, Name: "Cardiology"}
	f.recommender.slots = []availability.SlotView{{SlotID: 99}}

	res := f.orch.Execute(context.Background(), "user-1", "", OpRecommendAlternatives, map[string]any{
		"specialty":  "cardiology",
		"date":       "2026-09-03",
		"time":       "14:00",
		"maxResults": float64(2),
	})
	require.Equal(t, "success", res.Status)
	assert.Equal(t, "alternatives", res.Type)
	require.Len(t, res.Alternatives, 1)

	require.NotNil(t, f.recommender.lastReq)
	assert.Equal(t, int64(3), f.recommender.lastReq.SpecialtyID)
	require.NotNil(t, f.recommender.lastReq.DesiredTime)
	assert.Equal(t, availability.TimeOfDay(14*60), *f.recommender.lastReq.DesiredTime)
	assert.Equal(t, 2, f.recommender.lastReq.MaxResults)
}

func TestRecommendAlternativesRequiresDate(t *testing.T) {
	f := newOrchestratorFixture(t)

	res := f.orch.Execute(context.Background(), "user-1", "", OpRecommendAlternatives, map[string]any{
		"specialty": "cardiology",
	})
	require.NotNil(t, res.Error)
	assert.Equal(t, CodeInvalidInput, res.Error.Code)
}

func TestPerUserTurnOrdering(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.catalog.doctors = []specialty.Doctor{{ID: 1, Name: "Dr. Grace Hopper"}}

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f.orch.Execute(context.Background(), "user-1", fmt.Sprintf("turn %d", i), OpListDoctors, nil)
		}(i)
	}
	wg.Wait()

	got, err := f.history.ReadRecent(context.Background(), "user-1", turns)
	require.NoError(t, err)
	assert.Len(t, got, turns, "every serialized turn must land in the log exactly once")
}

func TestClassifyErrorTaxonomy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"empty query", specialty.ErrEmptyQuery, CodeInvalidInput},
		{"missing selector", availability.ErrMissingSelector, CodeInvalidInput},
		{"missing patient name", booking.ErrMissingPatientName, CodeInvalidInput},
		{"no specialty match", specialty.ErrNoMatch, CodeNotFound},
		{"doctor not found", availability.ErrDoctorNotFound, CodeNotFound},
		{"slot vanished", booking.ErrSlotNotFound, CodeNotFound},
		{"lost race", booking.ErrSlotConflict, CodeConflict},
		{"store unavailable", booking.ErrUnavailable, CodeUnavailable},
		{"deadline", context.DeadlineExceeded, CodeUnavailable},
		{"anything else", assert.AnError, CodeInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err))
		})
	}
}
