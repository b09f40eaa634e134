package assistant

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/superclinic/clinic-assistant/internal/availability"
	"github.com/superclinic/clinic-assistant/internal/booking"
	"github.com/superclinic/clinic-assistant/internal/recommend"
	"github.com/superclinic/clinic-assistant/internal/specialty"
	"github.com/superclinic/clinic-assistant/pkg/logging"
)

// Operations the intent oracle may select. Anything else is rejected before
// dispatch.
const (
	OpListDoctors           = "list-doctors"
	OpFilterBySpecialty     = "filter-by-specialty"
	OpGetAvailability       = "get-availability"
	OpBookAppointment       = "book-appointment"
	OpRecommendAlternatives = "recommend-alternatives"
)

// Error codes surfaced in structured results.
const (
	CodeInvalidInput = "invalid_input"
	CodeNotFound     = "not_found"
	CodeConflict     = "conflict"
	CodeUnavailable  = "unavailable"
	CodeInternal     = "internal"
)

// Result is the structured outcome of one operation, shaped for the oracle to
// phrase a reply from. Failures are typed, never opaque text.
type Result struct {
	Status       string                  `json:"status"`
	Type         string                  `json:"type,omitempty"`
	Doctors      []specialty.Doctor      `json:"doctors,omitempty"`
	Specialty    *specialty.Specialty    `json:"specialty,omitempty"`
	Suggestions  []specialty.Suggestion  `json:"suggestions,omitempty"`
	Slots        []availability.SlotView `json:"slots,omitempty"`
	Alternatives []availability.SlotView `json:"alternatives,omitempty"`
	Booking      *booking.Confirmation   `json:"booking,omitempty"`
	Error        *ResultError            `json:"error,omitempty"`
}

// ResultError is a typed failure in a Result.
type ResultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type specialtyResolver interface {
	Resolve(ctx context.Context, freeText string) (*specialty.Specialty, error)
}

type doctorCatalog interface {
	ListDoctors(ctx context.Context) ([]specialty.Doctor, error)
	ListDoctorsBySpecialty(ctx context.Context, specialtyID int64) ([]specialty.Doctor, error)
}

type slotResolver interface {
	FindSlots(ctx context.Context, q availability.Query) ([]availability.SlotView, error)
}

type slotLocator interface {
	GetDoctorByName(ctx context.Context, name string) (*specialty.Doctor, error)
	FindSlotID(ctx context.Context, doctorID int64, date time.Time, start, end availability.TimeOfDay) (int64, error)
}

type bookingEngine interface {
	Book(ctx context.Context, req booking.Request) (*booking.Confirmation, error)
}

type alternativeSource interface {
	Recommend(ctx context.Context, req recommend.Request) ([]availability.SlotView, error)
}

// Orchestrator maps oracle-selected operations onto the engine components.
// It validates argument shape before dispatch, converts domain failures into
// typed results, and appends every turn to the per-user history log. Turns
// for one user id are serialized; the store never sees interleaved appends
// from the same user.
type Orchestrator struct {
	doctors     doctorCatalog
	matcher     specialtyResolver
	resolver    slotResolver
	locator     slotLocator
	engine      bookingEngine
	recommender alternativeSource
	history     *HistoryStore
	logger      *logging.Logger

	userLocks sync.Map // userID -> *sync.Mutex
}

// NewOrchestrator wires the engine components together.
func NewOrchestrator(
	doctors doctorCatalog,
	matcher specialtyResolver,
	resolver slotResolver,
	locator slotLocator,
	engine bookingEngine,
	recommender alternativeSource,
	history *HistoryStore,
	logger *logging.Logger,
) *Orchestrator {
	if history == nil {
		panic("assistant: history store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Orchestrator{
		doctors:     doctors,
		matcher:     matcher,
		resolver:    resolver,
		locator:     locator,
		engine:      engine,
		recommender: recommender,
		history:     history,
		logger:      logger,
	}
}

// Execute runs one operation for a user and records the turn. userInput is
// the raw user message that led to this operation; it may be empty for
// follow-up tool calls within the same turn.
func (o *Orchestrator) Execute(ctx context.Context, userID, userInput, operation string, args map[string]any) *Result {
	if strings.TrimSpace(userID) == "" {
		return invalidResult("user id is required")
	}

	mu := o.lockFor(userID)
	mu.Lock()
	defer mu.Unlock()

	var res *Result
	switch operation {
	case OpListDoctors:
		res = o.listDoctors(ctx)
	case OpFilterBySpecialty:
		res = o.filterBySpecialty(ctx, args)
	case OpGetAvailability:
		res = o.getAvailability(ctx, args)
	case OpBookAppointment:
		res = o.bookAppointment(ctx, userID, args)
	case OpRecommendAlternatives:
		res = o.recommendAlternatives(ctx, args)
	default:
		res = invalidResult("unknown operation " + strconv.Quote(operation))
	}

	o.recordTurn(ctx, userID, userInput, operation, res)
	return res
}

func (o *Orchestrator) lockFor(userID string) *sync.Mutex {
	v, _ := o.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

func (o *Orchestrator) listDoctors(ctx context.Context) *Result {
	doctors, err := o.doctors.ListDoctors(ctx)
	if err != nil {
		return errorResult(err, "could not list doctors")
	}
	return &Result{Status: "success", Type: "doctor_list", Doctors: doctors}
}

func (o *Orchestrator) filterBySpecialty(ctx context.Context, args map[string]any) *Result {
	name := stringArg(args, "specialty", "speciality")
	if name == "" {
		return invalidResult("specialty is required")
	}

	sp, err := o.matcher.Resolve(ctx, name)
	if err != nil {
		var noMatch *specialty.NoMatchError
		if errors.As(err, &noMatch) {
			return &Result{
				Status:      "error",
				Type:        "filtered_doctors",
				Suggestions: noMatch.Suggestions,
				Error:       &ResultError{Code: CodeNotFound, Message: "no specialty matching " + strconv.Quote(name)},
			}
		}
		return errorResult(err, "could not resolve specialty")
	}

	doctors, err := o.doctors.ListDoctorsBySpecialty(ctx, sp.ID)
	if err != nil {
		return errorResult(err, "could not list doctors")
	}
	return &Result{Status: "success", Type: "filtered_doctors", Specialty: sp, Doctors: doctors}
}

func (o *Orchestrator) getAvailability(ctx context.Context, args map[string]any) *Result {
	q := availability.Query{
		DoctorID:      int64Arg(args, "doctorId", "doctor_id"),
		IncludeBooked: boolArg(args, "includeBooked", "include_booked"),
	}

	var sp *specialty.Specialty
	if doctorName := stringArg(args, "doctorName", "doctor_name"); doctorName != "" && q.DoctorID == 0 {
		doctor, err := o.locator.GetDoctorByName(ctx, doctorName)
		if err != nil {
			return errorResult(err, "no doctor named "+strconv.Quote(doctorName))
		}
		q.DoctorID = doctor.ID
		sp = &specialty.Specialty{ID: doctor.SpecialtyID, Name: doctor.SpecialtyName}
	} else if name := stringArg(args, "specialty", "speciality"); name != "" && q.DoctorID == 0 {
		resolved, err := o.matcher.Resolve(ctx, name)
		if err != nil {
			return errorResult(err, "could not resolve specialty")
		}
		sp = resolved
		q.SpecialtyID = resolved.ID
	}

	var desiredDate *time.Time
	if dateStr := stringArg(args, "date"); dateStr != "" {
		date, err := availability.ParseDate(dateStr)
		if err != nil {
			return invalidResult("invalid date, use YYYY-MM-DD")
		}
		desiredDate = &date
		q.From, q.To = &date, &date
	}

	slots, err := o.resolver.FindSlots(ctx, q)
	if err != nil {
		return errorResult(err, "could not load availability")
	}

	res := &Result{Status: "success", Type: "availability", Specialty: sp, Slots: slots}
	// Nothing open for the exact request: offer alternatives instead of a
	// bare empty answer.
	if len(slots) == 0 && sp != nil && desiredDate != nil {
		if alternatives, err := o.recommender.Recommend(ctx, recommend.Request{
			SpecialtyID: sp.ID,
			DesiredDate: *desiredDate,
		}); err == nil {
			res.Alternatives = alternatives
		} else {
			o.logger.Warn("alternative lookup failed", "error", err)
		}
	}
	return res
}

func (o *Orchestrator) bookAppointment(ctx context.Context, userID string, args map[string]any) *Result {
	req := booking.Request{
		SlotID:      int64Arg(args, "slotId", "slot_id"),
		UserID:      userID,
		PatientName: stringArg(args, "patientName", "patient_name"),
		Email:       stringArg(args, "email"),
		Phone:       stringArg(args, "phone"),
	}

	var (
		sp          *specialty.Specialty
		desiredDate time.Time
		desiredTime *availability.TimeOfDay
	)

	// Slot may be addressed directly or by doctor/date/time range.
	if req.SlotID == 0 {
		doctorName := stringArg(args, "doctorName", "doctor_name")
		dateStr := stringArg(args, "date")
		rangeStr := stringArg(args, "time", "timeRange", "time_range")
		if doctorName == "" || dateStr == "" || rangeStr == "" {
			return invalidResult("either slotId or doctorName, date and time are required")
		}
		doctor, err := o.locator.GetDoctorByName(ctx, doctorName)
		if err != nil {
			return errorResult(err, "no doctor named "+strconv.Quote(doctorName))
		}
		date, err := availability.ParseDate(dateStr)
		if err != nil {
			return invalidResult("invalid date, use YYYY-MM-DD")
		}
		start, end, err := availability.ParseTimeRange(rangeStr)
		if err != nil {
			return invalidResult("invalid time range, use HH:MM-HH:MM")
		}
		sp = &specialty.Specialty{ID: doctor.SpecialtyID, Name: doctor.SpecialtyName}
		desiredDate, desiredTime = date, &start

		slotID, err := o.locator.FindSlotID(ctx, doctor.ID, date, start, end)
		if err != nil {
			res := errorResult(err, "slot not available or already booked")
			o.attachAlternatives(ctx, res, sp, desiredDate, desiredTime)
			return res
		}
		req.SlotID = slotID
	}

	conf, err := o.engine.Book(ctx, req)
	if err != nil {
		res := errorResult(err, "could not book the appointment")
		// A vanished slot still deserves alternatives; a lost race does
		// not — the caller must re-query availability.
		if errors.Is(err, booking.ErrSlotNotFound) && sp != nil {
			o.attachAlternatives(ctx, res, sp, desiredDate, desiredTime)
		}
		return res
	}
	return &Result{Status: "success", Type: "booking_confirmation", Booking: conf}
}

func (o *Orchestrator) recommendAlternatives(ctx context.Context, args map[string]any) *Result {
	dateStr := stringArg(args, "date")
	if dateStr == "" {
		return invalidResult("date is required")
	}
	date, err := availability.ParseDate(dateStr)
	if err != nil {
		return invalidResult("invalid date, use YYYY-MM-DD")
	}

	var sp *specialty.Specialty
	if doctorName := stringArg(args, "doctorName", "doctor_name"); doctorName != "" {
		doctor, err := o.locator.GetDoctorByName(ctx, doctorName)
		if err != nil {
			return errorResult(err, "no doctor named "+strconv.Quote(doctorName))
		}
		sp = &specialty.Specialty{ID: doctor.SpecialtyID, Name: doctor.SpecialtyName}
	} else if name := stringArg(args, "specialty", "speciality"); name != "" {
		resolved, err := o.matcher.Resolve(ctx, name)
		if err != nil {
			return errorResult(err, "could not resolve specialty")
		}
		sp = resolved
	} else {
		return invalidResult("specialty or doctorName is required")
	}

	rec := recommend.Request{SpecialtyID: sp.ID, DesiredDate: date}
	if timeStr := stringArg(args, "time", "startTime", "start_time"); timeStr != "" {
		t, err := availability.ParseTimeOfDay(timeStr)
		if err != nil {
			return invalidResult("invalid time, use HH:MM")
		}
		rec.DesiredTime = &t
	}
	if n := int64Arg(args, "maxResults", "max_results"); n > 0 {
		rec.MaxResults = int(n)
	}

	alternatives, err := o.recommender.Recommend(ctx, rec)
	if err != nil {
		return errorResult(err, "could not recommend alternatives")
	}
	return &Result{Status: "success", Type: "alternatives", Specialty: sp, Alternatives: alternatives}
}

func (o *Orchestrator) attachAlternatives(ctx context.Context, res *Result, sp *specialty.Specialty, date time.Time, t *availability.TimeOfDay) {
	alternatives, err := o.recommender.Recommend(ctx, recommend.Request{
		SpecialtyID: sp.ID,
		DesiredDate: date,
		DesiredTime: t,
	})
	if err != nil {
		o.logger.Warn("alternative lookup failed", "error", err)
		return
	}
	res.Alternatives = alternatives
}

func (o *Orchestrator) recordTurn(ctx context.Context, userID, userInput, operation string, res *Result) {
	turn := TurnRecord{
		UserInput: userInput,
		Operation: operation,
		Result:    res,
		At:        time.Now().UTC(),
	}
	if err := o.history.Append(ctx, userID, turn); err != nil {
		o.logger.Error("failed to append turn", "error", err, "user_id", userID)
	}
	if err := o.history.SaveSession(ctx, userID, nextSession(res)); err != nil {
		o.logger.Error("failed to save session", "error", err, "user_id", userID)
	}
}

// nextSession derives the follow-up session state from a result. Failed or
// ambiguous turns reset to awaiting_intent.
func nextSession(res *Result) *SessionState {
	state := &SessionState{State: StateAwaitingIntent, UpdatedAt: time.Now().UTC()}
	if res == nil || res.Status != "success" {
		return state
	}
	if res.Specialty != nil {
		state.State = StateSpecialtyResolved
		state.SpecialtyID = res.Specialty.ID
		state.SpecialtyName = res.Specialty.Name
	}
	offered := res.Slots
	if len(offered) == 0 {
		offered = res.Alternatives
	}
	if len(offered) > 0 {
		state.State = StateSlotsOffered
		for _, s := range offered {
			state.OfferedSlotIDs = append(state.OfferedSlotIDs, s.SlotID)
		}
	}
	if res.Booking != nil {
		state.State = StateBookingConfirmed
	}
	return state
}

func invalidResult(msg string) *Result {
	return &Result{Status: "error", Error: &ResultError{Code: CodeInvalidInput, Message: msg}}
}

func errorResult(err error, msg string) *Result {
	return &Result{Status: "error", Error: &ResultError{Code: classify(err), Message: msg}}
}

// classify maps domain errors onto the result taxonomy.
func classify(err error) string {
	switch {
	case errors.Is(err, specialty.ErrEmptyQuery),
		errors.Is(err, availability.ErrMissingSelector),
		errors.Is(err, recommend.ErrMissingSpecialty),
		errors.Is(err, recommend.ErrMissingDate),
		errors.Is(err, booking.ErrInvalidSlot),
		errors.Is(err, booking.ErrMissingUser),
		errors.Is(err, booking.ErrMissingPatientName),
		errors.Is(err, booking.ErrMissingEmail),
		errors.Is(err, booking.ErrMissingPhone):
		return CodeInvalidInput
	case errors.Is(err, specialty.ErrNoMatch),
		errors.Is(err, availability.ErrDoctorNotFound),
		errors.Is(err, availability.ErrSlotNotFound),
		errors.Is(err, booking.ErrSlotNotFound):
		return CodeNotFound
	case errors.Is(err, booking.ErrSlotConflict):
		return CodeConflict
	case errors.Is(err, booking.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return CodeUnavailable
	default:
		return CodeInternal
	}
}

func stringArg(args map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := args[k]; ok {
			if s, ok := v.(string); ok {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}

func int64Arg(args map[string]any, keys ...string) int64 {
	for _, k := range keys {
		v, ok := args[k]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return int64(n)
		case int:
			return int64(n)
		case int64:
			return n
		case string:
			if parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
				return parsed
			}
		}
	}
	return 0
}

func boolArg(args map[string]any, keys ...string) bool {
	for _, k := range keys {
		v, ok := args[k]
		if !ok {
			continue
		}
		switch b := v.(type) {
		case bool:
			return b
		case string:
			switch strings.ToLower(strings.TrimSpace(b)) {
			case "true", "1", "yes", "y":
				return true
			}
		}
	}
	return false
}
