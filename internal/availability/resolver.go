package availability

import (
	"context"
	"errors"
	"time"

	"github.com/superclinic/clinic-assistant/pkg/logging"
)

// ErrMissingSelector is returned when neither a specialty nor a doctor is given
var ErrMissingSelector = errors.New("availability: specialty or doctor selector required")

type slotSource interface {
	FindOpenSlots(ctx context.Context, f Filter) ([]SlotView, error)
}

// Query describes a caller's availability request. From/To are optional; the
// resolver bounds every query to [today, today+horizon].
type Query struct {
	SpecialtyID   int64
	DoctorID      int64
	From          *time.Time
	To            *time.Time
	IncludeBooked bool
}

// Resolver computes open slots for a specialty/doctor/date filter.
type Resolver struct {
	repo    slotSource
	horizon int
	logger  *logging.Logger
	now     func() time.Time
}

// NewResolver creates a resolver with the given look-ahead horizon in days.
func NewResolver(repo slotSource, horizonDays int, logger *logging.Logger) *Resolver {
	if repo == nil {
		panic("availability: slot source required")
	}
	if horizonDays <= 0 {
		horizonDays = 14
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Resolver{
		repo:    repo,
		horizon: horizonDays,
		logger:  logger,
		now:     time.Now,
	}
}

// FindSlots returns open slots matching the query in deterministic order
// (date, start time, doctor id). A range entirely in the past or entirely
// beyond the horizon yields an empty result, not an error.
func (r *Resolver) FindSlots(ctx context.Context, q Query) ([]SlotView, error) {
	if q.SpecialtyID == 0 && q.DoctorID == 0 {
		return nil, ErrMissingSelector
	}

	today := DateOnly(r.now())
	limit := today.AddDate(0, 0, r.horizon)

	from, to := today, limit
	if q.From != nil {
		from = DateOnly(*q.From)
	}
	if q.To != nil {
		to = DateOnly(*q.To)
	}
	// Clamp to the bounded window.
	if from.Before(today) {
		from = today
	}
	if to.After(limit) {
		to = limit
	}
	if from.After(to) {
		return []SlotView{}, nil
	}

	slots, err := r.repo.FindOpenSlots(ctx, Filter{
		SpecialtyID:   q.SpecialtyID,
		DoctorID:      q.DoctorID,
		From:          from,
		To:            to,
		IncludeBooked: q.IncludeBooked,
	})
	if err != nil {
		return nil, err
	}
	if slots == nil {
		slots = []SlotView{}
	}
	r.logger.Debug("resolved availability",
		"specialty_id", q.SpecialtyID,
		"doctor_id", q.DoctorID,
		"from", from.Format("2006-01-02"),
		"to", to.Format("2006-01-02"),
		"count", len(slots),
	)
	return slots, nil
}
