package recommend

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/superclinic/clinic-assistant/internal/availability"
	"github.com/superclinic/clinic-assistant/pkg/logging"
)

var (
	// ErrMissingSpecialty is returned when no specialty is given
	ErrMissingSpecialty = errors.New("recommend: specialty is required")

	// ErrMissingDate is returned when no desired date is given
	ErrMissingDate = errors.New("recommend: desired date is required")
)

type slotSource interface {
	FindOpenSlots(ctx context.Context, f availability.Filter) ([]availability.SlotView, error)
}

// Request describes the unsatisfiable booking the caller wants alternatives
// for. DesiredTime is optional; MaxResults falls back to the configured cap.
type Request struct {
	SpecialtyID int64
	DesiredDate time.Time
	DesiredTime *availability.TimeOfDay
	MaxResults  int
}

// Recommender proposes ranked open slots around an unsatisfiable request.
type Recommender struct {
	repo       slotSource
	windowDays int
	maxResults int
	logger     *logging.Logger
	now        func() time.Time
}

// NewRecommender creates a recommender searching ±windowDays around the
// desired date, returning at most maxResults slots.
func NewRecommender(repo slotSource, windowDays, maxResults int, logger *logging.Logger) *Recommender {
	if repo == nil {
		panic("recommend: slot source required")
	}
	if windowDays <= 0 {
		windowDays = 7
	}
	if maxResults <= 0 {
		maxResults = 3
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Recommender{
		repo:       repo,
		windowDays: windowDays,
		maxResults: maxResults,
		logger:     logger,
		now:        time.Now,
	}
}

// Recommend returns open slots for the specialty ranked by closeness to the
// request: absolute day distance first, then time-of-day distance when a
// desired time is given (start time otherwise), then doctor id, then slot id.
// An empty result means nothing is open in the widened window; it is not an
// error.
func (r *Recommender) Recommend(ctx context.Context, req Request) ([]availability.SlotView, error) {
	if req.SpecialtyID == 0 {
		return nil, ErrMissingSpecialty
	}
	if req.DesiredDate.IsZero() {
		return nil, ErrMissingDate
	}

	desired := availability.DateOnly(req.DesiredDate)
	from := desired.AddDate(0, 0, -r.windowDays)
	to := desired.AddDate(0, 0, r.windowDays)
	if today := availability.DateOnly(r.now()); from.Before(today) {
		from = today
	}
	if from.After(to) {
		return []availability.SlotView{}, nil
	}

	pool, err := r.repo.FindOpenSlots(ctx, availability.Filter{
		SpecialtyID: req.SpecialtyID,
		From:        from,
		To:          to,
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(pool, func(i, j int) bool {
		di, dj := dayDistance(pool[i].Date, desired), dayDistance(pool[j].Date, desired)
		if di != dj {
			return di < dj
		}
		if req.DesiredTime != nil {
			ti, tj := pool[i].Start.MinutesTo(*req.DesiredTime), pool[j].Start.MinutesTo(*req.DesiredTime)
			if ti != tj {
				return ti < tj
			}
		} else if pool[i].Start != pool[j].Start {
			return pool[i].Start < pool[j].Start
		}
		if pool[i].DoctorID != pool[j].DoctorID {
			return pool[i].DoctorID < pool[j].DoctorID
		}
		return pool[i].SlotID < pool[j].SlotID
	})

	limit := req.MaxResults
	if limit <= 0 || limit > r.maxResults {
		limit = r.maxResults
	}
	if len(pool) > limit {
		pool = pool[:limit]
	}
	r.logger.Debug("recommended alternatives",
		"specialty_id", req.SpecialtyID,
		"desired_date", desired.Format("2006-01-02"),
		"count", len(pool),
	)
	if pool == nil {
		pool = []availability.SlotView{}
	}
	return pool, nil
}

func dayDistance(a, b time.Time) int {
	d := int(a.Sub(b) / (24 * time.Hour))
	if d < 0 {
		d = -d
	}
	return d
}
