package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/superclinic/clinic-assistant/internal/availability"
	"github.com/superclinic/clinic-assistant/internal/observability/metrics"
	"github.com/superclinic/clinic-assistant/pkg/logging"
)

type txBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Engine reserves slots with an exactly-once guarantee. The booked flag is
// flipped by a conditional update inside a transaction; the affected-row
// count decides between success and a lost race, so the guarantee holds
// across independent processes sharing the store.
type Engine struct {
	db      txBeginner
	timeout time.Duration
	logger  *logging.Logger
	metrics *metrics.EngineMetrics
	tracer  trace.Tracer
}

// NewEngine creates a booking engine over a pgx pool.
func NewEngine(pool *pgxpool.Pool, timeout time.Duration, logger *logging.Logger, em *metrics.EngineMetrics) *Engine {
	if pool == nil {
		panic("booking: pgx pool required")
	}
	return newEngine(pool, timeout, logger, em)
}

// NewEngineWithDB allows injecting mocks for tests.
func NewEngineWithDB(db txBeginner, timeout time.Duration, logger *logging.Logger, em *metrics.EngineMetrics) *Engine {
	return newEngine(db, timeout, logger, em)
}

func newEngine(db txBeginner, timeout time.Duration, logger *logging.Logger, em *metrics.EngineMetrics) *Engine {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{
		db:      db,
		timeout: timeout,
		logger:  logger,
		metrics: em,
		tracer:  otel.Tracer("clinic.internal.booking"),
	}
}

// Book atomically marks the slot booked and records the booking. It returns
// ErrSlotNotFound when the slot does not exist, ErrSlotConflict when another
// booking won the race, and ErrUnavailable on transient store failures.
func (e *Engine) Book(ctx context.Context, req Request) (*Confirmation, error) {
	if err := req.Validate(); err != nil {
		e.metrics.ObserveBooking("invalid")
		return nil, err
	}

	ctx, span := e.tracer.Start(ctx, "booking.book")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	conf, err := e.bookTx(ctx, req)
	if err != nil {
		span.RecordError(err)
		switch {
		case errors.Is(err, ErrSlotConflict):
			e.metrics.ObserveBooking("conflict")
		case errors.Is(err, ErrSlotNotFound):
			e.metrics.ObserveBooking("not_found")
		case errors.Is(err, ErrUnavailable):
			e.metrics.ObserveBooking("unavailable")
		default:
			e.metrics.ObserveBooking("error")
		}
		return nil, err
	}

	e.metrics.ObserveBooking("confirmed")
	e.logger.Info("booking confirmed",
		"booking_id", conf.Booking.ID,
		"slot_id", conf.Booking.SlotID,
		"user_id", conf.Booking.UserID,
	)
	return conf, nil
}

func (e *Engine) bookTx(ctx context.Context, req Request) (*Confirmation, error) {
	tx, err := e.db.Begin(ctx)
	if err != nil {
		return nil, wrapStoreErr("begin", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx,
		`UPDATE slots SET booked = TRUE WHERE id = $1 AND booked = FALSE`,
		req.SlotID,
	)
	if err != nil {
		return nil, wrapStoreErr("mark slot", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM slots WHERE id = $1)`,
			req.SlotID,
		).Scan(&exists); err != nil {
			return nil, wrapStoreErr("probe slot", err)
		}
		if !exists {
			return nil, ErrSlotNotFound
		}
		return nil, ErrSlotConflict
	}

	b := Booking{
		ID:          uuid.New(),
		UserID:      req.UserID,
		SlotID:      req.SlotID,
		PatientName: req.PatientName,
		Email:       req.Email,
		Phone:       req.Phone,
	}
	if err := tx.QueryRow(ctx,
		`INSERT INTO bookings (id, user_id, slot_id, patient_name, email, phone)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at`,
		b.ID, b.UserID, b.SlotID, b.PatientName, b.Email, b.Phone,
	).Scan(&b.CreatedAt); err != nil {
		return nil, wrapStoreErr("insert booking", err)
	}

	slot, err := slotViewTx(ctx, tx, req.SlotID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapStoreErr("commit", err)
	}
	return &Confirmation{Booking: b, Slot: *slot}, nil
}

func slotViewTx(ctx context.Context, tx pgx.Tx, slotID int64) (*availability.SlotView, error) {
	var (
		v          availability.SlotView
		start, end string
	)
	err := tx.QueryRow(ctx, `
		SELECT s.id, d.id, d.name, sp.name, w.available_on,
		       to_char(s.start_time, 'HH24:MI'), to_char(s.end_time, 'HH24:MI'), s.booked
		FROM slots s
		JOIN availability_windows w ON w.id = s.window_id
		JOIN doctors d ON d.id = w.doctor_id
		JOIN specialties sp ON sp.id = d.specialty_id
		WHERE s.id = $1
	`, slotID).Scan(&v.SlotID, &v.DoctorID, &v.DoctorName, &v.Specialty, &v.Date, &start, &end, &v.Booked)
	if err != nil {
		return nil, wrapStoreErr("load slot view", err)
	}
	if v.Start, err = availability.ParseTimeOfDay(start); err != nil {
		return nil, err
	}
	if v.End, err = availability.ParseTimeOfDay(end); err != nil {
		return nil, err
	}
	v.Date = availability.DateOnly(v.Date)
	return &v, nil
}

func wrapStoreErr(op string, err error) error {
	if isTransient(err) {
		return fmt.Errorf("booking: %s: %v: %w", op, err, ErrUnavailable)
	}
	return fmt.Errorf("booking: %s: %w", op, err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	return pgconn.SafeToRetry(err) || pgconn.Timeout(err)
}
