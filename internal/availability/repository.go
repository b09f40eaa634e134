package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/superclinic/clinic-assistant/internal/specialty"
)

var (
	// ErrDoctorNotFound is returned when no doctor has the given id or name
	ErrDoctorNotFound = errors.New("availability: doctor not found")

	// ErrSlotNotFound is returned when no open slot matches the exact request
	ErrSlotNotFound = errors.New("availability: slot not found or already booked")
)

type db interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Filter narrows the open-slot query. Zero-valued selectors are ignored.
type Filter struct {
	SpecialtyID   int64
	DoctorID      int64
	From          time.Time
	To            time.Time
	IncludeBooked bool
}

// Repository reads slot availability from Postgres.
type Repository struct {
	db db
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("availability: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(conn db) *Repository {
	return &Repository{db: conn}
}

// FindOpenSlots returns slots in the date range, ascending by date, start
// time, doctor id, slot id. Booked slots are excluded unless IncludeBooked.
func (r *Repository) FindOpenSlots(ctx context.Context, f Filter) ([]SlotView, error) {
	query := `
		SELECT s.id, d.id, d.name, sp.name, w.available_on,
		       to_char(s.start_time, 'HH24:MI'), to_char(s.end_time, 'HH24:MI'), s.booked
		FROM slots s
		JOIN availability_windows w ON w.id = s.window_id
		JOIN doctors d ON d.id = w.doctor_id
		JOIN specialties sp ON sp.id = d.specialty_id
		WHERE w.available_on BETWEEN $1 AND $2
		  AND (NOT s.booked OR $3)
		  AND ($4::bigint = 0 OR d.id = $4)
		  AND ($5::bigint = 0 OR sp.id = $5)
		ORDER BY w.available_on, s.start_time, d.id, s.id
	`
	rows, err := r.db.Query(ctx, query, f.From, f.To, f.IncludeBooked, f.DoctorID, f.SpecialtyID)
	if err != nil {
		return nil, fmt.Errorf("availability: query slots: %w", err)
	}
	defer rows.Close()

	var out []SlotView
	for rows.Next() {
		var (
			v          SlotView
			start, end string
		)
		if err := rows.Scan(&v.SlotID, &v.DoctorID, &v.DoctorName, &v.Specialty, &v.Date, &start, &end, &v.Booked); err != nil {
			return nil, fmt.Errorf("availability: scan slot: %w", err)
		}
		if v.Start, err = ParseTimeOfDay(start); err != nil {
			return nil, err
		}
		if v.End, err = ParseTimeOfDay(end); err != nil {
			return nil, err
		}
		v.Date = DateOnly(v.Date)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("availability: query slots: %w", err)
	}
	return out, nil
}

// FindSlotID locates the open slot for an exact doctor/date/time-range
// request, as used by bookings placed without a slot id.
func (r *Repository) FindSlotID(ctx context.Context, doctorID int64, date time.Time, start, end TimeOfDay) (int64, error) {
	query := `
		SELECT s.id
		FROM slots s
		JOIN availability_windows w ON w.id = s.window_id
		WHERE w.doctor_id = $1
		  AND w.available_on = $2
		  AND s.start_time = $3::time
		  AND s.end_time = $4::time
		  AND NOT s.booked
	`
	var id int64
	err := r.db.QueryRow(ctx, query, doctorID, DateOnly(date), start.String(), end.String()).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrSlotNotFound
		}
		return 0, fmt.Errorf("availability: find slot: %w", err)
	}
	return id, nil
}

// GetDoctorByName resolves a doctor by exact stored name.
func (r *Repository) GetDoctorByName(ctx context.Context, name string) (*specialty.Doctor, error) {
	query := `
		SELECT d.id, d.name, d.email, COALESCE(d.address, ''), s.id, s.name
		FROM doctors d
		JOIN specialties s ON s.id = d.specialty_id
		WHERE d.name = $1
	`
	var d specialty.Doctor
	err := r.db.QueryRow(ctx, query, name).Scan(&d.ID, &d.Name, &d.Email, &d.Address, &d.SpecialtyID, &d.SpecialtyName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, fmt.Errorf("availability: get doctor: %w", err)
	}
	return &d, nil
}
