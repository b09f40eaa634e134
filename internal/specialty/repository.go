package specialty

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type db interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository reads the specialty catalog and doctor roster from Postgres.
type Repository struct {
	db db
}

// NewRepository initializes a repo backed by pgxpool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("specialty: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(conn db) *Repository {
	return &Repository{db: conn}
}

// List returns every specialty ordered by canonical name.
func (r *Repository) List(ctx context.Context) ([]Specialty, error) {
	query := `
		SELECT id, name, COALESCE(description, '')
		FROM specialties
		ORDER BY name
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("specialty: list failed: %w", err)
	}
	defer rows.Close()

	var out []Specialty
	for rows.Next() {
		var s Specialty
		if err := rows.Scan(&s.ID, &s.Name, &s.Description); err != nil {
			return nil, fmt.Errorf("specialty: scan failed: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("specialty: list failed: %w", err)
	}
	return out, nil
}

// ListDoctors returns the full doctor roster with specialty names.
func (r *Repository) ListDoctors(ctx context.Context) ([]Doctor, error) {
	query := `
		SELECT d.id, d.name, d.email, COALESCE(d.address, ''), s.id, s.name
		FROM doctors d
		JOIN specialties s ON s.id = d.specialty_id
		ORDER BY d.name, d.id
	`
	return r.queryDoctors(ctx, query)
}

// ListDoctorsBySpecialty returns doctors belonging to the given specialty.
func (r *Repository) ListDoctorsBySpecialty(ctx context.Context, specialtyID int64) ([]Doctor, error) {
	query := `
		SELECT d.id, d.name, d.email, COALESCE(d.address, ''), s.id, s.name
		FROM doctors d
		JOIN specialties s ON s.id = d.specialty_id
		WHERE s.id = $1
		ORDER BY d.name, d.id
	`
	return r.queryDoctors(ctx, query, specialtyID)
}

func (r *Repository) queryDoctors(ctx context.Context, query string, args ...any) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("specialty: list doctors failed: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.Address, &d.SpecialtyID, &d.SpecialtyName); err != nil {
			return nil, fmt.Errorf("specialty: scan doctor failed: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("specialty: list doctors failed: %w", err)
	}
	return out, nil
}
