package booking

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PostgresRepo persists bookings with explicit field lists; client-supplied
// SQL fragments are never interpolated.
//
// Assumed tables: bookings, technicians.
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Insert(ctx context.Context, b Booking) error {
	const q = `
INSERT INTO bookings (
  id, tenant_id, customer_name, customer_phone, customer_email,
  service_type, preferred_date, preferred_time, status, notes, call_id,
  created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := r.db.ExecContext(ctx, q,
		b.ID,
		b.TenantID,
		b.CustomerName,
		b.CustomerPhone,
		b.CustomerEmail,
		b.ServiceType,
		b.PreferredDate,
		b.PreferredTime,
		b.Status,
		b.Notes,
		b.CallID,
		b.CreatedAt,
		b.UpdatedAt,
	)
	return err
}

const bookingColumns = `
id, tenant_id, customer_name, customer_phone, customer_email,
service_type, preferred_date, preferred_time, status, notes, call_id,
created_at, updated_at`

func scanBooking(scan func(dest ...any) error) (Booking, error) {
	var b Booking
	err := scan(
		&b.ID,
		&b.TenantID,
		&b.CustomerName,
		&b.CustomerPhone,
		&b.CustomerEmail,
		&b.ServiceType,
		&b.PreferredDate,
		&b.PreferredTime,
		&b.Status,
		&b.Notes,
		&b.CallID,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	return b, err
}

func (r *PostgresRepo) Get(ctx context.Context, tenantID, id string) (Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 AND id = $2`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, tenantID, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	return b, err
}

func (r *PostgresRepo) List(ctx context.Context, tenantID string, limit int) ([]Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE tenant_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.db.QueryContext(ctx, q, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateStatus(ctx context.Context, tenantID, id string, status Status, notes string, now time.Time) (Booking, error) {
	q := `
UPDATE bookings
SET status = $3, notes = CASE WHEN $4 <> '' THEN $4 ELSE notes END, updated_at = $5
WHERE tenant_id = $1 AND id = $2
RETURNING ` + bookingColumns
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, tenantID, id, status, notes, now).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return Booking{}, ErrNotFound
	}
	return b, err
}

func (r *PostgresRepo) ListTechnicians(ctx context.Context, tenantID string) ([]Technician, error) {
	const q = `
SELECT id, tenant_id, name, phone, skills, active
FROM technicians
WHERE tenant_id = $1 AND active = TRUE
ORDER BY name
`
	rows, err := r.db.QueryContext(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Technician
	for rows.Next() {
		var t Technician
		if err := rows.Scan(&t.ID, &t.TenantID, &t.Name, &t.Phone, &t.Skills, &t.Active); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
