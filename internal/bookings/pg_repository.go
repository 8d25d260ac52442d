package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of pgxpool.Pool the repository needs; pgxmock satisfies
// it in tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgRepository persists bookings in Postgres. Slot exclusivity is enforced
// by a partial unique index on (date) for non-cancelled REMOTE_CONSULT rows,
// so a concurrent insert loses at the store rather than at the pre-check.
type PgRepository struct {
	db DB
}

// NewPgRepository creates a repository backed by a pgx pool.
func NewPgRepository(db DB) *PgRepository {
	if db == nil {
		panic("bookings: pgx pool required")
	}
	return &PgRepository{db: db}
}

const bookingColumns = `
	id, full_name, email, phone, visit_type, doctor, date, notes,
	address, postal_code, city, personal_id, no_personal_id,
	price_cents, currency, status, payment_status, payment_ref,
	created_at, completed_at`

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	var completedAt *time.Time

	err := row.Scan(
		&b.ID, &b.FullName, &b.Email, &b.Phone, &b.VisitType, &b.Doctor, &b.Date, &b.Notes,
		&b.Address, &b.PostalCode, &b.City, &b.PersonalID, &b.NoPersonalID,
		&b.PriceCents, &b.Currency, &b.Status, &b.PaymentStatus, &b.PaymentRef,
		&b.CreatedAt, &completedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	b.CompletedAt = completedAt
	return &b, nil
}

func (r *PgRepository) Reserve(ctx context.Context, b *Booking, holdWindow time.Duration) error {
	if b.VisitType.SlotExclusive() {
		// Release abandoned holds at this instant first so the unique index
		// reflects the hold-window rule.
		_, err := r.db.Exec(ctx, `
			UPDATE bookings
			SET status = 'CANCELLED'
			WHERE visit_type = $1
			  AND date = $2
			  AND status = 'PENDING'
			  AND payment_status = 'UNPAID'
			  AND created_at < $3
		`, b.VisitType, b.Date, time.Now().Add(-holdWindow))
		if err != nil {
			return fmt.Errorf("bookings: release abandoned holds: %w", err)
		}
	}

	_, err := r.db.Exec(ctx, `
		INSERT INTO bookings (
			id, full_name, email, phone, visit_type, doctor, date, notes,
			address, postal_code, city, personal_id, no_personal_id,
			price_cents, currency, status, payment_status, payment_ref, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
	`,
		b.ID, b.FullName, b.Email, b.Phone, b.VisitType, b.Doctor, b.Date, b.Notes,
		b.Address, b.PostalCode, b.City, b.PersonalID, b.NoPersonalID,
		b.PriceCents, b.Currency, b.Status, b.PaymentStatus, b.PaymentRef, b.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSlotTaken
		}
		return fmt.Errorf("bookings: insert: %w", err)
	}
	return nil
}

func (r *PgRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT`+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

func (r *PgRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `
		SELECT`+bookingColumns+`
		FROM bookings
		WHERE date >= $1 AND date < $2
		ORDER BY date ASC
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("bookings: list by date range: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (r *PgRepository) List(ctx context.Context) ([]Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT`+bookingColumns+` FROM bookings ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]Booking, error) {
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkPaid flips an unpaid booking to PAID and sets payment_ref exactly once.
// A replayed notification leaves the row unchanged, and a booking already
// rejected or refunded is returned as is so the money never overwrites a
// settled payment state.
func (r *PgRepository) MarkPaid(ctx context.Context, id, paymentRef string) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET payment_ref = CASE WHEN payment_status = 'UNPAID' AND payment_ref = '' THEN $2 ELSE payment_ref END,
		    status = CASE WHEN payment_status = 'UNPAID' AND status = 'PENDING' THEN 'CONFIRMED' ELSE status END,
		    payment_status = CASE WHEN payment_status = 'UNPAID' THEN 'PAID' ELSE payment_status END
		WHERE id = $1
		RETURNING`+bookingColumns, id, paymentRef)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("bookings: mark paid: %w", err)
	}
	return b, nil
}

func (r *PgRepository) MarkRejected(ctx context.Context, id string) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET payment_status = 'REJECTED',
		    status = 'CANCELLED'
		WHERE id = $1
		  AND payment_status <> 'PAID'
		RETURNING`+bookingColumns, id)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			// Either the booking does not exist or it is already paid; the
			// caller distinguishes via GetByID when it matters.
			return nil, err
		}
		return nil, fmt.Errorf("bookings: mark rejected: %w", err)
	}
	return b, nil
}

func (r *PgRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Booking, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
		    completed_at = CASE WHEN $2 = 'COMPLETED' AND completed_at IS NULL THEN now() ELSE completed_at END
		WHERE id = $1
		RETURNING`+bookingColumns, id, status)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("bookings: update status: %w", err)
	}
	return b, nil
}

func (r *PgRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bookings: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PgRepository) CancelAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE bookings
		SET status = 'CANCELLED'
		WHERE status = 'PENDING'
		  AND payment_status = 'UNPAID'
		  AND created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("bookings: cancel abandoned: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PgRepository)(nil)
