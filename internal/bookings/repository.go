package bookings

import (
	"context"
	"time"
)

// Repository persists bookings. It is the single source of truth for slot
// occupancy; all mutations are single-row updates keyed by booking id.
type Repository interface {
	// Reserve inserts a new booking. For slot-exclusive visit types it first
	// releases abandoned holds (PENDING/UNPAID older than holdWindow) at the
	// same instant, then relies on store-level uniqueness to reject a
	// concurrent insert with ErrSlotTaken.
	Reserve(ctx context.Context, b *Booking, holdWindow time.Duration) error

	GetByID(ctx context.Context, id string) (*Booking, error)

	// ListByDateRange returns bookings whose Date falls in [from, to),
	// ordered by Date ascending.
	ListByDateRange(ctx context.Context, from, to time.Time) ([]Booking, error)

	// List returns all bookings, newest first. Used by admin tooling.
	List(ctx context.Context) ([]Booking, error)

	// MarkPaid applies the verified-payment transition: paymentStatus=PAID,
	// paymentRef set once, and PENDING advanced to CONFIRMED. Replaying the
	// identical notification is a no-op.
	MarkPaid(ctx context.Context, id, paymentRef string) (*Booking, error)

	// MarkRejected applies a provider-reported rejection: paymentStatus=REJECTED,
	// status=CANCELLED, freeing the slot. Paid bookings are never downgraded.
	MarkRejected(ctx context.Context, id string) (*Booking, error)

	// UpdateStatus sets the booking lifecycle state (admin operation). The
	// COMPLETED transition records CompletedAt. Price fields are untouched.
	UpdateStatus(ctx context.Context, id string, status Status) (*Booking, error)

	Delete(ctx context.Context, id string) error

	// CancelAbandoned cancels PENDING/UNPAID bookings created before cutoff,
	// returning how many were swept.
	CancelAbandoned(ctx context.Context, cutoff time.Time) (int64, error)
}
