package bookings

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository keeps bookings in process memory. It mirrors the
// Postgres conflict semantics and backs development mode and tests.
type InMemoryRepository struct {
	mu       sync.Mutex
	bookings map[string]*Booking
	now      func() time.Time
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		bookings: make(map[string]*Booking),
		now:      time.Now,
	}
}

// WithNow overrides the clock; tests use it to age holds deterministically.
func (r *InMemoryRepository) WithNow(now func() time.Time) *InMemoryRepository {
	r.now = now
	return r
}

func (r *InMemoryRepository) Reserve(ctx context.Context, b *Booking, holdWindow time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if b.VisitType.SlotExclusive() {
		cutoff := r.now().Add(-holdWindow)
		for _, existing := range r.bookings {
			if !existing.VisitType.SlotExclusive() || !existing.Date.Equal(b.Date) {
				continue
			}
			if existing.Status == StatusCancelled {
				continue
			}
			if existing.Status == StatusPending && existing.PaymentStatus == PaymentUnpaid && existing.CreatedAt.Before(cutoff) {
				// Abandoned hold: release it so the slot can be rebooked.
				existing.Status = StatusCancelled
				continue
			}
			return ErrSlotTaken
		}
	}

	clone := *b
	r.bookings[b.ID] = &clone
	return nil
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *b
	return &clone, nil
}

func (r *InMemoryRepository) ListByDateRange(ctx context.Context, from, to time.Time) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Booking
	for _, b := range r.bookings {
		if b.Date.Before(from) || !b.Date.Before(to) {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Booking, 0, len(r.bookings))
	for _, b := range r.bookings {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *InMemoryRepository) MarkPaid(ctx context.Context, id, paymentRef string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.PaymentStatus == PaymentUnpaid {
		b.PaymentStatus = PaymentPaid
		if b.PaymentRef == "" {
			b.PaymentRef = paymentRef
		}
		if b.Status == StatusPending {
			b.Status = StatusConfirmed
		}
	}
	clone := *b
	return &clone, nil
}

func (r *InMemoryRepository) MarkRejected(ctx context.Context, id string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	if b.PaymentStatus != PaymentPaid {
		b.PaymentStatus = PaymentRejected
		b.Status = StatusCancelled
	}
	clone := *b
	return &clone, nil
}

func (r *InMemoryRepository) UpdateStatus(ctx context.Context, id string, status Status) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	b.Status = status
	if status == StatusCompleted && b.CompletedAt == nil {
		now := r.now()
		b.CompletedAt = &now
	}
	clone := *b
	return &clone, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bookings[id]; !ok {
		return ErrNotFound
	}
	delete(r.bookings, id)
	return nil
}

func (r *InMemoryRepository) CancelAbandoned(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var swept int64
	for _, b := range r.bookings {
		if b.Status == StatusPending && b.PaymentStatus == PaymentUnpaid && b.CreatedAt.Before(cutoff) {
			b.Status = StatusCancelled
			swept++
		}
	}
	return swept, nil
}

var _ Repository = (*InMemoryRepository)(nil)
