package payments

import (
	"context"
	"errors"

	"github.com/needtofly/dodoktora/internal/bookings"
	"github.com/needtofly/dodoktora/internal/observability/metrics"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// Outcome classifies what a notification did to the booking.
type Outcome string

const (
	OutcomePaid           Outcome = "paid"
	OutcomeRejected       Outcome = "rejected"
	OutcomeDuplicate      Outcome = "duplicate"
	OutcomeLateSuccess    Outcome = "late_success"
	OutcomeUnknownBooking Outcome = "unknown_booking"
	OutcomeMismatch       Outcome = "mismatch"
	OutcomeUnverified     Outcome = "unverified"
	OutcomeError          Outcome = "error"
)

// Notification is a provider webhook normalized to common fields. Amount is
// minor units; SessionID is the booking id we handed the provider.
type Notification struct {
	SessionID string
	OrderID   string
	Amount    int64
	Currency  string
}

// Notifier delivers the booking confirmation after a successful payment.
// Delivery failures never fail reconciliation.
type Notifier interface {
	BookingPaid(ctx context.Context, b *bookings.Booking) error
}

// Reconciler applies provider notifications to bookings. It is idempotent:
// a replayed notification for an already paid booking is a no-op, and the
// paid state is never downgraded.
type Reconciler struct {
	repo     bookings.Repository
	gateway  Gateway
	notifier Notifier
	log      *logging.Logger
}

// NewReconciler wires reconciliation for one provider. gateway may be nil to
// skip the provider-side verification call (mock flows); notifier may be nil.
func NewReconciler(repo bookings.Repository, gateway Gateway, notifier Notifier, log *logging.Logger) *Reconciler {
	return &Reconciler{repo: repo, gateway: gateway, notifier: notifier, log: log}
}

func (r *Reconciler) provider() string {
	if r.gateway == nil {
		return "mock"
	}
	return r.gateway.Name()
}

// ApplyPaid handles a payment-success notification: check the booking,
// verify with the provider, then flip UNPAID to PAID exactly once.
func (r *Reconciler) ApplyPaid(ctx context.Context, n Notification) Outcome {
	outcome := r.applyPaid(ctx, n)
	metrics.WebhooksTotal.WithLabelValues(r.provider(), string(outcome)).Inc()
	return outcome
}

func (r *Reconciler) applyPaid(ctx context.Context, n Notification) Outcome {
	b, err := r.repo.GetByID(ctx, n.SessionID)
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) {
			r.log.Warn("payment notification for unknown booking",
				"provider", r.provider(), "session_id", n.SessionID)
			return OutcomeUnknownBooking
		}
		r.log.Error("payment reconcile lookup failed",
			"provider", r.provider(), "session_id", n.SessionID, "error", err)
		return OutcomeError
	}

	if b.PaymentStatus == bookings.PaymentPaid {
		return OutcomeDuplicate
	}
	if b.PaymentStatus != bookings.PaymentUnpaid {
		// The provider took the money after we already rejected or refunded
		// the booking. Staff must reconcile this one by hand.
		r.log.Warn("payment success for a booking no longer unpaid",
			"provider", r.provider(),
			"booking_id", b.ID,
			"payment_status", string(b.PaymentStatus),
			"order_id", n.OrderID,
		)
		return OutcomeLateSuccess
	}

	if n.Amount != b.PriceCents || n.Currency != b.Currency {
		r.log.Warn("payment notification amount mismatch",
			"provider", r.provider(),
			"booking_id", b.ID,
			"want_amount", b.PriceCents,
			"got_amount", n.Amount,
			"want_currency", b.Currency,
			"got_currency", n.Currency,
		)
		return OutcomeMismatch
	}

	if r.gateway != nil {
		err := r.gateway.Verify(ctx, VerifyParams{
			SessionID: n.SessionID,
			OrderID:   n.OrderID,
			Amount:    n.Amount,
			Currency:  n.Currency,
		})
		if err != nil {
			if errors.Is(err, ErrVerifyFailed) {
				r.log.Warn("payment verification declined",
					"provider", r.provider(), "booking_id", b.ID, "error", err)
				return OutcomeUnverified
			}
			r.log.Error("payment verification failed",
				"provider", r.provider(), "booking_id", b.ID, "error", err)
			return OutcomeError
		}
	}

	updated, err := r.repo.MarkPaid(ctx, b.ID, n.OrderID)
	if err != nil {
		r.log.Error("mark paid failed",
			"provider", r.provider(), "booking_id", b.ID, "error", err)
		return OutcomeError
	}

	r.log.Info("booking paid",
		"provider", r.provider(),
		"booking_id", updated.ID,
		"order_id", updated.PaymentRef,
		"amount", updated.PriceCents,
	)

	if r.notifier != nil {
		if err := r.notifier.BookingPaid(ctx, updated); err != nil {
			r.log.Error("confirmation email failed", "booking_id", updated.ID, "error", err)
		}
	}
	return OutcomePaid
}

// ApplyRejected handles a rejection or cancellation notification. A booking
// that already settled stays paid.
func (r *Reconciler) ApplyRejected(ctx context.Context, n Notification) Outcome {
	outcome := r.applyRejected(ctx, n)
	metrics.WebhooksTotal.WithLabelValues(r.provider(), string(outcome)).Inc()
	return outcome
}

func (r *Reconciler) applyRejected(ctx context.Context, n Notification) Outcome {
	b, err := r.repo.GetByID(ctx, n.SessionID)
	if err != nil {
		if errors.Is(err, bookings.ErrNotFound) {
			return OutcomeUnknownBooking
		}
		r.log.Error("payment reconcile lookup failed",
			"provider", r.provider(), "session_id", n.SessionID, "error", err)
		return OutcomeError
	}
	if b.PaymentStatus == bookings.PaymentPaid {
		return OutcomeDuplicate
	}

	updated, err := r.repo.MarkRejected(ctx, b.ID)
	if err != nil {
		r.log.Error("mark rejected failed",
			"provider", r.provider(), "booking_id", b.ID, "error", err)
		return OutcomeError
	}

	r.log.Info("booking payment rejected",
		"provider", r.provider(), "booking_id", updated.ID)
	return OutcomeRejected
}
