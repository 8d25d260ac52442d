package payments

import (
	"context"
	"errors"
	"fmt"

	"github.com/needtofly/dodoktora/internal/bookings"
	"github.com/needtofly/dodoktora/internal/observability/metrics"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// Checkout opens payment sessions for freshly reserved bookings. It adapts
// the active gateway to the reservation flow and optionally falls back to
// the local mock gateway when sandbox credentials are rejected, so the
// booking flow stays testable without live merchant accounts.
type Checkout struct {
	gateway  Gateway
	fallback *Mock
	log      *logging.Logger
}

// NewCheckout wires the checkout flow. fallback may be nil; when set, an
// ErrAuth from the gateway reroutes the session to the mock payment page.
func NewCheckout(gateway Gateway, fallback *Mock, log *logging.Logger) *Checkout {
	return &Checkout{gateway: gateway, fallback: fallback, log: log}
}

// Start opens a payment session for the booking and returns the redirect
// URL. Gateway failures are translated to the booking-level sentinels.
func (c *Checkout) Start(ctx context.Context, b *bookings.Booking) (string, error) {
	params := RegisterParams{
		SessionID:   b.ID,
		Amount:      b.PriceCents,
		Currency:    b.Currency,
		Description: describeVisit(b),
		Email:       b.Email,
	}

	res, err := c.gateway.Register(ctx, params)
	if err != nil {
		if errors.Is(err, ErrAuth) && c.fallback != nil {
			c.log.Warn("gateway rejected credentials, using mock payment page",
				"provider", c.gateway.Name(), "booking_id", b.ID)
			metrics.PaymentRegistrationsTotal.WithLabelValues(c.gateway.Name(), "mock_fallback").Inc()
			res, err = c.fallback.Register(ctx, params)
			if err != nil {
				return "", bookings.ErrGatewayUnavailable
			}
			return res.RedirectURL, nil
		}

		switch {
		case errors.Is(err, ErrAuth):
			metrics.PaymentRegistrationsTotal.WithLabelValues(c.gateway.Name(), "auth_error").Inc()
			c.log.Error("gateway rejected credentials", "provider", c.gateway.Name(), "error", err)
			return "", bookings.ErrGatewayAuth
		default:
			metrics.PaymentRegistrationsTotal.WithLabelValues(c.gateway.Name(), "unavailable").Inc()
			c.log.Error("gateway registration failed", "provider", c.gateway.Name(), "error", err)
			return "", bookings.ErrGatewayUnavailable
		}
	}

	metrics.PaymentRegistrationsTotal.WithLabelValues(c.gateway.Name(), "ok").Inc()
	return res.RedirectURL, nil
}

func describeVisit(b *bookings.Booking) string {
	switch b.VisitType {
	case bookings.VisitHome:
		return fmt.Sprintf("Wizyta domowa %s", b.ID)
	default:
		return fmt.Sprintf("Konsultacja zdalna %s", b.ID)
	}
}

var _ bookings.CheckoutStarter = (*Checkout)(nil)
