package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/needtofly/dodoktora/internal/bookings"
	"github.com/needtofly/dodoktora/internal/clinictime"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// Confirmation emails patients after their payment settles. It implements
// the reconciliation notifier hook; failures are logged by the caller and
// never block the payment flow.
type Confirmation struct {
	sender     EmailSender
	zone       *clinictime.Zone
	clinicName string
	log        *logging.Logger
}

// NewConfirmation wires the confirmation mailer.
func NewConfirmation(sender EmailSender, zone *clinictime.Zone, clinicName string, log *logging.Logger) *Confirmation {
	return &Confirmation{sender: sender, zone: zone, clinicName: clinicName, log: log}
}

// BookingPaid sends the visit confirmation for a settled booking.
func (c *Confirmation) BookingPaid(ctx context.Context, b *bookings.Booking) error {
	msg := EmailMessage{
		To:      b.Email,
		ToName:  b.FullName,
		Subject: fmt.Sprintf("Potwierdzenie wizyty %s o %s", c.zone.LocalDate(b.Date), c.zone.ClockTime(b.Date)),
		Body:    c.body(b),
	}
	return c.sender.Send(ctx, msg)
}

func (c *Confirmation) body(b *bookings.Booking) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Dzień dobry %s,\n\n", b.FullName)
	fmt.Fprintf(&sb, "Twoja płatność została zaksięgowana, a wizyta potwierdzona.\n\n")
	fmt.Fprintf(&sb, "Termin: %s, godz. %s\n", c.zone.LocalDate(b.Date), c.zone.ClockTime(b.Date))

	switch b.VisitType {
	case bookings.VisitHome:
		fmt.Fprintf(&sb, "Rodzaj wizyty: wizyta domowa\n")
		fmt.Fprintf(&sb, "Adres: %s, %s %s\n", b.Address, b.PostalCode, b.City)
	default:
		fmt.Fprintf(&sb, "Rodzaj wizyty: konsultacja zdalna\n")
	}
	if b.Doctor != "" {
		fmt.Fprintf(&sb, "Lekarz: %s\n", b.Doctor)
	}
	fmt.Fprintf(&sb, "Kwota: %d.%02d %s\n\n", b.PriceCents/100, b.PriceCents%100, b.Currency)
	fmt.Fprintf(&sb, "Pozdrawiamy,\n%s\n", c.clinicName)
	return sb.String()
}
