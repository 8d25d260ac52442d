package bookings

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/needtofly/dodoktora/internal/clinictime"
	"github.com/needtofly/dodoktora/pkg/logging"
)

var tracer = otel.Tracer("dodoktora.bookings")

var (
	emailRe      = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	postalCodeRe = regexp.MustCompile(`^\d{2}-\d{3}$`)
	peselRe      = regexp.MustCompile(`^\d{11}$`)
)

// CheckoutStarter opens a payment session for a freshly reserved booking and
// returns the URL the patient is redirected to. Implemented by the payments
// package; declared here so the dependency points one way.
type CheckoutStarter interface {
	Start(ctx context.Context, b *Booking) (redirectURL string, err error)
}

// Locker serializes reservation attempts on a slot key across instances.
// A nil Locker is allowed; the store-level uniqueness still holds.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// ReserveRequest carries the patient-submitted reservation form.
type ReserveRequest struct {
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	VisitType    string `json:"visitType"`
	Doctor       string `json:"doctor"`
	Date         string `json:"date"`
	Notes        string `json:"notes"`
	Address      string `json:"address"`
	PostalCode   string `json:"postalCode"`
	City         string `json:"city"`
	PersonalID   string `json:"pesel"`
	NoPersonalID bool   `json:"noPesel"`
}

// Service implements the reservation and availability operations.
type Service struct {
	repo       Repository
	checkout   CheckoutStarter
	locker     Locker
	zone       *clinictime.Zone
	holdWindow time.Duration
	log        *logging.Logger
	now        func() time.Time
	newID      func() string
}

// NewService wires the reservation service. checkout and locker may be nil
// (no payment redirect, no distributed lock).
func NewService(repo Repository, checkout CheckoutStarter, locker Locker, zone *clinictime.Zone, holdWindow time.Duration, log *logging.Logger) *Service {
	return &Service{
		repo:       repo,
		checkout:   checkout,
		locker:     locker,
		zone:       zone,
		holdWindow: holdWindow,
		log:        log,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithIDGenerator overrides booking id generation for tests.
func (s *Service) WithIDGenerator(newID func() string) *Service {
	s.newID = newID
	return s
}

// HoldWindow exposes the configured hold window for sweepers and handlers.
func (s *Service) HoldWindow() time.Duration {
	return s.holdWindow
}

// Repo exposes the underlying repository for admin and reconciliation wiring.
func (s *Service) Repo() Repository {
	return s.repo
}

// Reserve validates the request, reserves the slot and opens a payment
// session. On payment failure the booking is kept PENDING/UNPAID and the
// error is returned so the patient can retry.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (*Booking, string, error) {
	ctx, span := tracer.Start(ctx, "bookings.Reserve")
	defer span.End()

	b, err := s.buildBooking(req)
	if err != nil {
		return nil, "", err
	}
	span.SetAttributes(
		attribute.String("booking.id", b.ID),
		attribute.String("booking.visit_type", string(b.VisitType)),
	)

	reserve := func(ctx context.Context) error {
		return s.repo.Reserve(ctx, b, s.holdWindow)
	}
	if s.locker != nil && b.VisitType.SlotExclusive() {
		err = s.locker.WithLock(ctx, slotLockKey(b.Date), reserve)
	} else {
		err = reserve(ctx)
	}
	if err != nil {
		return nil, "", err
	}

	s.log.Info("booking reserved",
		"booking_id", b.ID,
		"visit_type", b.VisitType,
		"date", b.Date.Format(time.RFC3339),
		"amount", b.PriceCents,
	)

	if s.checkout == nil {
		return b, "", nil
	}
	redirectURL, err := s.checkout.Start(ctx, b)
	if err != nil {
		s.log.Error("payment checkout failed", "booking_id", b.ID, "error", err)
		return b, "", err
	}
	return b, redirectURL, nil
}

func slotLockKey(date time.Time) string {
	return "slot:" + date.UTC().Format(time.RFC3339)
}

func (s *Service) buildBooking(req ReserveRequest) (*Booking, error) {
	fullName := strings.TrimSpace(req.FullName)
	email := strings.TrimSpace(req.Email)
	phone := strings.TrimSpace(req.Phone)

	if fullName == "" {
		return nil, invalid("fullName", "required")
	}
	if !emailRe.MatchString(email) {
		return nil, invalid("email", "malformed address")
	}
	if phone == "" {
		return nil, invalid("phone", "required")
	}

	visitType := VisitType(req.VisitType)
	if !visitType.Valid() {
		return nil, invalid("visitType", "unknown visit type")
	}

	date, err := time.Parse(time.RFC3339, req.Date)
	if err != nil {
		return nil, invalid("date", "must be RFC 3339")
	}
	if !date.After(s.now()) {
		return nil, invalid("date", "must be in the future")
	}

	b := &Booking{
		ID:            s.newID(),
		FullName:      fullName,
		Email:         email,
		Phone:         phone,
		VisitType:     visitType,
		Doctor:        strings.TrimSpace(req.Doctor),
		Date:          date,
		Notes:         strings.TrimSpace(req.Notes),
		PriceCents:    visitType.PriceCents(),
		Currency:      Currency,
		Status:        StatusPending,
		PaymentStatus: PaymentUnpaid,
		CreatedAt:     s.now(),
	}

	if visitType == VisitHome {
		b.Address = strings.TrimSpace(req.Address)
		b.PostalCode = strings.TrimSpace(req.PostalCode)
		b.City = strings.TrimSpace(req.City)
		if b.Address == "" {
			return nil, invalid("address", "required for home visits")
		}
		if !postalCodeRe.MatchString(b.PostalCode) {
			return nil, invalid("postalCode", "must match NN-NNN")
		}
		if b.City == "" {
			return nil, invalid("city", "required for home visits")
		}
	}

	pesel := strings.TrimSpace(req.PersonalID)
	if req.NoPersonalID {
		b.NoPersonalID = true
	} else {
		if !peselRe.MatchString(pesel) {
			return nil, invalid("pesel", "must be 11 digits")
		}
		b.PersonalID = pesel
	}

	return b, nil
}

// TakenSlots returns the local "HH:MM" labels occupied on the given local
// day. A slot counts as taken while a remote consultation is active or still
// inside its payment hold window.
func (s *Service) TakenSlots(ctx context.Context, date string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "bookings.TakenSlots")
	defer span.End()
	span.SetAttributes(attribute.String("booking.date", date))

	from, to, err := s.zone.DayWindow(date)
	if err != nil {
		return nil, invalid("date", "must be YYYY-MM-DD")
	}

	list, err := s.repo.ListByDateRange(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("bookings: list day: %w", err)
	}

	cutoff := s.now().Add(-s.holdWindow)
	seen := make(map[string]struct{})
	var taken []string
	for _, b := range list {
		if !b.VisitType.SlotExclusive() || b.Status == StatusCancelled {
			continue
		}
		if b.Status == StatusPending && b.PaymentStatus == PaymentUnpaid && b.CreatedAt.Before(cutoff) {
			// Hold expired; the slot is bookable again even before a sweep
			// has flipped the row to CANCELLED.
			continue
		}
		label := s.zone.ClockTime(b.Date)
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		taken = append(taken, label)
	}
	sort.Strings(taken)
	return taken, nil
}
