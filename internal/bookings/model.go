package bookings

import "time"

// VisitType identifies the kind of appointment a patient books.
type VisitType string

const (
	// VisitRemoteConsult is a remote consultation; it shares one practitioner
	// calendar, so only a single active booking may occupy an instant.
	VisitRemoteConsult VisitType = "REMOTE_CONSULT"
	// VisitHome is a home visit; several may share the same start time.
	VisitHome VisitType = "HOME_VISIT"
)

// Currency is the only settlement currency the clinic charges in.
const Currency = "PLN"

// Valid reports whether v is a recognized visit type.
func (v VisitType) Valid() bool {
	return v == VisitRemoteConsult || v == VisitHome
}

// SlotExclusive reports whether only one active booking may occupy an instant.
func (v VisitType) SlotExclusive() bool {
	return v == VisitRemoteConsult
}

// PriceCents returns the fixed price for the visit type, in grosze.
// Prices are captured on the booking at creation and never recomputed.
func (v VisitType) PriceCents() int64 {
	if v == VisitHome {
		return 35000
	}
	return 4900
}

// Status is the booking lifecycle state.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is a recognized lifecycle state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// PaymentStatus is the payment lifecycle state, tracked separately from the
// booking lifecycle because provider notifications arrive asynchronously.
type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
	PaymentRejected PaymentStatus = "REJECTED"
)

// Booking is the central entity: one reserved appointment with its payment state.
type Booking struct {
	ID       string
	FullName string
	Email    string
	Phone    string

	VisitType VisitType
	Doctor    string
	// Date is the absolute appointment start. Local date/time strings are
	// converted via clinictime before storage; conflict comparisons always
	// use this instant.
	Date  time.Time
	Notes string

	// Address fields are required for home visits only.
	Address    string
	PostalCode string
	City       string

	// PersonalID is an 11-digit PESEL, or empty with NoPersonalID set.
	PersonalID   string
	NoPersonalID bool

	PriceCents int64
	Currency   string

	Status        Status
	PaymentStatus PaymentStatus
	// PaymentRef is the provider order id, set once on the UNPAID→PAID transition.
	PaymentRef string

	CreatedAt   time.Time
	CompletedAt *time.Time
}
