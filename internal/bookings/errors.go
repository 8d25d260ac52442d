package bookings

import (
	"errors"
	"fmt"
)

var (
	// ErrSlotTaken means another active booking already occupies the instant.
	ErrSlotTaken = errors.New("bookings: slot already taken")
	// ErrNotFound means no booking exists for the given id.
	ErrNotFound = errors.New("bookings: booking not found")
	// ErrGatewayAuth means the payment provider rejected our credentials.
	ErrGatewayAuth = errors.New("bookings: payment provider rejected credentials")
	// ErrGatewayUnavailable means a transient failure reaching the payment
	// provider; the booking stays PENDING/UNPAID so the patient may retry.
	ErrGatewayUnavailable = errors.New("bookings: payment provider unavailable")
)

// ValidationError reports the first violated rule of a reservation request.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bookings: invalid %s: %s", e.Field, e.Reason)
}

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}
