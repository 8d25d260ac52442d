// Package payments integrates the booking flow with external payment
// providers. One gateway is active per deployment; webhooks from each
// provider are normalized into a common reconciliation path that flips
// bookings to paid or rejected exactly once.
package payments

import (
	"context"
	"errors"
)

var (
	// ErrAuth means the provider rejected our merchant credentials.
	ErrAuth = errors.New("payments: provider rejected credentials")
	// ErrUnavailable means a transient transport or provider-side failure.
	ErrUnavailable = errors.New("payments: provider unavailable")
	// ErrVerifyFailed means the provider reports the transaction as not paid.
	ErrVerifyFailed = errors.New("payments: transaction not verified")
)

// RegisterParams describes a new payment session. SessionID is the booking
// id; amounts are minor units (grosze for PLN).
type RegisterParams struct {
	SessionID   string
	Amount      int64
	Currency    string
	Description string
	Email       string
}

// RegisterResult is the opened session: where to send the patient and the
// provider-side order id when the provider assigns one at registration.
type RegisterResult struct {
	RedirectURL string
	OrderID     string
}

// VerifyParams identifies a transaction to confirm with the provider before
// the booking is marked paid.
type VerifyParams struct {
	SessionID string
	OrderID   string
	Amount    int64
	Currency  string
}

// Gateway is one payment provider integration.
type Gateway interface {
	// Name is the provider label used in logs and metrics: p24, payu,
	// stripe or mock.
	Name() string

	// Register opens a payment session and returns the patient redirect.
	Register(ctx context.Context, p RegisterParams) (*RegisterResult, error)

	// Verify confirms with the provider that the transaction is settled.
	// Returns ErrVerifyFailed when the provider reports it unpaid.
	Verify(ctx context.Context, p VerifyParams) error
}
