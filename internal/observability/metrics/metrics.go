// Package metrics registers the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dodoktora"

var (
	// ReservationsTotal counts reservation attempts by visit type and outcome
	// (reserved, conflict, invalid, error).
	ReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reservations_total",
			Help:      "Reservation attempts by visit type and outcome.",
		},
		[]string{"visit_type", "outcome"},
	)

	// PaymentRegistrationsTotal counts checkout sessions opened per provider
	// and outcome (ok, auth_error, unavailable, mock_fallback).
	PaymentRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_registrations_total",
			Help:      "Payment checkout sessions opened by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// WebhooksTotal counts payment notifications per provider and outcome
	// (paid, rejected, duplicate, invalid, unknown_booking, error).
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhooks_total",
			Help:      "Payment provider notifications by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	// ExpiredHoldsTotal counts bookings cancelled by the hold sweeper.
	ExpiredHoldsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expired_holds_total",
			Help:      "Bookings cancelled because the payment hold lapsed.",
		},
	)
)
