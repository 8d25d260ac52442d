package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/needtofly/dodoktora/internal/observability/metrics"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// stripeSignatureTolerance bounds how old a signed payload may be; replays
// outside the window are dropped.
const stripeSignatureTolerance = 5 * time.Minute

// StripeWebhook handles Stripe events. The signature header authenticates
// the payload, so unlike the Polish providers a bad signature is answered
// with 400; Stripe retries until it gets a 2xx.
type StripeWebhook struct {
	secret     string
	reconciler *Reconciler
	log        *logging.Logger
	now        func() time.Time
}

// NewStripeWebhook creates the event handler.
func NewStripeWebhook(secret string, reconciler *Reconciler, log *logging.Logger) *StripeWebhook {
	return &StripeWebhook{secret: secret, reconciler: reconciler, log: log, now: time.Now}
}

// WithNow overrides the clock used for the signature tolerance check.
func (h *StripeWebhook) WithNow(now func() time.Time) *StripeWebhook {
	h.now = now
	return h
}

func (h *StripeWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	if err := h.verifySignature(body, r.Header.Get("Stripe-Signature")); err != nil {
		h.log.Warn("stripe signature rejected", "error", err)
		metrics.WebhooksTotal.WithLabelValues("stripe", "bad_signature").Inc()
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	var event struct {
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID                string `json:"id"`
				ClientReferenceID string `json:"client_reference_id"`
				AmountTotal       int64  `json:"amount_total"`
				Currency          string `json:"currency"`
				PaymentStatus     string `json:"payment_status"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &event); err != nil {
		metrics.WebhooksTotal.WithLabelValues("stripe", "invalid").Inc()
		h.ack(w)
		return
	}

	obj := event.Data.Object
	n := Notification{
		SessionID: obj.ClientReferenceID,
		OrderID:   obj.ID,
		Amount:    obj.AmountTotal,
		Currency:  strings.ToUpper(obj.Currency),
	}

	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		if obj.PaymentStatus == "paid" {
			h.reconciler.ApplyPaid(r.Context(), n)
		} else {
			metrics.WebhooksTotal.WithLabelValues("stripe", "ignored").Inc()
		}
	case "checkout.session.expired", "checkout.session.async_payment_failed":
		h.reconciler.ApplyRejected(r.Context(), n)
	default:
		metrics.WebhooksTotal.WithLabelValues("stripe", "ignored").Inc()
	}
	h.ack(w)
}

func (h *StripeWebhook) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"received":true}`))
}

// verifySignature checks the t=...,v1=... header: v1 is the hex HMAC-SHA256
// of "<t>.<body>" under the endpoint secret.
func (h *StripeWebhook) verifySignature(body []byte, header string) error {
	if header == "" {
		return fmt.Errorf("missing Stripe-Signature header")
	}

	var ts string
	var sigs []string
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sigs = append(sigs, v)
		}
	}
	if ts == "" || len(sigs) == 0 {
		return fmt.Errorf("malformed signature header")
	}

	tsec, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("malformed timestamp %q", ts)
	}
	age := h.now().Sub(time.Unix(tsec, 0))
	if age > stripeSignatureTolerance || age < -stripeSignatureTolerance {
		return fmt.Errorf("timestamp outside tolerance")
	}

	mac := hmac.New(sha256.New, []byte(h.secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	want := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range sigs {
		if hmac.Equal([]byte(want), []byte(sig)) {
			return nil
		}
	}
	return fmt.Errorf("no matching v1 signature")
}
