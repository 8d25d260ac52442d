package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needtofly/dodoktora/internal/bookings"
	"github.com/needtofly/dodoktora/pkg/logging"
)

const stripeTestSecret = "whsec_test_secret"

var stripeNow = time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

func newStripeWebhookFixture(t *testing.T) (*StripeWebhook, *bookings.InMemoryRepository) {
	t.Helper()
	repo := bookings.NewInMemoryRepository()
	// Handler-focused cases skip the gateway round trip; the verify path is
	// covered by TestStripeWebhookVerifiesSessionWithProvider.
	rec := NewReconciler(repo, nil, nil, logging.Default())
	h := NewStripeWebhook(stripeTestSecret, rec, logging.Default()).
		WithNow(func() time.Time { return stripeNow })
	return h, repo
}

func stripeSign(secret, body string, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "." + body))
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func postStripeEvent(h *StripeWebhook, body, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if signature != "" {
		req.Header.Set("Stripe-Signature", signature)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func stripeCompletedEvent(bookingID string) string {
	return fmt.Sprintf(`{"type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"%s","amount_total":4900,"currency":"pln","payment_status":"paid"}}}`, bookingID)
}

func TestStripeWebhookCompleted(t *testing.T) {
	h, repo := newStripeWebhookFixture(t)
	seedBooking(t, repo, "bk-1")

	body := stripeCompletedEvent("bk-1")
	rr := postStripeEvent(h, body, stripeSign(stripeTestSecret, body, stripeNow))
	assert.Equal(t, http.StatusOK, rr.Code)

	b, err := repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, "cs_1", b.PaymentRef)
}

func TestStripeWebhookVerifiesSessionWithProvider(t *testing.T) {
	settled := false
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions/cs_1", r.URL.Path)
		status := "unpaid"
		if settled {
			status = "paid"
		}
		fmt.Fprintf(w, `{"id":"cs_1","payment_status":%q}`, status)
	}))
	defer api.Close()

	repo := bookings.NewInMemoryRepository()
	gw := NewStripe(StripeConfig{SecretKey: "sk_test"}, logging.Default()).WithBaseURL(api.URL)
	rec := NewReconciler(repo, gw, nil, logging.Default())
	h := NewStripeWebhook(stripeTestSecret, rec, logging.Default()).
		WithNow(func() time.Time { return stripeNow })
	seedBooking(t, repo, "bk-1")

	// A correctly signed completed event alone is not enough while the
	// session is still unpaid on the provider side.
	body := stripeCompletedEvent("bk-1")
	rr := postStripeEvent(h, body, stripeSign(stripeTestSecret, body, stripeNow))
	assert.Equal(t, http.StatusOK, rr.Code)

	b, err := repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentUnpaid, b.PaymentStatus)

	settled = true
	rr = postStripeEvent(h, body, stripeSign(stripeTestSecret, body, stripeNow))
	assert.Equal(t, http.StatusOK, rr.Code)

	b, err = repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentPaid, b.PaymentStatus)
	assert.Equal(t, "cs_1", b.PaymentRef)
}

func TestStripeWebhookBadSignature(t *testing.T) {
	h, repo := newStripeWebhookFixture(t)
	seedBooking(t, repo, "bk-1")

	body := stripeCompletedEvent("bk-1")
	rr := postStripeEvent(h, body, stripeSign("whsec_wrong", body, stripeNow))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	b, err := repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentUnpaid, b.PaymentStatus)
}

func TestStripeWebhookMissingSignature(t *testing.T) {
	h, _ := newStripeWebhookFixture(t)
	rr := postStripeEvent(h, stripeCompletedEvent("bk-1"), "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestStripeWebhookStaleTimestamp(t *testing.T) {
	h, repo := newStripeWebhookFixture(t)
	seedBooking(t, repo, "bk-1")

	body := stripeCompletedEvent("bk-1")
	rr := postStripeEvent(h, body, stripeSign(stripeTestSecret, body, stripeNow.Add(-10*time.Minute)))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	b, err := repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentUnpaid, b.PaymentStatus)
}

func TestStripeWebhookExpiredSession(t *testing.T) {
	h, repo := newStripeWebhookFixture(t)
	seedBooking(t, repo, "bk-1")

	body := `{"type":"checkout.session.expired","data":{"object":{"id":"cs_1","client_reference_id":"bk-1","amount_total":4900,"currency":"pln","payment_status":"unpaid"}}}`
	rr := postStripeEvent(h, body, stripeSign(stripeTestSecret, body, stripeNow))
	assert.Equal(t, http.StatusOK, rr.Code)

	b, err := repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentRejected, b.PaymentStatus)
	assert.Equal(t, bookings.StatusCancelled, b.Status)
}

func TestStripeWebhookUnknownEventIgnored(t *testing.T) {
	h, repo := newStripeWebhookFixture(t)
	seedBooking(t, repo, "bk-1")

	body := `{"type":"invoice.paid","data":{"object":{"id":"in_1"}}}`
	rr := postStripeEvent(h, body, stripeSign(stripeTestSecret, body, stripeNow))
	assert.Equal(t, http.StatusOK, rr.Code)

	b, err := repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.PaymentUnpaid, b.PaymentStatus)
}
