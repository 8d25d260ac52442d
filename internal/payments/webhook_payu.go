package payments

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/needtofly/dodoktora/internal/observability/metrics"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// PayUWebhook handles PayU order notifications. The body is only a trigger:
// before marking anything paid the reconciler re-reads the order from PayU,
// so a forged notification cannot settle a booking. Always acknowledges 200.
type PayUWebhook struct {
	reconciler *Reconciler
	log        *logging.Logger
}

// NewPayUWebhook creates the notification handler.
func NewPayUWebhook(reconciler *Reconciler, log *logging.Logger) *PayUWebhook {
	return &PayUWebhook{reconciler: reconciler, log: log}
}

func (h *PayUWebhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.ack(w)
		return
	}

	var payload struct {
		Order struct {
			OrderID      string `json:"orderId"`
			ExtOrderID   string `json:"extOrderId"`
			Status       string `json:"status"`
			TotalAmount  string `json:"totalAmount"`
			CurrencyCode string `json:"currencyCode"`
		} `json:"order"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || payload.Order.ExtOrderID == "" {
		h.log.Warn("payu notification unparseable", "error", err)
		metrics.WebhooksTotal.WithLabelValues("payu", "invalid").Inc()
		h.ack(w)
		return
	}

	amount, err := parseAmountMinor(payload.Order.TotalAmount)
	if err != nil {
		h.log.Warn("payu notification malformed amount",
			"ext_order_id", payload.Order.ExtOrderID, "error", err)
		metrics.WebhooksTotal.WithLabelValues("payu", "invalid").Inc()
		h.ack(w)
		return
	}

	n := Notification{
		SessionID: payload.Order.ExtOrderID,
		OrderID:   payload.Order.OrderID,
		Amount:    amount,
		Currency:  payload.Order.CurrencyCode,
	}

	switch payload.Order.Status {
	case "COMPLETED":
		h.reconciler.ApplyPaid(r.Context(), n)
	case "CANCELED", "REJECTED":
		h.reconciler.ApplyRejected(r.Context(), n)
	default:
		// PENDING and WAITING_FOR_CONFIRMATION carry no state change.
		h.log.Info("payu notification ignored",
			"ext_order_id", n.SessionID, "status", payload.Order.Status)
		metrics.WebhooksTotal.WithLabelValues("payu", "ignored").Inc()
	}
	h.ack(w)
}

func (h *PayUWebhook) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
