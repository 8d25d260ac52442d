package payments

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/needtofly/dodoktora/internal/observability/metrics"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// P24Webhook handles Przelewy24 payment notifications. The endpoint always
// acknowledges with 200 so the provider stops retrying; anything that could
// not be applied is only logged. State changes are gated on the signature
// and on the verify call the reconciler makes back to the provider.
type P24Webhook struct {
	gateway    *P24
	reconciler *Reconciler
	log        *logging.Logger
}

// NewP24Webhook creates the notification handler.
func NewP24Webhook(gateway *P24, reconciler *Reconciler, log *logging.Logger) *P24Webhook {
	return &P24Webhook{gateway: gateway, reconciler: reconciler, log: log}
}

func (h *P24Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		h.ack(w)
		return
	}

	fields, err := parseNotificationBody(body, r.Header.Get("Content-Type"))
	if err != nil {
		h.log.Warn("p24 notification unparseable", "error", err)
		metrics.WebhooksTotal.WithLabelValues("p24", "invalid").Inc()
		h.ack(w)
		return
	}

	sessionID, _ := firstString(fields, "sessionId", "p24_session_id")
	orderRaw, _ := firstString(fields, "orderId", "p24_order_id")
	currency, _ := firstString(fields, "currency", "p24_currency")
	sign, _ := firstString(fields, "sign", "p24_sign")
	amountRaw := firstValue(fields, "amount", "p24_amount")

	if sessionID == "" {
		h.log.Warn("p24 notification without session id")
		metrics.WebhooksTotal.WithLabelValues("p24", "invalid").Inc()
		h.ack(w)
		return
	}

	orderID, err := parseOrderID(orderRaw)
	if err != nil {
		h.log.Warn("p24 notification malformed order id", "session_id", sessionID, "error", err)
		metrics.WebhooksTotal.WithLabelValues("p24", "invalid").Inc()
		h.ack(w)
		return
	}
	amount, err := parseAmountMinor(amountRaw)
	if err != nil {
		h.log.Warn("p24 notification malformed amount", "session_id", sessionID, "error", err)
		metrics.WebhooksTotal.WithLabelValues("p24", "invalid").Inc()
		h.ack(w)
		return
	}

	if !h.gateway.ValidNotificationSign(sessionID, orderID, amount, currency, sign) {
		h.log.Warn("p24 notification signature mismatch", "session_id", sessionID)
		metrics.WebhooksTotal.WithLabelValues("p24", "bad_signature").Inc()
		h.ack(w)
		return
	}

	h.reconciler.ApplyPaid(r.Context(), Notification{
		SessionID: sessionID,
		OrderID:   fmt.Sprintf("%d", orderID),
		Amount:    amount,
		Currency:  currency,
	})
	h.ack(w)
}

func (h *P24Webhook) ack(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// parseNotificationBody accepts either a JSON object or an urlencoded form;
// Przelewy24 has sent both shapes depending on panel configuration.
func parseNotificationBody(body []byte, contentType string) (map[string]any, error) {
	trimmed := strings.TrimSpace(string(body))
	if strings.HasPrefix(trimmed, "{") {
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
		return fields, nil
	}

	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return nil, fmt.Errorf("decode form (content type %q): %w", contentType, err)
	}
	fields := make(map[string]any, len(values))
	for k := range values {
		fields[k] = values.Get(k)
	}
	return fields, nil
}

func firstString(fields map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return fmt.Sprintf("%.0f", v), true
		}
	}
	return "", false
}

func firstValue(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
