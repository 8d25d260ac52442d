package payments

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/needtofly/dodoktora/pkg/logging"
)

// P24Config carries the Przelewy24 merchant credentials and callback URLs.
type P24Config struct {
	MerchantID int
	PosID      int
	CRC        string
	APIKey     string
	// BaseURL is https://secure.przelewy24.pl for production and
	// https://sandbox.przelewy24.pl for the sandbox.
	BaseURL   string
	ReturnURL string
	StatusURL string
}

// P24 is the Przelewy24 REST gateway.
type P24 struct {
	cfg    P24Config
	client *http.Client
	log    *logging.Logger
}

// NewP24 creates the Przelewy24 gateway client.
func NewP24(cfg P24Config, log *logging.Logger) *P24 {
	return &P24{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

// WithBaseURL overrides the API host; tests point it at a local server.
func (g *P24) WithBaseURL(base string) *P24 {
	g.cfg.BaseURL = base
	return g
}

func (g *P24) Name() string { return "p24" }

// p24 signs requests with SHA-384 over the JSON encoding of a fixed-order
// field set; field order matters, hence the dedicated structs.
type p24RegisterSign struct {
	SessionID  string `json:"sessionId"`
	MerchantID int    `json:"merchantId"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	CRC        string `json:"crc"`
}

type p24TransactionSign struct {
	SessionID string `json:"sessionId"`
	OrderID   int64  `json:"orderId"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	CRC       string `json:"crc"`
}

func sha384Of(v any) string {
	raw, _ := json.Marshal(v)
	sum := sha512.Sum384(raw)
	return hex.EncodeToString(sum[:])
}

func (g *P24) registerSign(sessionID string, amount int64, currency string) string {
	return sha384Of(p24RegisterSign{
		SessionID:  sessionID,
		MerchantID: g.cfg.MerchantID,
		Amount:     amount,
		Currency:   currency,
		CRC:        g.cfg.CRC,
	})
}

func (g *P24) transactionSign(sessionID string, orderID, amount int64, currency string) string {
	return sha384Of(p24TransactionSign{
		SessionID: sessionID,
		OrderID:   orderID,
		Amount:    amount,
		Currency:  currency,
		CRC:       g.cfg.CRC,
	})
}

// ValidNotificationSign checks the sign field of an incoming notification.
func (g *P24) ValidNotificationSign(sessionID string, orderID, amount int64, currency, sign string) bool {
	return sign != "" && sign == g.transactionSign(sessionID, orderID, amount, currency)
}

func (g *P24) Register(ctx context.Context, p RegisterParams) (*RegisterResult, error) {
	body := map[string]any{
		"merchantId":  g.cfg.MerchantID,
		"posId":       g.cfg.PosID,
		"sessionId":   p.SessionID,
		"amount":      p.Amount,
		"currency":    p.Currency,
		"description": p.Description,
		"email":       p.Email,
		"country":     "PL",
		"language":    "pl",
		"urlReturn":   g.cfg.ReturnURL,
		"urlStatus":   g.cfg.StatusURL,
		"timeLimit":   15,
		"sign":        g.registerSign(p.SessionID, p.Amount, p.Currency),
	}

	var out struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	if err := g.do(ctx, http.MethodPost, "/api/v1/transaction/register", body, &out); err != nil {
		return nil, err
	}
	if out.Data.Token == "" {
		return nil, fmt.Errorf("payments: p24 register returned no token: %w", ErrUnavailable)
	}
	return &RegisterResult{
		RedirectURL: g.cfg.BaseURL + "/trnRequest/" + out.Data.Token,
	}, nil
}

func (g *P24) Verify(ctx context.Context, p VerifyParams) error {
	orderID, err := parseOrderID(p.OrderID)
	if err != nil {
		return fmt.Errorf("payments: p24 verify: %w", err)
	}
	body := map[string]any{
		"merchantId": g.cfg.MerchantID,
		"posId":      g.cfg.PosID,
		"sessionId":  p.SessionID,
		"amount":     p.Amount,
		"currency":   p.Currency,
		"orderId":    orderID,
		"sign":       g.transactionSign(p.SessionID, orderID, p.Amount, p.Currency),
	}

	var out struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := g.do(ctx, http.MethodPut, "/api/v1/transaction/verify", body, &out); err != nil {
		return err
	}
	if out.Data.Status != "success" {
		return fmt.Errorf("payments: p24 verify status %q: %w", out.Data.Status, ErrVerifyFailed)
	}
	return nil
}

func (g *P24) do(ctx context.Context, method, path string, body, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("payments: p24 encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("payments: p24 build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(fmt.Sprintf("%d", g.cfg.MerchantID), g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("payments: p24 %s %s: %w", method, path, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("payments: p24 %s %s status %d: %w", method, path, resp.StatusCode, ErrAuth)
	case resp.StatusCode >= 500:
		return fmt.Errorf("payments: p24 %s %s status %d: %w", method, path, resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 400:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("payments: p24 %s %s status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payments: p24 decode response: %w", err)
	}
	return nil
}
