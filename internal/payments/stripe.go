package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/needtofly/dodoktora/pkg/logging"
)

// StripeConfig carries the Stripe API key and checkout redirect URLs.
type StripeConfig struct {
	SecretKey  string
	SuccessURL string
	CancelURL  string
	// BaseURL defaults to https://api.stripe.com.
	BaseURL string
}

// Stripe drives Stripe Checkout sessions over the form-encoded REST API.
type Stripe struct {
	cfg    StripeConfig
	client *http.Client
	log    *logging.Logger
}

// NewStripe creates the Stripe gateway client.
func NewStripe(cfg StripeConfig, log *logging.Logger) *Stripe {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.stripe.com"
	}
	return &Stripe{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		log:    log,
	}
}

// WithBaseURL overrides the API host; tests point it at a local server.
func (g *Stripe) WithBaseURL(base string) *Stripe {
	g.cfg.BaseURL = base
	return g
}

func (g *Stripe) Name() string { return "stripe" }

func (g *Stripe) Register(ctx context.Context, p RegisterParams) (*RegisterResult, error) {
	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("client_reference_id", p.SessionID)
	form.Set("customer_email", p.Email)
	form.Set("success_url", g.cfg.SuccessURL)
	form.Set("cancel_url", g.cfg.CancelURL)
	form.Set("line_items[0][quantity]", "1")
	form.Set("line_items[0][price_data][currency]", strings.ToLower(p.Currency))
	form.Set("line_items[0][price_data][unit_amount]", fmt.Sprintf("%d", p.Amount))
	form.Set("line_items[0][price_data][product_data][name]", p.Description)

	var out struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	}
	if err := g.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	if out.URL == "" {
		return nil, fmt.Errorf("payments: stripe session without url: %w", ErrUnavailable)
	}
	return &RegisterResult{RedirectURL: out.URL, OrderID: out.ID}, nil
}

func (g *Stripe) Verify(ctx context.Context, p VerifyParams) error {
	var out struct {
		PaymentStatus string `json:"payment_status"`
	}
	if err := g.do(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(p.OrderID), nil, &out); err != nil {
		return err
	}
	if out.PaymentStatus != "paid" {
		return fmt.Errorf("payments: stripe session %s payment status %q: %w", p.OrderID, out.PaymentStatus, ErrVerifyFailed)
	}
	return nil
}

func (g *Stripe) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequestWithContext(ctx, method, g.cfg.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("payments: stripe build request: %w", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Authorization", "Bearer "+g.cfg.SecretKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("payments: stripe %s %s: %w", method, path, ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("payments: stripe %s %s status %d: %w", method, path, resp.StatusCode, ErrAuth)
	case resp.StatusCode >= 500:
		return fmt.Errorf("payments: stripe %s %s status %d: %w", method, path, resp.StatusCode, ErrUnavailable)
	case resp.StatusCode >= 400:
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("payments: stripe %s %s status %d: %s", method, path, resp.StatusCode, apiErr.Error.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payments: stripe decode response: %w", err)
	}
	return nil
}
