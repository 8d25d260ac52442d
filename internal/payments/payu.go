package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/needtofly/dodoktora/pkg/logging"
)

// PayUConfig carries the PayU REST credentials and callback URLs.
type PayUConfig struct {
	PosID        string
	ClientID     string
	ClientSecret string
	// BaseURL is https://secure.payu.com for production and
	// https://secure.snd.payu.com for the sandbox.
	BaseURL   string
	ReturnURL string
	NotifyURL string
}

// PayU is the PayU REST gateway.
type PayU struct {
	cfg PayUConfig
	// client must not follow redirects: order creation answers with a 302
	// whose Location is the patient-facing payment page.
	client *http.Client
	log    *logging.Logger

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

// NewPayU creates the PayU gateway client.
func NewPayU(cfg PayUConfig, log *logging.Logger) *PayU {
	return &PayU{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		log: log,
	}
}

// WithBaseURL overrides the API host; tests point it at a local server.
func (g *PayU) WithBaseURL(base string) *PayU {
	g.cfg.BaseURL = base
	return g
}

func (g *PayU) Name() string { return "payu" }

func (g *PayU) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.token != "" && time.Now().Before(g.tokenExpiry) {
		return g.token, nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {g.cfg.ClientID},
		"client_secret": {g.cfg.ClientSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/pl/standard/user/oauth/authorize",
		strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("payments: payu build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payments: payu token: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("payments: payu token status %d: %w", resp.StatusCode, ErrAuth)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("payments: payu token status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	var out struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("payments: payu decode token: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("payments: payu empty access token: %w", ErrAuth)
	}

	g.token = out.AccessToken
	// Refresh one minute early so an in-flight request never carries a
	// token that expires mid-call.
	g.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - time.Minute)
	return g.token, nil
}

func (g *PayU) Register(ctx context.Context, p RegisterParams) (*RegisterResult, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return nil, err
	}

	order := map[string]any{
		"extOrderId":    p.SessionID,
		"notifyUrl":     g.cfg.NotifyURL,
		"continueUrl":   g.cfg.ReturnURL,
		"customerIp":    "127.0.0.1",
		"merchantPosId": g.cfg.PosID,
		"description":   p.Description,
		"currencyCode":  p.Currency,
		"totalAmount":   fmt.Sprintf("%d", p.Amount),
		"buyer": map[string]any{
			"email": p.Email,
		},
		"products": []map[string]any{
			{
				"name":      p.Description,
				"unitPrice": fmt.Sprintf("%d", p.Amount),
				"quantity":  "1",
			},
		},
	}
	raw, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("payments: payu encode order: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		g.cfg.BaseURL+"/api/v2_1/orders", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("payments: payu build order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payments: payu create order: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("payments: payu create order status %d: %w", resp.StatusCode, ErrAuth)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("payments: payu create order status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	// PayU answers either with a 302 to the payment page or with a JSON
	// body carrying redirectUri.
	if resp.StatusCode == http.StatusFound {
		loc := resp.Header.Get("Location")
		if loc == "" {
			return nil, fmt.Errorf("payments: payu redirect without location: %w", ErrUnavailable)
		}
		return &RegisterResult{RedirectURL: loc}, nil
	}

	var out struct {
		RedirectURI string `json:"redirectUri"`
		OrderID     string `json:"orderId"`
		Status      struct {
			StatusCode string `json:"statusCode"`
		} `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("payments: payu decode order response: %w", err)
	}
	if out.Status.StatusCode != "" && out.Status.StatusCode != "SUCCESS" {
		return nil, fmt.Errorf("payments: payu order status %s: %w", out.Status.StatusCode, ErrUnavailable)
	}
	if out.RedirectURI == "" {
		return nil, fmt.Errorf("payments: payu order without redirect: %w", ErrUnavailable)
	}
	return &RegisterResult{RedirectURL: out.RedirectURI, OrderID: out.OrderID}, nil
}

// FetchOrderStatus returns the provider-side status of an order, e.g.
// COMPLETED, CANCELED, PENDING. The order endpoint is the authoritative
// source; notification bodies are only a trigger to look it up.
func (g *PayU) FetchOrderStatus(ctx context.Context, orderID string) (string, error) {
	token, err := g.accessToken(ctx)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		g.cfg.BaseURL+"/api/v2_1/orders/"+url.PathEscape(orderID), nil)
	if err != nil {
		return "", fmt.Errorf("payments: payu build order fetch: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("payments: payu fetch order: %w", ErrUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("payments: payu fetch order status %d: %w", resp.StatusCode, ErrAuth)
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("payments: payu fetch order status %d: %w", resp.StatusCode, ErrUnavailable)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("payments: payu fetch order status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var out struct {
		Orders []struct {
			Status string `json:"status"`
		} `json:"orders"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("payments: payu decode order: %w", err)
	}
	if len(out.Orders) == 0 {
		return "", fmt.Errorf("payments: payu order %s not found", orderID)
	}
	return out.Orders[0].Status, nil
}

func (g *PayU) Verify(ctx context.Context, p VerifyParams) error {
	status, err := g.FetchOrderStatus(ctx, p.OrderID)
	if err != nil {
		return err
	}
	if status != "COMPLETED" {
		return fmt.Errorf("payments: payu order %s status %s: %w", p.OrderID, status, ErrVerifyFailed)
	}
	return nil
}
