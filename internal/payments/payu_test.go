package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needtofly/dodoktora/pkg/logging"
)

func testPayUConfig() PayUConfig {
	return PayUConfig{
		PosID:        "300746",
		ClientID:     "300746",
		ClientSecret: "2ee86a66e5d97e3fadc400c9f19b065d",
		ReturnURL:    "https://clinic.example/platnosc/powrot",
		NotifyURL:    "https://clinic.example/webhooks/payu",
	}
}

func payuAuthHandler(t *testing.T, authCalls *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		authCalls.Add(1)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, "300746", r.PostForm.Get("client_id"))
		_, _ = w.Write([]byte(`{"access_token":"tok-payu","token_type":"bearer","expires_in":43199}`))
	}
}

func TestPayURegisterFollowsRedirectLocation(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pl/standard/user/oauth/authorize", payuAuthHandler(t, &authCalls))
	mux.HandleFunc("/api/v2_1/orders", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-payu", r.Header.Get("Authorization"))

		var order map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&order))
		assert.Equal(t, "bk-1", order["extOrderId"])
		assert.Equal(t, "4900", order["totalAmount"])

		w.Header().Set("Location", "https://merch-prod.snd.payu.com/pay/?orderId=XYZ")
		w.WriteHeader(http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewPayU(testPayUConfig(), logging.Default()).WithBaseURL(srv.URL)
	res, err := g.Register(context.Background(), RegisterParams{
		SessionID: "bk-1", Amount: 4900, Currency: "PLN",
		Description: "Konsultacja zdalna bk-1", Email: "jan@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://merch-prod.snd.payu.com/pay/?orderId=XYZ", res.RedirectURL)
}

func TestPayURegisterJSONRedirect(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pl/standard/user/oauth/authorize", payuAuthHandler(t, &authCalls))
	mux.HandleFunc("/api/v2_1/orders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":{"statusCode":"SUCCESS"},"redirectUri":"https://pay.example/x","orderId":"WZHF5FFDRJ140731GUEST000P01"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewPayU(testPayUConfig(), logging.Default()).WithBaseURL(srv.URL)
	res, err := g.Register(context.Background(), RegisterParams{SessionID: "bk-1", Amount: 4900, Currency: "PLN"})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/x", res.RedirectURL)
	assert.Equal(t, "WZHF5FFDRJ140731GUEST000P01", res.OrderID)
}

func TestPayUTokenCached(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pl/standard/user/oauth/authorize", payuAuthHandler(t, &authCalls))
	mux.HandleFunc("/api/v2_1/orders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"redirectUri":"https://pay.example/x"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewPayU(testPayUConfig(), logging.Default()).WithBaseURL(srv.URL)
	for i := 0; i < 3; i++ {
		_, err := g.Register(context.Background(), RegisterParams{SessionID: "bk-1", Amount: 4900, Currency: "PLN"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), authCalls.Load(), "token fetched once and reused")
}

func TestPayUAuthRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	g := NewPayU(testPayUConfig(), logging.Default()).WithBaseURL(srv.URL)
	_, err := g.Register(context.Background(), RegisterParams{SessionID: "bk-1", Amount: 4900, Currency: "PLN"})
	assert.ErrorIs(t, err, ErrAuth)
}

func TestPayUVerify(t *testing.T) {
	var authCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/pl/standard/user/oauth/authorize", payuAuthHandler(t, &authCalls))
	mux.HandleFunc("/api/v2_1/orders/ORD-1", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[{"orderId":"ORD-1","status":"COMPLETED"}]}`))
	})
	mux.HandleFunc("/api/v2_1/orders/ORD-2", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"orders":[{"orderId":"ORD-2","status":"CANCELED"}]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	g := NewPayU(testPayUConfig(), logging.Default()).WithBaseURL(srv.URL)

	assert.NoError(t, g.Verify(context.Background(), VerifyParams{OrderID: "ORD-1"}))
	assert.ErrorIs(t, g.Verify(context.Background(), VerifyParams{OrderID: "ORD-2"}), ErrVerifyFailed)
}
