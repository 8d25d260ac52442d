package bookings

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, checkout CheckoutStarter) (*httptest.Server, *InMemoryRepository) {
	t.Helper()
	svc, repo := newTestService(t, checkout)
	srv := httptest.NewServer(NewHandler(svc, svc.log).Routes())
	t.Cleanup(srv.Close)
	return srv, repo
}

func postBooking(t *testing.T, srv *httptest.Server, req ReserveRequest) (*http.Response, map[string]any) {
	t.Helper()
	body, err := json.Marshal(req)
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var payload map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp, payload
}

func TestCreateBooking(t *testing.T) {
	srv, repo := newTestServer(t, checkoutFunc(func(ctx context.Context, b *Booking) (string, error) {
		return "https://pay.example/" + b.ID, nil
	}))

	resp, payload := postBooking(t, srv, validRemoteRequest())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, true, payload["ok"])

	id, _ := payload["bookingId"].(string)
	require.NotEmpty(t, id)
	assert.Equal(t, "https://pay.example/"+id, payload["redirectUrl"])

	stored, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestCreateBookingConflict(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, _ := postBooking(t, srv, validRemoteRequest())
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	req := validRemoteRequest()
	req.Email = "second@example.com"
	resp, payload := postBooking(t, srv, req)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, false, payload["ok"])
}

func TestCreateBookingValidationError(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := validRemoteRequest()
	req.Email = "broken"
	resp, payload := postBooking(t, srv, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email", payload["field"])
}

func TestCreateBookingGatewayDown(t *testing.T) {
	srv, _ := newTestServer(t, checkoutFunc(func(ctx context.Context, b *Booking) (string, error) {
		return "", ErrGatewayUnavailable
	}))

	resp, payload := postBooking(t, srv, validRemoteRequest())
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, false, payload["ok"])
}

func TestCreateBookingMalformedBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Post(srv.URL+"/", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAvailabilityEndpoint(t *testing.T) {
	srv, repo := newTestServer(t, nil)

	date := fixedNow.Add(48 * time.Hour)
	require.NoError(t, repo.Reserve(context.Background(), &Booking{
		ID: "seed", VisitType: VisitRemoteConsult, Date: date,
		Status: StatusConfirmed, PaymentStatus: PaymentPaid, CreatedAt: fixedNow,
	}, 0))

	resp, err := http.Get(fmt.Sprintf("%s/availability?date=%s", srv.URL, "2026-09-03"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		OK    bool     `json:"ok"`
		Date  string   `json:"date"`
		Taken []string `json:"taken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.True(t, payload.OK)
	assert.Len(t, payload.Taken, 1)
}

func TestAvailabilityBadDate(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/availability?date=bogus")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAvailabilityEmptyDayReturnsEmptyList(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/availability?date=2026-09-03")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Taken []string `json:"taken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.NotNil(t, payload.Taken)
	assert.Empty(t, payload.Taken)
}
