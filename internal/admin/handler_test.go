package admin

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/needtofly/dodoktora/internal/bookings"
	"github.com/needtofly/dodoktora/internal/clinictime"
	"github.com/needtofly/dodoktora/pkg/logging"
)

func newAdminFixture(t *testing.T) (*httptest.Server, *bookings.InMemoryRepository) {
	t.Helper()
	repo := bookings.NewInMemoryRepository()
	h := NewHandler(repo, clinictime.MustZone("Europe/Warsaw"), logging.Default())
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return srv, repo
}

func seedAdminBookings(t *testing.T, repo *bookings.InMemoryRepository) {
	t.Helper()
	seed := []*bookings.Booking{
		{
			ID: "bk-1", FullName: "Anna Nowak", Email: "anna@example.com", Phone: "+48500600700",
			VisitType: bookings.VisitRemoteConsult,
			Date:      time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC),
			PriceCents: 4900, Currency: "PLN",
			Status: bookings.StatusConfirmed, PaymentStatus: bookings.PaymentPaid, PaymentRef: "ord-1",
			CreatedAt: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		},
		{
			ID: "bk-2", FullName: "Jan Kowalski", Email: "jan@example.com", Phone: "+48123456789",
			VisitType: bookings.VisitHome,
			Date:      time.Date(2026, 9, 4, 10, 0, 0, 0, time.UTC),
			Address:   "ul. Lipowa 5", PostalCode: "02-123", City: "Warszawa",
			PriceCents: 35000, Currency: "PLN",
			Status: bookings.StatusPending, PaymentStatus: bookings.PaymentUnpaid,
			CreatedAt: time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC),
		},
	}
	for _, b := range seed {
		require.NoError(t, repo.Reserve(context.Background(), b, 0))
	}
}

func TestAdminList(t *testing.T) {
	srv, repo := newAdminFixture(t)
	seedAdminBookings(t, repo)

	resp, err := http.Get(srv.URL + "/bookings")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		OK       bool          `json:"ok"`
		Bookings []bookingView `json:"bookings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Bookings, 2)
	assert.Equal(t, "bk-2", payload.Bookings[0].ID, "newest first")
	assert.Equal(t, "12:00", payload.Bookings[0].LocalTime, "UTC instant rendered as local clock time")
}

func TestAdminListFilters(t *testing.T) {
	srv, repo := newAdminFixture(t)
	seedAdminBookings(t, repo)

	resp, err := http.Get(srv.URL + "/bookings?status=CONFIRMED")
	require.NoError(t, err)
	defer resp.Body.Close()

	var payload struct {
		Bookings []bookingView `json:"bookings"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Bookings, 1)
	assert.Equal(t, "bk-1", payload.Bookings[0].ID)

	resp, err = http.Get(srv.URL + "/bookings?date=2026-09-04")
	require.NoError(t, err)
	defer resp.Body.Close()

	payload.Bookings = nil
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.Len(t, payload.Bookings, 1)
	assert.Equal(t, "bk-2", payload.Bookings[0].ID)
}

func TestAdminListBadDateFilter(t *testing.T) {
	srv, _ := newAdminFixture(t)

	resp, err := http.Get(srv.URL + "/bookings?date=04-09-2026")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminExportCSV(t *testing.T) {
	srv, repo := newAdminFixture(t)
	seedAdminBookings(t, repo)

	resp, err := http.Get(srv.URL + "/bookings/export")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "bookings.csv")

	records, err := csv.NewReader(resp.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two rows")
	assert.Equal(t, "id", records[0][0])

	var homeRow []string
	for _, rec := range records[1:] {
		if rec[0] == "bk-2" {
			homeRow = rec
		}
	}
	require.NotNil(t, homeRow)
	assert.Equal(t, "350.00", homeRow[11])
	assert.Equal(t, "ul. Lipowa 5", homeRow[8])
}

func TestAdminUpdateStatus(t *testing.T) {
	srv, repo := newAdminFixture(t)
	seedAdminBookings(t, repo)

	body := strings.NewReader(`{"status":"COMPLETED"}`)
	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/bookings/bk-1", body)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	b, err := repo.GetByID(context.Background(), "bk-1")
	require.NoError(t, err)
	assert.Equal(t, bookings.StatusCompleted, b.Status)
	assert.NotNil(t, b.CompletedAt)
}

func TestAdminUpdateStatusRejectsUnknown(t *testing.T) {
	srv, repo := newAdminFixture(t)
	seedAdminBookings(t, repo)

	req, err := http.NewRequest(http.MethodPatch, srv.URL+"/bookings/bk-1", bytes.NewReader([]byte(`{"status":"TELEPORTED"}`)))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAdminDelete(t *testing.T) {
	srv, repo := newAdminFixture(t)
	seedAdminBookings(t, repo)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/bookings/bk-2", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, err = repo.GetByID(context.Background(), "bk-2")
	assert.ErrorIs(t, err, bookings.ErrNotFound)
}

func TestAdminDeleteMissing(t *testing.T) {
	srv, _ := newAdminFixture(t)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/bookings/ghost", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
