// Package admin exposes the clinic staff endpoints for managing bookings.
// The whole surface sits behind the admin JWT middleware.
package admin

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/needtofly/dodoktora/internal/bookings"
	"github.com/needtofly/dodoktora/internal/clinictime"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// Handler serves the staff booking management endpoints.
type Handler struct {
	repo bookings.Repository
	zone *clinictime.Zone
	log  *logging.Logger
}

// NewHandler creates the admin handler.
func NewHandler(repo bookings.Repository, zone *clinictime.Zone, log *logging.Logger) *Handler {
	return &Handler{repo: repo, zone: zone, log: log}
}

// Routes mounts the admin endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/bookings", h.list)
	r.Get("/bookings/export", h.exportCSV)
	r.Patch("/bookings/{id}", h.updateStatus)
	r.Delete("/bookings/{id}", h.remove)
	return r
}

type bookingView struct {
	ID            string `json:"id"`
	FullName      string `json:"fullName"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	VisitType     string `json:"visitType"`
	Doctor        string `json:"doctor,omitempty"`
	Date          string `json:"date"`
	LocalDate     string `json:"localDate"`
	LocalTime     string `json:"localTime"`
	Notes         string `json:"notes,omitempty"`
	Address       string `json:"address,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	City          string `json:"city,omitempty"`
	PriceCents    int64  `json:"priceCents"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	PaymentRef    string `json:"paymentRef,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func (h *Handler) view(b bookings.Booking) bookingView {
	return bookingView{
		ID:            b.ID,
		FullName:      b.FullName,
		Email:         b.Email,
		Phone:         b.Phone,
		VisitType:     string(b.VisitType),
		Doctor:        b.Doctor,
		Date:          b.Date.Format(time.RFC3339),
		LocalDate:     h.zone.LocalDate(b.Date),
		LocalTime:     h.zone.ClockTime(b.Date),
		Notes:         b.Notes,
		Address:       b.Address,
		PostalCode:    b.PostalCode,
		City:          b.City,
		PriceCents:    b.PriceCents,
		Currency:      b.Currency,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		PaymentRef:    b.PaymentRef,
		CreatedAt:     b.CreatedAt.Format(time.RFC3339),
	}
}

var errBadDateFilter = errors.New("admin: invalid date filter")

func (h *Handler) fetch(r *http.Request) ([]bookings.Booking, error) {
	if date := r.URL.Query().Get("date"); date != "" {
		from, to, err := h.zone.DayWindow(date)
		if err != nil {
			return nil, errBadDateFilter
		}
		return h.repo.ListByDateRange(r.Context(), from, to)
	}
	return h.repo.List(r.Context())
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.fetch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := r.URL.Query().Get("status")
	views := make([]bookingView, 0, len(list))
	for _, b := range list {
		if status != "" && string(b.Status) != status {
			continue
		}
		views = append(views, h.view(b))
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bookings": views})
}

// exportCSV streams the bookings as a CSV attachment for the clinic's
// reception spreadsheet workflow.
func (h *Handler) exportCSV(w http.ResponseWriter, r *http.Request) {
	list, err := h.fetch(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="bookings.csv"`)

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{
		"id", "full_name", "email", "phone", "visit_type", "doctor",
		"local_date", "local_time", "address", "postal_code", "city",
		"price", "currency", "status", "payment_status", "payment_ref",
	})
	for _, b := range list {
		_ = cw.Write([]string{
			b.ID, b.FullName, b.Email, b.Phone, string(b.VisitType), b.Doctor,
			h.zone.LocalDate(b.Date), h.zone.ClockTime(b.Date),
			b.Address, b.PostalCode, b.City,
			fmt.Sprintf("%d.%02d", b.PriceCents/100, b.PriceCents%100), b.Currency,
			string(b.Status), string(b.PaymentStatus), b.PaymentRef,
		})
	}
	cw.Flush()
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "malformed JSON body"})
		return
	}
	status := bookings.Status(req.Status)
	if !status.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unknown status"})
		return
	}

	b, err := h.repo.UpdateStatus(r.Context(), id, status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "booking": h.view(*b)})
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, bookings.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]any{"ok": false, "error": "booking not found"})
		return
	}
	if errors.Is(err, errBadDateFilter) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "invalid date filter"})
		return
	}
	h.log.Error("admin request failed", "path", r.URL.Path, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "error": "internal error"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
