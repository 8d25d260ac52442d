package bookings

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/needtofly/dodoktora/internal/observability/metrics"
	"github.com/needtofly/dodoktora/pkg/logging"
)

// Handler exposes the patient-facing reservation endpoints.
type Handler struct {
	svc *Service
	log *logging.Logger
}

// NewHandler creates the HTTP handler for reservations and availability.
func NewHandler(svc *Service, log *logging.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts the reservation endpoints on a chi router.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Create)
	r.Get("/availability", h.Availability)
	return r
}

// Create handles POST /api/bookings.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req ReserveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":    false,
			"error": "malformed JSON body",
		})
		return
	}

	b, redirectURL, err := h.svc.Reserve(r.Context(), req)
	if err != nil {
		h.writeReserveError(w, req, err)
		return
	}

	metrics.ReservationsTotal.WithLabelValues(string(b.VisitType), "reserved").Inc()
	writeJSON(w, http.StatusCreated, map[string]any{
		"ok":          true,
		"bookingId":   b.ID,
		"redirectUrl": redirectURL,
	})
}

func (h *Handler) writeReserveError(w http.ResponseWriter, req ReserveRequest, err error) {
	// Label values come from the request, so collapse anything unknown to
	// keep metric cardinality bounded.
	visitType := req.VisitType
	if !VisitType(visitType).Valid() {
		visitType = "unknown"
	}

	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		metrics.ReservationsTotal.WithLabelValues(visitType, "invalid").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"ok":    false,
			"field": verr.Field,
			"error": verr.Reason,
		})
	case errors.Is(err, ErrSlotTaken):
		metrics.ReservationsTotal.WithLabelValues(visitType, "conflict").Inc()
		writeJSON(w, http.StatusConflict, map[string]any{
			"ok":    false,
			"error": "slot already taken",
		})
	case errors.Is(err, ErrGatewayAuth), errors.Is(err, ErrGatewayUnavailable):
		metrics.ReservationsTotal.WithLabelValues(visitType, "gateway_error").Inc()
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"ok":    false,
			"error": "payment provider unavailable, please retry",
		})
	default:
		metrics.ReservationsTotal.WithLabelValues(visitType, "error").Inc()
		h.log.Error("reservation failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": "internal error",
		})
	}
}

// Availability handles GET /api/bookings/availability?date=YYYY-MM-DD.
func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	taken, err := h.svc.TakenSlots(r.Context(), date)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"ok":    false,
				"error": verr.Reason,
			})
			return
		}
		h.log.Error("availability lookup failed", "date", date, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"ok":    false,
			"error": "internal error",
		})
		return
	}
	if taken == nil {
		taken = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":    true,
		"date":  date,
		"taken": taken,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
