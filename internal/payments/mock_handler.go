package payments

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/needtofly/dodoktora/pkg/logging"
)

// MockHandler serves the local payment page backing the mock gateway. It is
// mounted only when mock payments are enabled; the pay and reject buttons
// drive the same reconciliation path real provider webhooks do.
type MockHandler struct {
	gateway    *Mock
	reconciler *Reconciler
	returnURL  string
	log        *logging.Logger
}

// NewMockHandler creates the mock payment page handler. returnURL is where
// the patient lands after settling; empty shows a plain confirmation.
func NewMockHandler(gateway *Mock, reconciler *Reconciler, returnURL string, log *logging.Logger) *MockHandler {
	return &MockHandler{gateway: gateway, reconciler: reconciler, returnURL: returnURL, log: log}
}

// Routes mounts the mock payment page on a chi router.
func (h *MockHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{sessionID}", h.page)
	r.Post("/{sessionID}/pay", h.pay)
	r.Post("/{sessionID}/reject", h.reject)
	return r
}

func (h *MockHandler) page(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	p, ok := h.gateway.Session(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, `<!doctype html>
<html lang="pl">
<body>
<h1>Płatność testowa</h1>
<p>%s</p>
<p>Kwota: %d.%02d %s</p>
<form method="post" action="/payments/mock/%s/pay"><button>Zapłać</button></form>
<form method="post" action="/payments/mock/%s/reject"><button>Odrzuć</button></form>
</body>
</html>
`, p.Description, p.Amount/100, p.Amount%100, p.Currency, id, id)
}

func (h *MockHandler) pay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	p, ok := h.gateway.Session(id)
	if !ok {
		http.NotFound(w, r)
		return
	}

	h.gateway.Settle(id)
	outcome := h.reconciler.ApplyPaid(r.Context(), Notification{
		SessionID: id,
		OrderID:   "mock-" + id,
		Amount:    p.Amount,
		Currency:  p.Currency,
	})
	h.log.Info("mock payment settled", "session_id", id, "outcome", string(outcome))

	if h.returnURL != "" {
		http.Redirect(w, r, h.returnURL, http.StatusSeeOther)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<p>Płatność przyjęta. Możesz zamknąć tę stronę.</p>")
}

func (h *MockHandler) reject(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if _, ok := h.gateway.Session(id); !ok {
		http.NotFound(w, r)
		return
	}

	outcome := h.reconciler.ApplyRejected(r.Context(), Notification{SessionID: id})
	h.log.Info("mock payment rejected", "session_id", id, "outcome", string(outcome))

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, "<p>Płatność odrzucona.</p>")
}
